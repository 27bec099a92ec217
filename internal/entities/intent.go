package entities

// Intent identifies a supported request shape.
type Intent string

const (
	IntentWiki        Intent = "wiki"
	IntentUkWikiBot   Intent = "ukwikibot"
	IntentWhatIs      Intent = "whatis"
	IntentLink        Intent = "link"
	IntentRandom      Intent = "random"
	IntentHelp        Intent = "help"
	IntentBirthday    Intent = "birthday"
	IntentDeathday    Intent = "deathday"
	IntentFieldOfWork Intent = "field_of_work"
	IntentEducation   Intent = "education"
	IntentCoords      Intent = "coords"
	IntentCoordsGen   Intent = "coords_gen"
	IntentImage       Intent = "image"
)

// ResponseKind is the output modality of an intent.
type ResponseKind string

const (
	KindText        ResponseKind = "text"
	KindCoordinates ResponseKind = "coordinates"
	KindImage       ResponseKind = "image"
)

var intentKinds = map[Intent]ResponseKind{
	IntentWiki:        KindText,
	IntentUkWikiBot:   KindText,
	IntentWhatIs:      KindText,
	IntentLink:        KindText,
	IntentRandom:      KindText,
	IntentHelp:        KindText,
	IntentBirthday:    KindText,
	IntentDeathday:    KindText,
	IntentFieldOfWork: KindText,
	IntentEducation:   KindText,
	IntentCoords:      KindCoordinates,
	IntentCoordsGen:   KindCoordinates,
	IntentImage:       KindImage,
}

// Intents returns every known intent in declaration order.
func Intents() []Intent {
	return []Intent{
		IntentWiki, IntentUkWikiBot, IntentWhatIs, IntentLink, IntentRandom, IntentHelp,
		IntentBirthday, IntentDeathday, IntentFieldOfWork, IntentEducation,
		IntentCoords, IntentCoordsGen, IntentImage,
	}
}

// Kind returns the response kind bound to the intent. Unknown intents are text.
func (i Intent) Kind() ResponseKind {
	if k, ok := intentKinds[i]; ok {
		return k
	}
	return KindText
}

func (i Intent) Valid() bool {
	_, ok := intentKinds[i]
	return ok
}

func (i Intent) String() string {
	return string(i)
}
