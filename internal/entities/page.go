package entities

import "fmt"

// Page is an opaque handle to an encyclopedia page. It is fetched per
// request and never cached or mutated.
type Page struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	// ItemID is the linked structured-data entity (e.g. "Q1899"), empty when the page has none.
	ItemID string `json:"item_id,omitempty"`
}

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// Date is a calendar date with day precision.
type Date struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ImageRef points at a media file: a resized rendition and its description page.
type ImageRef struct {
	URL            string `json:"url"`
	DescriptionURL string `json:"description_url"`
}

// Analysis is one candidate lexical reading of a word.
type Analysis struct {
	NormalForm string `json:"normal_form" yaml:"normal_form"`
	Case       string `json:"case" yaml:"case"`
}

// CaseGenitive is the grammatical case tag of a genitive reading.
const CaseGenitive = "gent"

// Structured-data property identifiers.
const (
	PropGender          = "P21"
	PropBirthDate       = "P569"
	PropDeathDate       = "P570"
	PropCoordinates     = "P625"
	PropImage           = "P18"
	PropCommonsCategory = "P373"
	PropFieldOfWork     = "P101"
	PropEducatedAt      = "P69"
)
