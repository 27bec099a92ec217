package usecases

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"ukwikibot/internal/entities"
)

const (
	WikiHomeURL  = "https://uk.wikipedia.org/"
	MentionReply = "Га?"
	ReadMoreText = "Читати у Вікіпедії"
)

const HelpText = `Привіт! Я WikiBot, автоматичний робот, який допоможе вам знайти потрібну інформацію в українській Вікіпедії.
Приклади команд:
Ви: Що таке Вікіпедія?
WikiBot: Вікіпе́дія (англ. Wikipedia, МФА: [ˌwɪkɪˈpiːdɪə]) — загальнодоступна вільна багатомовна онлайн-енциклопедія, якою опікується неприбуткова організація «Фонд Вікімедіа».
Будь-хто, у кого є доступ до читання Вікіпедії, також може редагувати практично всі її статті.
Ви: дата народження джорджа буша старшого
WikiBot: Джордж Герберт Вокер Буш народився 12 червня 1924
Ви: Коли помер Майкл Джексон?
WikiBot: Майкл Джексон помер 25 червня 2009
Ви: Де розташований Київ? [також реагує на: Координати Києва]
WikiBot: (мапа з координатами)
Ви: Знайди фото Києва
WikiBot: (фото)
WikiBot: Дивіться також фото в категорії «Kyiv» на Вікісховищі
Ви: @ukwikibot сфера роботи Тараса Шевченка
WikiBot: поезія, живопис
Ви: [[Вікіпедія]]
WikiBot: https://uk.wikipedia.org/wiki/Вікіпедія
Ви: /random
WikiBot: (випадкова стаття)
Ви: /wiki
WikiBot: https://uk.wikipedia.org`

var monthNames = [12]string{
	"січня", "лютого", "березня", "квітня", "травня", "червня",
	"липня", "серпня", "вересня", "жовтня", "листопада", "грудня",
}

var headingRe = regexp.MustCompile(`={2,} ?(.+?) ?={2,}`)

// Text from the knowledge service is escaped before it is placed into the
// HTML subset understood by the gateways.
var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// EscapeText makes plain text safe inside an HTML message body.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// FormatDate renders "6 лютого 1911".
func FormatDate(d entities.Date) string {
	if d.Month < 1 || d.Month > 12 {
		return ""
	}
	return fmt.Sprintf("%d %s %d", d.Day, monthNames[d.Month-1], d.Year)
}

func BirthVerb(g entities.Gender) string {
	if g == entities.GenderFemale {
		return "народилась"
	}
	return "народився"
}

// DeathVerb agrees with gender; unknown gender gets the neutral form.
func DeathVerb(g entities.Gender) string {
	switch g {
	case entities.GenderFemale:
		return "померла"
	case entities.GenderMale:
		return "помер"
	default:
		return "помер(ла)"
	}
}

// EmphasizeHeadings turns "== Історія ==" section markers into bold text.
func EmphasizeHeadings(text string) string {
	return headingRe.ReplaceAllString(text, "<b>$1</b>")
}

// FormatSummary appends the read-more link to a plain-text extract.
func FormatSummary(extract, pageURL string) string {
	return fmt.Sprintf("%s\n\n<a href=\"%s\">%s</a>",
		EmphasizeHeadings(EscapeText(extract)), escapeAttr(DecodeURL(pageURL)), ReadMoreText)
}

// DecodeURL percent-decodes u, returning it unchanged when it is malformed.
func DecodeURL(u string) string {
	decoded, err := url.PathUnescape(u)
	if err != nil {
		return u
	}
	return decoded
}

// ImageCaption builds the attribution and category line for an image
// reply. It returns "" when neither an image nor a category is known.
func ImageCaption(descriptionURL, category, categoryBaseURL string) string {
	var attribution string
	if descriptionURL != "" {
		attribution = fmt.Sprintf(`<a href="%s">Автор та ліцензія.</a>`, escapeAttr(descriptionURL))
	}
	if category == "" {
		return attribution
	}

	prefix := "Основне фото не знайдено. Дивіться"
	if attribution != "" {
		prefix = attribution + " Дивіться також"
	}
	href := categoryBaseURL + strings.ReplaceAll(category, " ", "_")
	return fmt.Sprintf(`%s фото в категорії <a href="%s">«%s»</a> на Вікісховищі`,
		prefix, escapeAttr(href), EscapeText(category))
}

// queryArg strips the punctuation a capture may carry; "" means no usable query.
func queryArg(arg string) string {
	return strings.Trim(arg, " \t\r\n?!.,")
}
