package infrastructure

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"ukwikibot/internal/entities"
)

const (
	gregorianCalendar = "Q1985727"
	itemMale          = "Q6581097"
	itemFemale        = "Q6581072"
	precisionDay      = 11
)

var wikidataTimeRe = regexp.MustCompile(`^([+-])(\d+)-(\d{2})-(\d{2})T`)

type snak struct {
	SnakType  string `json:"snaktype"`
	DataValue struct {
		Type  string              `json:"type"`
		Value jsoniter.RawMessage `json:"value"`
	} `json:"datavalue"`
}

type claim struct {
	MainSnak snak   `json:"mainsnak"`
	Rank     string `json:"rank"`
}

type claimsResponse struct {
	Error  *APIError          `json:"error"`
	Claims map[string][]claim `json:"claims"`
}

type timeValue struct {
	Time          string `json:"time"`
	Precision     int    `json:"precision"`
	CalendarModel string `json:"calendarmodel"`
}

type globeValue struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type itemValue struct {
	ID string `json:"id"`
}

type monolingualValue struct {
	Text string `json:"text"`
}

// claims returns the usable value snaks of one property in statement order.
func (c *WikiClient) claims(ctx context.Context, page *entities.Page, propertyID string) ([]snak, error) {
	if page == nil || page.ItemID == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("action", "wbgetclaims")
	params.Set("entity", page.ItemID)
	params.Set("property", propertyID)

	var out claimsResponse
	if err := c.getJSON(ctx, c.cfg.WikidataURL, params, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, out.Error
	}

	var snaks []snak
	for _, cl := range out.Claims[propertyID] {
		if cl.Rank == "deprecated" || cl.MainSnak.SnakType != "value" {
			continue
		}
		snaks = append(snaks, cl.MainSnak)
	}
	return snaks, nil
}

// FetchDateProperty returns the first day-precision Gregorian date of propertyID.
func (c *WikiClient) FetchDateProperty(ctx context.Context, page *entities.Page, propertyID string) (*entities.Date, error) {
	snaks, err := c.claims(ctx, page, propertyID)
	if err != nil {
		return nil, err
	}
	for _, s := range snaks {
		var v timeValue
		if err := json.Unmarshal(s.DataValue.Value, &v); err != nil {
			continue
		}
		if !strings.Contains(v.CalendarModel, gregorianCalendar) || v.Precision < precisionDay {
			continue
		}
		if d, ok := parseWikidataTime(v.Time); ok {
			return &d, nil
		}
	}
	return nil, nil
}

func parseWikidataTime(s string) (entities.Date, bool) {
	m := wikidataTimeRe.FindStringSubmatch(s)
	if m == nil {
		return entities.Date{}, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return entities.Date{}, false
	}
	if m[1] == "-" {
		year = -year
	}
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return entities.Date{}, false
	}
	return entities.Date{Day: day, Month: month, Year: year}, true
}

func (c *WikiClient) FetchCoordinateProperty(ctx context.Context, page *entities.Page) (*entities.Coordinates, error) {
	snaks, err := c.claims(ctx, page, entities.PropCoordinates)
	if err != nil {
		return nil, err
	}
	for _, s := range snaks {
		var v globeValue
		if err := json.Unmarshal(s.DataValue.Value, &v); err != nil {
			continue
		}
		return &entities.Coordinates{Latitude: v.Latitude, Longitude: v.Longitude}, nil
	}
	return nil, nil
}

func (c *WikiClient) FetchGenderProperty(ctx context.Context, page *entities.Page) (entities.Gender, error) {
	snaks, err := c.claims(ctx, page, entities.PropGender)
	if err != nil {
		return entities.GenderUnknown, err
	}
	if len(snaks) == 0 {
		return entities.GenderUnknown, nil
	}
	var v itemValue
	if err := json.Unmarshal(snaks[0].DataValue.Value, &v); err != nil {
		return entities.GenderUnknown, nil
	}
	switch v.ID {
	case itemMale:
		return entities.GenderMale, nil
	case itemFemale:
		return entities.GenderFemale, nil
	default:
		return entities.GenderUnknown, nil
	}
}

// FetchImageProperty resolves the page's main image to a thumbnail URL.
func (c *WikiClient) FetchImageProperty(ctx context.Context, page *entities.Page) (*entities.ImageRef, error) {
	snaks, err := c.claims(ctx, page, entities.PropImage)
	if err != nil {
		return nil, err
	}
	if len(snaks) == 0 {
		return nil, nil
	}
	var fileName string
	if err := json.Unmarshal(snaks[0].DataValue.Value, &fileName); err != nil || fileName == "" {
		return nil, nil
	}
	ref, err := c.fileInfo(ctx, fileName)
	if err != nil {
		return nil, fmt.Errorf("file info %q: %w", fileName, err)
	}
	return ref, nil
}

func (c *WikiClient) FetchCategoryProperty(ctx context.Context, page *entities.Page) (string, error) {
	snaks, err := c.claims(ctx, page, entities.PropCommonsCategory)
	if err != nil {
		return "", err
	}
	for _, s := range snaks {
		var category string
		if err := json.Unmarshal(s.DataValue.Value, &category); err == nil && category != "" {
			return category, nil
		}
	}
	return "", nil
}

// FetchTextListProperty returns string values as is and item values as
// their labels in the configured language. Items without a label are skipped.
func (c *WikiClient) FetchTextListProperty(ctx context.Context, page *entities.Page, propertyID string) ([]string, error) {
	snaks, err := c.claims(ctx, page, propertyID)
	if err != nil {
		return nil, err
	}

	type slot struct {
		text   string
		itemID string
	}
	slots := make([]slot, 0, len(snaks))
	var ids []string
	for _, s := range snaks {
		switch s.DataValue.Type {
		case "string":
			var text string
			if json.Unmarshal(s.DataValue.Value, &text) == nil && text != "" {
				slots = append(slots, slot{text: text})
			}
		case "monolingualtext":
			var v monolingualValue
			if json.Unmarshal(s.DataValue.Value, &v) == nil && v.Text != "" {
				slots = append(slots, slot{text: v.Text})
			}
		case "wikibase-entityid":
			var v itemValue
			if json.Unmarshal(s.DataValue.Value, &v) == nil && v.ID != "" {
				slots = append(slots, slot{itemID: v.ID})
				ids = append(ids, v.ID)
			}
		}
	}

	labels, err := c.labels(ctx, ids)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(slots))
	for _, s := range slots {
		if s.itemID == "" {
			values = append(values, s.text)
			continue
		}
		if label := labels[s.itemID]; label != "" {
			values = append(values, label)
		}
	}
	return values, nil
}

type entitiesResponse struct {
	Error    *APIError `json:"error"`
	Entities map[string]struct {
		Labels map[string]struct {
			Value string `json:"value"`
		} `json:"labels"`
	} `json:"entities"`
}

// labels fetches item labels, at most 50 ids per request.
func (c *WikiClient) labels(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for start := 0; start < len(ids); start += 50 {
		end := start + 50
		if end > len(ids) {
			end = len(ids)
		}

		params := url.Values{}
		params.Set("action", "wbgetentities")
		params.Set("ids", strings.Join(ids[start:end], "|"))
		params.Set("props", "labels")
		params.Set("languages", c.cfg.Language)

		var resp entitiesResponse
		if err := c.getJSON(ctx, c.cfg.WikidataURL, params, &resp); err != nil {
			return nil, fmt.Errorf("labels: %w", err)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		for id, e := range resp.Entities {
			if l, ok := e.Labels[c.cfg.Language]; ok {
				out[id] = l.Value
			}
		}
	}
	return out, nil
}
