package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukwikibot/internal/entities"
)

const testUserAgent = "ukwikibot-test/1.0"

type wikiStub struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	requests []string
}

func (s *wikiStub) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newWikiStub(t *testing.T) (*wikiStub, *WikiClient) {
	t.Helper()
	stub := &wikiStub{t: t}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(stub.server.Close)

	client := NewWikiClient(WikiClientConfig{
		APIURL:         stub.server.URL + "/w/api.php",
		SiteURL:        stub.server.URL,
		WikidataURL:    stub.server.URL + "/wd/api.php",
		CommonsURL:     stub.server.URL + "/c/api.php",
		Language:       "uk",
		UserAgent:      testUserAgent,
		RequestTimeout: 2 * time.Second,
		LinkTimeout:    2 * time.Second,
		ThumbWidth:     640,
	}, stub.server.Client())
	return stub, client
}

func (s *wikiStub) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.Path+"?"+r.URL.RawQuery)
	s.mu.Unlock()
	assert.Equal(s.t, testUserAgent, r.Header.Get("User-Agent"))
	q := r.URL.Query()

	switch {
	case r.URL.Path == "/w/api.php":
		assert.Equal(s.t, "2", q.Get("formatversion"))
		assert.Equal(s.t, "json", q.Get("format"))
		s.serveWiki(w, q.Get("gsrsearch"), q.Get("generator"), q.Get("prop"), q.Get("titles"), q.Get("exsentences"))
	case r.URL.Path == "/wd/api.php":
		s.serveWikidata(w, q.Get("action"), q.Get("entity"), q.Get("property"), q.Get("ids"))
	case r.URL.Path == "/c/api.php":
		assert.Equal(s.t, "File:Kyiv montage.jpg", q.Get("titles"))
		assert.Equal(s.t, "640", q.Get("iiurlwidth"))
		fmt.Fprint(w, `{"query":{"pages":[{"title":"File:Kyiv montage.jpg","imageinfo":[{"url":"https://upload/full.jpg","thumburl":"https://upload/640px.jpg","descriptionurl":"https://commons/File:Kyiv_montage.jpg"}]}]}}`)
	case strings.HasPrefix(r.URL.Path, "/wiki/"):
		s.serveArticle(w, r, strings.TrimPrefix(r.URL.Path, "/wiki/"))
	case strings.HasPrefix(r.URL.Path, "/img/"):
		s.serveImage(w, strings.TrimPrefix(r.URL.Path, "/img/"))
	default:
		http.NotFound(w, r)
	}
}

func (s *wikiStub) serveWiki(w http.ResponseWriter, search, generator, prop, titles, sentences string) {
	switch {
	case generator == "search" && search == "Київ":
		assert.Equal(s.t, "info|pageprops", prop)
		fmt.Fprint(w, `{"batchcomplete":true,"query":{"pages":[
			{"pageid":7,"title":"Київ","index":1,"fullurl":"https://uk.wikipedia.org/wiki/%D0%9A%D0%B8%D1%97%D0%B2","pageprops":{"wikibase_item":"Q1899"}}
		]}}`)
	case generator == "search" && search == "Зламано":
		fmt.Fprint(w, `{"error":{"code":"internal_api_error","info":"boom"}}`)
	case generator == "search" && search == "Відсутня":
		fmt.Fprint(w, `{"query":{"pages":[{"title":"Відсутня","missing":true}]}}`)
	case generator == "search":
		fmt.Fprint(w, `{"batchcomplete":true}`)
	case generator == "random":
		fmt.Fprint(w, `{"query":{"pages":[{"pageid":9,"title":"Говерла","fullurl":"https://uk.wikipedia.org/wiki/Говерла"}]}}`)
	case prop == "extracts":
		assert.Equal(s.t, "Київ", titles)
		assert.Equal(s.t, "3", sentences)
		fmt.Fprint(w, `{"query":{"pages":[{"pageid":7,"title":"Київ","extract":"Київ — столиця України.\n== Історія =="}]}}`)
	default:
		s.t.Errorf("unexpected wiki request generator=%q prop=%q", generator, prop)
	}
}

func claimJSON(datatype, value string, extra string) string {
	rank := "normal"
	snaktype := "value"
	switch extra {
	case "deprecated":
		rank = "deprecated"
	case "novalue":
		snaktype = "novalue"
	}
	return fmt.Sprintf(`{"mainsnak":{"snaktype":%q,"datavalue":{"type":%q,"value":%s}},"rank":%q}`, snaktype, datatype, value, rank)
}

func timeJSON(t string, precision int, calendar string) string {
	return fmt.Sprintf(`{"time":%q,"precision":%d,"calendarmodel":"http://www.wikidata.org/entity/%s"}`, t, precision, calendar)
}

func (s *wikiStub) serveWikidata(w http.ResponseWriter, action, entity, property, ids string) {
	if action == "wbgetentities" {
		assert.Equal(s.t, "Q1|Q2", ids)
		fmt.Fprint(w, `{"entities":{"Q1":{"labels":{"uk":{"value":"поезія"}}},"Q2":{"labels":{}}}}`)
		return
	}
	if !assert.Equal(s.t, "wbgetclaims", action) || !assert.Equal(s.t, "Q1899", entity) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var claims []string
	switch property {
	case entities.PropBirthDate:
		claims = []string{
			claimJSON("time", timeJSON("+1800-01-01T00:00:00Z", 11, gregorianCalendar), "deprecated"),
			claimJSON("time", timeJSON("+1814-02-25T00:00:00Z", 11, "Q1985786"), ""),
			claimJSON("time", timeJSON("+1814-00-00T00:00:00Z", 9, gregorianCalendar), ""),
			claimJSON("time", timeJSON("+1814-03-09T00:00:00Z", 11, gregorianCalendar), ""),
		}
	case entities.PropGender:
		claims = []string{claimJSON("wikibase-entityid", `{"id":"Q6581072"}`, "")}
	case entities.PropCoordinates:
		claims = []string{
			claimJSON("globecoordinate", `{}`, "novalue"),
			claimJSON("globecoordinate", `{"latitude":50.45,"longitude":30.5233}`, ""),
		}
	case entities.PropImage:
		claims = []string{claimJSON("string", `"Kyiv montage.jpg"`, "")}
	case entities.PropCommonsCategory:
		claims = []string{claimJSON("string", `"Kyiv"`, "")}
	case entities.PropFieldOfWork:
		claims = []string{
			claimJSON("wikibase-entityid", `{"id":"Q1"}`, ""),
			claimJSON("string", `"живопис"`, ""),
			claimJSON("wikibase-entityid", `{"id":"Q2"}`, ""),
			claimJSON("monolingualtext", `{"text":"графіка","language":"uk"}`, ""),
		}
	}
	fmt.Fprintf(w, `{"claims":{%q:[%s]}}`, property, strings.Join(claims, ","))
}

func (s *wikiStub) serveArticle(w http.ResponseWriter, r *http.Request, title string) {
	switch title {
	case "Київ", "Тарас_Шевченко":
		fmt.Fprint(w, "<html>ok</html>")
	case "Kiev":
		http.Redirect(w, r, "/wiki/%D0%9A%D0%B8%D1%97%D0%B2", http.StatusMovedPermanently)
	case "Broken":
		w.WriteHeader(http.StatusServiceUnavailable)
	case "Forbidden":
		w.WriteHeader(http.StatusForbidden)
	default:
		http.NotFound(w, r)
	}
}

func (s *wikiStub) serveImage(w http.ResponseWriter, name string) {
	switch name {
	case "a.jpg":
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xff, 0xd8, 0xff})
	case "a.png":
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestWikiClient_SearchByTitle(t *testing.T) {
	_, client := newWikiStub(t)
	ctx := context.Background()

	page, err := client.SearchByTitle(ctx, "Київ")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, entities.Page{
		ID:     7,
		Title:  "Київ",
		URL:    "https://uk.wikipedia.org/wiki/%D0%9A%D0%B8%D1%97%D0%B2",
		ItemID: "Q1899",
	}, *page)

	page, err = client.SearchByTitle(ctx, "Нічого")
	require.NoError(t, err)
	assert.Nil(t, page)

	page, err = client.SearchByTitle(ctx, "Відсутня")
	require.NoError(t, err)
	assert.Nil(t, page)

	_, err = client.SearchByTitle(ctx, "Зламано")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "internal_api_error", apiErr.Code)
}

func TestWikiClient_RandomAndSummary(t *testing.T) {
	_, client := newWikiStub(t)
	ctx := context.Background()

	page, err := client.RandomPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Говерла", page.Title)

	extract, err := client.ExtractSummary(ctx, &entities.Page{Title: "Київ"}, 3)
	require.NoError(t, err)
	assert.Equal(t, "Київ — столиця України.\n== Історія ==", extract)
}

func TestWikiClient_ResolveLink(t *testing.T) {
	stub, client := newWikiStub(t)
	ctx := context.Background()

	got, err := client.ResolveLink(ctx, "Київ")
	require.NoError(t, err)
	assert.Equal(t, stub.server.URL+"/wiki/Київ", got)

	got, err = client.ResolveLink(ctx, "Тарас Шевченко")
	require.NoError(t, err)
	assert.Equal(t, stub.server.URL+"/wiki/Тарас_Шевченко", got)

	got, err = client.ResolveLink(ctx, "Kiev")
	require.NoError(t, err)
	assert.Equal(t, stub.server.URL+"/wiki/Київ", got)

	got, err = client.ResolveLink(ctx, "Немає")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Client errors other than 404 still count as a hit.
	got, err = client.ResolveLink(ctx, "Forbidden")
	require.NoError(t, err)
	assert.Equal(t, stub.server.URL+"/wiki/Forbidden", got)

	_, err = client.ResolveLink(ctx, "Broken")
	assert.Error(t, err)
}

func TestWikiClient_ResolveLinkSection(t *testing.T) {
	stub, client := newWikiStub(t)
	ctx := context.Background()

	got, err := client.ResolveLink(ctx, "Київ#Історія")
	require.NoError(t, err)
	assert.Equal(t, stub.server.URL+"/wiki/Київ#Історія", got)

	got, err = client.ResolveLink(ctx, "Тарас Шевченко#Ранні роки")
	require.NoError(t, err)
	assert.Equal(t, stub.server.URL+"/wiki/Тарас_Шевченко#Ранні_роки", got)

	// The section survives a redirect.
	got, err = client.ResolveLink(ctx, "Kiev#History")
	require.NoError(t, err)
	assert.Equal(t, stub.server.URL+"/wiki/Київ#History", got)

	got, err = client.ResolveLink(ctx, "#Історія")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWikiClient_RequestTimeouts(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client := NewWikiClient(WikiClientConfig{
		APIURL:         server.URL + "/w/api.php",
		SiteURL:        server.URL,
		WikidataURL:    server.URL + "/wd/api.php",
		CommonsURL:     server.URL + "/c/api.php",
		UserAgent:      testUserAgent,
		RequestTimeout: 50 * time.Millisecond,
		LinkTimeout:    50 * time.Millisecond,
	}, server.Client())
	ctx := context.Background()

	started := time.Now()
	page, err := client.SearchByTitle(ctx, "Київ")
	assert.Error(t, err)
	assert.Nil(t, page)
	assert.Less(t, time.Since(started), time.Second)

	started = time.Now()
	link, err := client.ResolveLink(ctx, "Київ")
	assert.Error(t, err)
	assert.Empty(t, link)
	assert.Less(t, time.Since(started), time.Second)

	// The caller's context is untouched by the per-request deadline.
	assert.NoError(t, ctx.Err())
}

func TestWikiClient_DownloadJPEG(t *testing.T) {
	stub, client := newWikiStub(t)
	ctx := context.Background()

	body, err := client.DownloadJPEG(ctx, stub.server.URL+"/img/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, body)

	body, err = client.DownloadJPEG(ctx, stub.server.URL+"/img/a.png")
	require.NoError(t, err)
	assert.Nil(t, body)

	body, err = client.DownloadJPEG(ctx, stub.server.URL+"/img/missing.jpg")
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestWikiClient_StructuredProperties(t *testing.T) {
	_, client := newWikiStub(t)
	ctx := context.Background()
	page := &entities.Page{Title: "Київ", ItemID: "Q1899"}

	date, err := client.FetchDateProperty(ctx, page, entities.PropBirthDate)
	require.NoError(t, err)
	assert.Equal(t, &entities.Date{Day: 9, Month: 3, Year: 1814}, date)

	date, err = client.FetchDateProperty(ctx, page, entities.PropDeathDate)
	require.NoError(t, err)
	assert.Nil(t, date)

	gender, err := client.FetchGenderProperty(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, entities.GenderFemale, gender)

	coords, err := client.FetchCoordinateProperty(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, &entities.Coordinates{Latitude: 50.45, Longitude: 30.5233}, coords)

	image, err := client.FetchImageProperty(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, &entities.ImageRef{URL: "https://upload/640px.jpg", DescriptionURL: "https://commons/File:Kyiv_montage.jpg"}, image)

	category, err := client.FetchCategoryProperty(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, "Kyiv", category)

	values, err := client.FetchTextListProperty(ctx, page, entities.PropFieldOfWork)
	require.NoError(t, err)
	assert.Equal(t, []string{"поезія", "живопис", "графіка"}, values)
}

func TestWikiClient_PageWithoutItem(t *testing.T) {
	stub, client := newWikiStub(t)
	page := &entities.Page{Title: "Сторінка"}

	date, err := client.FetchDateProperty(context.Background(), page, entities.PropBirthDate)
	require.NoError(t, err)
	assert.Nil(t, date)

	gender, err := client.FetchGenderProperty(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, entities.GenderUnknown, gender)
	assert.Zero(t, stub.requestCount())
}

func TestParseWikidataTime(t *testing.T) {
	tests := []struct {
		in   string
		want entities.Date
		ok   bool
	}{
		{"+1814-03-09T00:00:00Z", entities.Date{Day: 9, Month: 3, Year: 1814}, true},
		{"+2009-06-25T00:00:00Z", entities.Date{Day: 25, Month: 6, Year: 2009}, true},
		{"-0044-03-15T00:00:00Z", entities.Date{Day: 15, Month: 3, Year: -44}, true},
		{"+1814-00-00T00:00:00Z", entities.Date{}, false},
		{"1814-03-09", entities.Date{}, false},
		{"", entities.Date{}, false},
	}
	for _, tt := range tests {
		got, ok := parseWikidataTime(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
