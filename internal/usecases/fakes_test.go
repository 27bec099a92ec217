package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"ukwikibot/internal/entities"
)

var errBackend = errors.New("backend unavailable")

// fakeAnalyzer answers from a fixed table keyed by the exact word.
type fakeAnalyzer struct {
	words  map[string][]entities.Analysis
	failOn map[string]bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, word string) ([]entities.Analysis, error) {
	if f.failOn[word] {
		return nil, errBackend
	}
	return f.words[word], nil
}

func gent(form string) entities.Analysis { return entities.Analysis{NormalForm: form, Case: "gent"} }
func nomn(form string) entities.Analysis { return entities.Analysis{NormalForm: form, Case: "nomn"} }

// fakeKnowledge is an in-memory knowledge service keyed by page title.
type fakeKnowledge struct {
	mu sync.Mutex

	pages      map[string]*entities.Page
	summaries  map[string]string
	links      map[string]string
	dates      map[string]*entities.Date
	genders    map[string]entities.Gender
	coords     map[string]*entities.Coordinates
	images     map[string]*entities.ImageRef
	categories map[string]string
	lists      map[string][]string
	jpegs      map[string][]byte
	random     *entities.Page

	failSearch   map[string]bool
	slowSearch   map[string]bool
	failLink     map[string]bool
	panicLink    map[string]bool
	failGender   bool
	failDownload bool

	searched []string
}

func newFakeKnowledge() *fakeKnowledge {
	return &fakeKnowledge{
		pages:      map[string]*entities.Page{},
		summaries:  map[string]string{},
		links:      map[string]string{},
		dates:      map[string]*entities.Date{},
		genders:    map[string]entities.Gender{},
		coords:     map[string]*entities.Coordinates{},
		images:     map[string]*entities.ImageRef{},
		categories: map[string]string{},
		lists:      map[string][]string{},
		jpegs:      map[string][]byte{},
		failSearch: map[string]bool{},
		slowSearch: map[string]bool{},
		failLink:   map[string]bool{},
		panicLink:  map[string]bool{},
	}
}

func (f *fakeKnowledge) addPage(title string) *entities.Page {
	p := &entities.Page{ID: int64(len(f.pages) + 1), Title: title, URL: "https://uk.wikipedia.org/wiki/" + title, ItemID: "Q" + title}
	f.pages[title] = p
	return p
}

// fetchTimeout stands in for the per-request deadline of the real client.
const fetchTimeout = 20 * time.Millisecond

func (f *fakeKnowledge) SearchByTitle(ctx context.Context, query string) (*entities.Page, error) {
	f.mu.Lock()
	f.searched = append(f.searched, query)
	f.mu.Unlock()
	if f.failSearch[query] {
		return nil, errBackend
	}
	if f.slowSearch[query] {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.pages[query], nil
}

func (f *fakeKnowledge) RandomPage(context.Context) (*entities.Page, error) {
	return f.random, nil
}

func (f *fakeKnowledge) ResolveLink(_ context.Context, title string) (string, error) {
	if f.panicLink[title] {
		panic("boom")
	}
	if f.failLink[title] {
		return "", errBackend
	}
	return f.links[title], nil
}

func (f *fakeKnowledge) ExtractSummary(_ context.Context, page *entities.Page, _ int) (string, error) {
	return f.summaries[page.Title], nil
}

func (f *fakeKnowledge) FetchDateProperty(_ context.Context, page *entities.Page, propertyID string) (*entities.Date, error) {
	return f.dates[page.Title+"/"+propertyID], nil
}

func (f *fakeKnowledge) FetchCoordinateProperty(_ context.Context, page *entities.Page) (*entities.Coordinates, error) {
	return f.coords[page.Title], nil
}

func (f *fakeKnowledge) FetchGenderProperty(_ context.Context, page *entities.Page) (entities.Gender, error) {
	if f.failGender {
		return entities.GenderUnknown, errBackend
	}
	if g, ok := f.genders[page.Title]; ok {
		return g, nil
	}
	return entities.GenderUnknown, nil
}

func (f *fakeKnowledge) FetchImageProperty(_ context.Context, page *entities.Page) (*entities.ImageRef, error) {
	return f.images[page.Title], nil
}

func (f *fakeKnowledge) FetchCategoryProperty(_ context.Context, page *entities.Page) (string, error) {
	return f.categories[page.Title], nil
}

func (f *fakeKnowledge) FetchTextListProperty(_ context.Context, page *entities.Page, propertyID string) ([]string, error) {
	return f.lists[page.Title+"/"+propertyID], nil
}

func (f *fakeKnowledge) DownloadJPEG(_ context.Context, url string) ([]byte, error) {
	if f.failDownload {
		return nil, errBackend
	}
	return f.jpegs[url], nil
}
