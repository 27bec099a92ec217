package usecases

import (
	"context"
	"fmt"
	"strings"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
	"ukwikibot/pkg/log"
)

// argHandler produces the items for one captured argument. Static
// handlers are invoked once with an empty argument.
type argHandler func(ctx context.Context, arg string) ([]entities.ResponseItem, error)

type route struct {
	perArgument bool
	handle      argHandler
}

type DispatcherOptions struct {
	SummarySentences int
	CategoryBaseURL  string
}

// Dispatcher runs the fetch and format pipeline bound to each intent.
type Dispatcher struct {
	knowledge  interfaces.KnowledgeClient
	normalizer *Normalizer
	opts       DispatcherOptions
	routes     map[entities.Intent]route
}

func NewDispatcher(knowledge interfaces.KnowledgeClient, normalizer *Normalizer, opts DispatcherOptions) *Dispatcher {
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = 7
	}
	if opts.CategoryBaseURL == "" {
		opts.CategoryBaseURL = "https://commons.wikimedia.org/wiki/Category:"
	}

	d := &Dispatcher{
		knowledge:  knowledge,
		normalizer: normalizer,
		opts:       opts,
	}
	d.routes = map[entities.Intent]route{
		entities.IntentWiki:        {handle: constant(WikiHomeURL)},
		entities.IntentHelp:        {handle: constant(HelpText)},
		entities.IntentUkWikiBot:   {handle: constant(MentionReply)},
		entities.IntentRandom:      {handle: d.random},
		entities.IntentWhatIs:      {perArgument: true, handle: d.whatIs},
		entities.IntentLink:        {perArgument: true, handle: d.link},
		entities.IntentBirthday:    {perArgument: true, handle: d.lifeDate(entities.PropBirthDate, BirthVerb)},
		entities.IntentDeathday:    {perArgument: true, handle: d.lifeDate(entities.PropDeathDate, DeathVerb)},
		entities.IntentFieldOfWork: {perArgument: true, handle: d.textList(entities.PropFieldOfWork)},
		entities.IntentEducation:   {perArgument: true, handle: d.textList(entities.PropEducatedAt)},
		entities.IntentCoords:      {perArgument: true, handle: d.coordinates(false)},
		entities.IntentCoordsGen:   {perArgument: true, handle: d.coordinates(true)},
		entities.IntentImage:       {perArgument: true, handle: d.image},
	}
	return d
}

// Handles reports whether intent has a bound handler.
func (d *Dispatcher) Handles(intent entities.Intent) bool {
	_, ok := d.routes[intent]
	return ok
}

// Dispatch never fails: lookup errors are logged and the items produced
// so far are returned. Arguments are processed sequentially in order.
func (d *Dispatcher) Dispatch(ctx context.Context, intent entities.Intent, args []string) entities.Response {
	resp := entities.Response{
		Intent: intent,
		Kind:   intent.Kind(),
		Items:  []entities.ResponseItem{},
	}

	r, ok := d.routes[intent]
	if !ok {
		log.WithRequestID(ctx).WithField("intent", intent).Warn("[Dispatcher.Dispatch] no handler bound")
		return resp
	}

	if !r.perArgument {
		args = []string{""}
	}
	for _, arg := range args {
		if ctx.Err() != nil {
			break
		}
		items, err := d.safeHandle(ctx, r.handle, arg)
		if err != nil {
			log.ErrorWithTraceID(log.Fields{
				log.RequestIDKey: log.RequestID(ctx),
				"intent":         intent,
				"argument":       arg,
				"error":          err.Error(),
			}, "[Dispatcher.Dispatch] lookup failed")
		}
		resp.Items = append(resp.Items, items...)
	}
	return resp
}

func (d *Dispatcher) safeHandle(ctx context.Context, h argHandler, arg string) (items []entities.ResponseItem, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			items = nil
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, arg)
}

func constant(text string) argHandler {
	return func(context.Context, string) ([]entities.ResponseItem, error) {
		return []entities.ResponseItem{entities.TextItem(text)}, nil
	}
}

// search looks a query up by title, optionally reducing it to its
// nominative form first.
func (d *Dispatcher) search(ctx context.Context, query string, genitive bool) (*entities.Page, error) {
	if genitive {
		query = d.normalizer.Normalize(ctx, query)
	}
	page, err := d.knowledge.SearchByTitle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if page == nil {
		log.WithRequestID(ctx).WithField("query", query).Info("[Dispatcher.search] page not found")
	}
	return page, nil
}

func (d *Dispatcher) summary(ctx context.Context, page *entities.Page) ([]entities.ResponseItem, error) {
	extract, err := d.knowledge.ExtractSummary(ctx, page, d.opts.SummarySentences)
	if err != nil {
		return nil, fmt.Errorf("summary of %q: %w", page.Title, err)
	}
	return []entities.ResponseItem{entities.TextItem(strings.TrimLeft(FormatSummary(extract, page.URL), "\n"))}, nil
}

func (d *Dispatcher) random(ctx context.Context, _ string) ([]entities.ResponseItem, error) {
	page, err := d.knowledge.RandomPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("random page: %w", err)
	}
	if page == nil {
		return nil, nil
	}
	return d.summary(ctx, page)
}

func (d *Dispatcher) whatIs(ctx context.Context, arg string) ([]entities.ResponseItem, error) {
	query := queryArg(arg)
	if query == "" {
		return nil, nil
	}
	page, err := d.search(ctx, query, false)
	if err != nil || page == nil {
		return nil, err
	}
	return d.summary(ctx, page)
}

func (d *Dispatcher) link(ctx context.Context, arg string) ([]entities.ResponseItem, error) {
	title := strings.TrimSpace(arg)
	if title == "" {
		return nil, nil
	}
	resolved, err := d.knowledge.ResolveLink(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", title, err)
	}
	if resolved == "" {
		log.WithRequestID(ctx).WithField("title", title).Info("[Dispatcher.link] link does not resolve")
		return nil, nil
	}
	return []entities.ResponseItem{entities.TextItem(EscapeText(resolved))}, nil
}

func (d *Dispatcher) lifeDate(propertyID string, verb func(entities.Gender) string) argHandler {
	return func(ctx context.Context, arg string) ([]entities.ResponseItem, error) {
		query := queryArg(arg)
		if query == "" {
			return nil, nil
		}
		page, err := d.search(ctx, query, true)
		if err != nil || page == nil {
			return nil, err
		}

		date, err := d.knowledge.FetchDateProperty(ctx, page, propertyID)
		if err != nil {
			return nil, fmt.Errorf("%s of %q: %w", propertyID, page.Title, err)
		}
		if date == nil {
			return nil, nil
		}
		formatted := FormatDate(*date)
		if formatted == "" {
			return nil, nil
		}

		gender, err := d.knowledge.FetchGenderProperty(ctx, page)
		if err != nil {
			log.WithRequestID(ctx).WithFields(log.Fields{
				"page":  page.Title,
				"error": err.Error(),
			}).Warn("[Dispatcher.lifeDate] gender lookup failed")
			gender = entities.GenderUnknown
		}

		text := fmt.Sprintf("%s %s %s", EscapeText(page.Title), verb(gender), formatted)
		return []entities.ResponseItem{entities.TextItem(text)}, nil
	}
}

func (d *Dispatcher) coordinates(genitive bool) argHandler {
	return func(ctx context.Context, arg string) ([]entities.ResponseItem, error) {
		query := queryArg(arg)
		if query == "" {
			return nil, nil
		}
		page, err := d.search(ctx, query, genitive)
		if err != nil || page == nil {
			return nil, err
		}
		coords, err := d.knowledge.FetchCoordinateProperty(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("coordinates of %q: %w", page.Title, err)
		}
		if coords == nil {
			return nil, nil
		}
		return []entities.ResponseItem{entities.CoordinatesItem(*coords)}, nil
	}
}

func (d *Dispatcher) textList(propertyID string) argHandler {
	return func(ctx context.Context, arg string) ([]entities.ResponseItem, error) {
		query := queryArg(arg)
		if query == "" {
			return nil, nil
		}
		page, err := d.search(ctx, query, true)
		if err != nil || page == nil {
			return nil, err
		}
		values, err := d.knowledge.FetchTextListProperty(ctx, page, propertyID)
		if err != nil {
			return nil, fmt.Errorf("%s of %q: %w", propertyID, page.Title, err)
		}
		if len(values) == 0 {
			return nil, nil
		}
		return []entities.ResponseItem{entities.TextItem(EscapeText(strings.Join(values, ", ")))}, nil
	}
}

func (d *Dispatcher) image(ctx context.Context, arg string) ([]entities.ResponseItem, error) {
	query := queryArg(arg)
	if query == "" {
		return nil, nil
	}
	page, err := d.search(ctx, query, true)
	if err != nil || page == nil {
		return nil, err
	}

	ref, err := d.knowledge.FetchImageProperty(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("image of %q: %w", page.Title, err)
	}
	category, err := d.knowledge.FetchCategoryProperty(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("category of %q: %w", page.Title, err)
	}

	var content []byte
	var descriptionURL string
	if ref != nil && ref.URL != "" && ref.DescriptionURL != "" {
		descriptionURL = ref.DescriptionURL
		content, err = d.knowledge.DownloadJPEG(ctx, ref.URL)
		if err != nil {
			// Keep the caption when the photo cannot be fetched.
			log.WithRequestID(ctx).WithFields(log.Fields{
				"url":   ref.URL,
				"error": err.Error(),
			}).Warn("[Dispatcher.image] download failed")
			content = nil
		}
	}

	item, ok := entities.ImageItem(content, ImageCaption(descriptionURL, category, d.opts.CategoryBaseURL))
	if !ok {
		return nil, nil
	}
	return []entities.ResponseItem{item}, nil
}
