package interfaces

import (
	"context"
	"time"

	"ukwikibot/internal/entities"
)

// PageSearcher finds pages. A miss is (nil, nil).
type PageSearcher interface {
	SearchByTitle(ctx context.Context, query string) (*entities.Page, error)
	RandomPage(ctx context.Context) (*entities.Page, error)
	// ResolveLink returns the decoded canonical URL of title, or "" when it does not exist.
	ResolveLink(ctx context.Context, title string) (string, error)
	ExtractSummary(ctx context.Context, page *entities.Page, maxSentences int) (string, error)
}

// PropertyFetcher reads typed structured-data properties of a page.
// Absent properties are zero results, not errors.
type PropertyFetcher interface {
	FetchDateProperty(ctx context.Context, page *entities.Page, propertyID string) (*entities.Date, error)
	FetchCoordinateProperty(ctx context.Context, page *entities.Page) (*entities.Coordinates, error)
	FetchGenderProperty(ctx context.Context, page *entities.Page) (entities.Gender, error)
	FetchImageProperty(ctx context.Context, page *entities.Page) (*entities.ImageRef, error)
	FetchCategoryProperty(ctx context.Context, page *entities.Page) (string, error)
	FetchTextListProperty(ctx context.Context, page *entities.Page, propertyID string) ([]string, error)
}

// ImageDownloader fetches image bytes. It returns nil bytes when the
// resource is not a JPEG image.
type ImageDownloader interface {
	DownloadJPEG(ctx context.Context, url string) ([]byte, error)
}

// KnowledgeClient is everything the dispatcher needs from the knowledge service.
type KnowledgeClient interface {
	PageSearcher
	PropertyFetcher
	ImageDownloader
}

type MorphologyAnalyzer interface {
	Analyze(ctx context.Context, word string) ([]entities.Analysis, error)
}

// Gateway renders a response on one transport. An empty response sends nothing.
type Gateway interface {
	Deliver(ctx context.Context, chatID string, resp entities.Response) error
}

type UsageRecorder interface {
	RecordIntent(ctx context.Context, platform string, intent entities.Intent, items int) error
	UsageSince(ctx context.Context, since time.Time) ([]entities.IntentUsage, error)
}

type UserStore interface {
	Create(ctx context.Context, user *entities.User) error
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
}
