package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"ukwikibot/internal/config"
	"ukwikibot/internal/infrastructure"
	"ukwikibot/internal/interfaces"
	"ukwikibot/internal/repository"
	"ukwikibot/internal/usecases"
	"ukwikibot/pkg/log"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg        *config.Config
	router     *usecases.Router
	dispatcher *usecases.Dispatcher
	limiter    *infrastructure.MessageRateLimiter
	sessions   *infrastructure.SessionManager
	service    *usecases.MessageService
	users      interfaces.UserStore
	usage      interfaces.UsageRecorder

	pg    *infrastructure.PostgresClient
	redis *redis.Client
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	httpClient := infrastructure.NewHTTPClient()

	wiki := infrastructure.NewWikiClient(infrastructure.WikiClientConfig{
		APIURL:         cfg.Wiki.APIURL,
		SiteURL:        cfg.Wiki.SiteURL,
		WikidataURL:    cfg.Wiki.WikidataURL,
		CommonsURL:     cfg.Wiki.CommonsURL,
		Language:       cfg.Wiki.Language,
		UserAgent:      cfg.Wiki.UserAgent,
		RequestTimeout: cfg.Wiki.RequestTimeout,
		LinkTimeout:    cfg.Wiki.LinkTimeout,
		ThumbWidth:     cfg.Wiki.ThumbWidth,
	}, httpClient)

	analyzer, err := a.newAnalyzer(ctx, httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.router = usecases.NewRouter()
	a.dispatcher = usecases.NewDispatcher(wiki, usecases.NewNormalizer(analyzer), usecases.DispatcherOptions{
		SummarySentences: cfg.Wiki.SummarySentences,
		CategoryBaseURL:  cfg.Wiki.CategoryURL,
	})

	if cfg.Database.URL != "" {
		pg, err := infrastructure.NewPostgresClient(ctx, cfg.Database.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.pg = pg
		a.users = repository.NewUserRepository(pg.Pool)
		a.usage = repository.NewUsageRepository(pg.Pool)
	} else {
		log.Warn(nil, "[app] DATABASE_URL not set, keeping users and usage in memory")
		a.users = repository.NewMemoryUserStore()
		a.usage = repository.NewMemoryUsageStore()
	}

	a.limiter = infrastructure.NewMessageRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	a.sessions = infrastructure.NewSessionManager()
	a.service = usecases.NewMessageService(a.router, a.dispatcher, a.limiter, a.sessions, a.usage)
	return a, nil
}

func (a *app) newAnalyzer(ctx context.Context, httpClient *http.Client) (interfaces.MorphologyAnalyzer, error) {
	var analyzer interfaces.MorphologyAnalyzer
	switch a.cfg.Morphology.Driver {
	case "dictionary":
		dict, err := infrastructure.LoadDictionaryAnalyzer(a.cfg.Morphology.DictionaryPath)
		if err != nil {
			return nil, err
		}
		analyzer = dict
	default:
		analyzer = infrastructure.NewMorphologyClient(a.cfg.Morphology.URL, a.cfg.Morphology.Timeout, httpClient)
	}

	if a.cfg.Redis.Address == "" {
		return analyzer, nil
	}
	client, err := infrastructure.NewRedisClient(ctx, a.cfg.Redis.Address, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		// The cache is optional.
		log.Warn(log.Fields{"error": err.Error()}, "[app] redis unavailable, morphology cache disabled")
		return analyzer, nil
	}
	a.redis = client
	return infrastructure.NewCachedAnalyzer(analyzer, client, a.cfg.Redis.TTL), nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}

func describe(cfg *config.Config) string {
	return fmt.Sprintf("telegram=%t whatsapp=%t http=%t morphology=%s", cfg.Telegram.Enabled, cfg.WhatsApp.Enabled, cfg.HTTP.Enabled, cfg.Morphology.Driver)
}
