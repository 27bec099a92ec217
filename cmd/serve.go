package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/infrastructure"
	httpapi "ukwikibot/internal/interfaces/http"
	"ukwikibot/internal/usecases"
	"ukwikibot/pkg/log"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot on every enabled transport",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info(log.Fields{"components": describe(cfg)}, "[serve] starting")

	handle := func(msg entities.Message) { a.service.Handle(ctx, msg) }

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.limiter.Run(ctx)
		return nil
	})

	if cfg.Telegram.Enabled {
		tg, err := infrastructure.NewTelegramClient(cfg.Telegram.Token, cfg.Telegram.Debug)
		if err != nil {
			return err
		}
		if err := tg.RegisterCommands(a.router.Commands()); err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "[serve] failed to register bot commands")
		}
		a.service.RegisterGateway(entities.PlatformTelegram, tg)

		poller := infrastructure.NewTelegramPoller(tg, cfg.Telegram.PollTimeout, handle)
		g.Go(func() error { return poller.Run(ctx) })
	} else {
		log.Info(nil, "[serve] telegram disabled")
	}

	var whatsApp *infrastructure.WhatsAppClient
	if cfg.WhatsApp.Enabled {
		whatsApp, err = infrastructure.NewWhatsAppClient(ctx, cfg.WhatsApp.DevicePath)
		if err != nil {
			return err
		}
		whatsApp.OnMessage(handle)
		if err := whatsApp.Connect(ctx); err != nil {
			return err
		}
		a.service.RegisterGateway(entities.PlatformWhatsApp, whatsApp)
		g.Go(func() error {
			<-ctx.Done()
			whatsApp.Disconnect()
			return nil
		})
	}

	if cfg.HTTP.Enabled {
		srv, err := newHTTPServer(ctx, a, whatsApp)
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Info(log.Fields{"addr": srv.Addr}, "[serve] http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	a.sessions.Wait()
	log.Info(nil, "[serve] stopped")
	return err
}

func newHTTPServer(ctx context.Context, a *app, whatsApp *infrastructure.WhatsAppClient) (*http.Server, error) {
	cfg := a.cfg
	auth := usecases.NewAuthUsecase(a.users, cfg.HTTP.JWTSecret)
	if err := auth.EnsureAdmin(ctx, cfg.HTTP.AdminUsername, cfg.HTTP.AdminPassword); err != nil {
		return nil, err
	}

	if !cfg.IsTest() && cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	deps := httpapi.Dependencies{
		Assistant: a.service,
		Auth:      auth,
		Stats:     usecases.NewStatsUsecase(a.usage),
		Runtime:   a.limiter,
		Validator: httpapi.NewValidator(),
	}
	if whatsApp != nil {
		deps.WhatsApp = whatsApp
	}
	httpapi.SetupRoutes(r, deps, httpapi.Options{
		UserRate:     cfg.HTTP.UserRate,
		UserBurst:    cfg.HTTP.UserBurst,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, httpapi.NewMiddleware(auth))

	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
