package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
	"ukwikibot/pkg/log"
)

var (
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrNoIntent    = errors.New("message does not address the bot")
)

// RateLimiter admits or drops messages per key.
type RateLimiter interface {
	Allow(key string) bool
}

// ChatQueue runs work for one chat in submission order.
type ChatQueue interface {
	Submit(chatID string, fn func())
}

// MessageService takes inbound messages from every transport through
// classification, dispatch and delivery.
type MessageService struct {
	router     *Router
	dispatcher *Dispatcher
	limiter    RateLimiter
	queue      ChatQueue
	usage      interfaces.UsageRecorder

	mu       sync.RWMutex
	gateways map[string]interfaces.Gateway
}

func NewMessageService(router *Router, dispatcher *Dispatcher, limiter RateLimiter, queue ChatQueue, usage interfaces.UsageRecorder) *MessageService {
	return &MessageService{
		router:     router,
		dispatcher: dispatcher,
		limiter:    limiter,
		queue:      queue,
		usage:      usage,
		gateways:   make(map[string]interfaces.Gateway),
	}
}

// RegisterGateway binds the gateway that renders replies for platform.
func (s *MessageService) RegisterGateway(platform string, gw interfaces.Gateway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateways[platform] = gw
}

func (s *MessageService) gateway(platform string) (interfaces.Gateway, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gw, ok := s.gateways[platform]
	return gw, ok
}

// Classify exposes the router.
func (s *MessageService) Classify(text string) (Match, bool) {
	return s.router.Classify(text)
}

// Ask answers text without delivering, rate limiting or recording usage.
func (s *MessageService) Ask(ctx context.Context, text string) (entities.Response, error) {
	match, ok := s.router.Classify(text)
	if !ok {
		return entities.Response{}, ErrNoIntent
	}
	return s.dispatcher.Dispatch(ctx, match.Intent, match.Args), nil
}

// Handle queues msg behind earlier messages of the same chat.
func (s *MessageService) Handle(ctx context.Context, msg entities.Message) {
	key := msg.Platform + ":" + msg.ChatID
	if s.queue == nil {
		_, _ = s.Process(ctx, msg)
		return
	}
	s.queue.Submit(key, func() {
		_, _ = s.Process(ctx, msg)
	})
}

// Process answers msg synchronously. The response is delivered when a
// gateway is registered for the message's platform and returned either way.
func (s *MessageService) Process(ctx context.Context, msg entities.Message) (entities.Response, error) {
	ctx = log.ContextWithRequestID(ctx, ulid.Make().String())
	logger := log.WithRequestID(ctx).WithFields(log.Fields{
		"platform": msg.Platform,
		"chat_id":  msg.ChatID,
	})

	if s.limiter != nil && !s.limiter.Allow(msg.Platform+":"+msg.ChatID) {
		logger.Warn("[MessageService.Process] message dropped by rate limiter")
		return entities.Response{}, ErrRateLimited
	}

	match, ok := s.router.Classify(msg.Content)
	if !ok {
		logger.Debug("[MessageService.Process] no intent")
		return entities.Response{}, ErrNoIntent
	}

	start := time.Now()
	resp := s.dispatcher.Dispatch(ctx, match.Intent, match.Args)
	logger.WithFields(log.Fields{
		"intent":   match.Intent,
		"args":     len(match.Args),
		"items":    len(resp.Items),
		"duration": time.Since(start).String(),
	}).Info("[MessageService.Process] dispatched")

	if s.usage != nil {
		if err := s.usage.RecordIntent(ctx, msg.Platform, match.Intent, len(resp.Items)); err != nil {
			logger.WithError(err).Warn("[MessageService.Process] failed to record usage")
		}
	}

	gw, ok := s.gateway(msg.Platform)
	if !ok {
		return resp, nil
	}
	if err := gw.Deliver(ctx, msg.ChatID, resp); err != nil {
		traceID := log.ErrorWithTraceID(log.Fields{
			log.RequestIDKey: log.RequestID(ctx),
			"platform":       msg.Platform,
			"chat_id":        msg.ChatID,
			"error":          err.Error(),
		}, "[MessageService.Process] delivery failed")
		return resp, fmt.Errorf("deliver (trace %s): %w", traceID, err)
	}
	return resp, nil
}
