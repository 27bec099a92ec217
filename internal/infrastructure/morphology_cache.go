package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
	"ukwikibot/pkg/log"
)

const morphologyKeyPrefix = "ukwikibot:morph:"

// CachedAnalyzer memoizes analyses in Redis. Cache failures fall through
// to the wrapped analyzer.
type CachedAnalyzer struct {
	next   interfaces.MorphologyAnalyzer
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	log.Info(log.Fields{"address": addr}, "[infrastructure.NewRedisClient] connected to redis")
	return client, nil
}

func NewCachedAnalyzer(next interfaces.MorphologyAnalyzer, client *redis.Client, ttl time.Duration) *CachedAnalyzer {
	return &CachedAnalyzer{next: next, client: client, ttl: ttl}
}

func morphologyKey(word string) string {
	return morphologyKeyPrefix + strings.ToLower(word)
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, word string) ([]entities.Analysis, error) {
	key := morphologyKey(word)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var analyses []entities.Analysis
		if err := json.Unmarshal(cached, &analyses); err == nil {
			return analyses, nil
		}
	case !errors.Is(err, redis.Nil):
		log.WithRequestID(ctx).WithFields(log.Fields{
			"key":   key,
			"error": err.Error(),
		}).Warn("[CachedAnalyzer.Analyze] cache read failed")
	}

	analyses, err := c.next.Analyze(ctx, word)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(analyses)
	if err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			log.WithRequestID(ctx).WithFields(log.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("[CachedAnalyzer.Analyze] cache write failed")
		}
	}
	return analyses, nil
}
