package usecases

import (
	"context"
	"sort"
	"time"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
)

// UsageStats summarizes handled messages over a window of days.
type UsageStats struct {
	Since      time.Time               `json:"since"`
	Messages   int                     `json:"messages"`
	Items      int                     `json:"items"`
	ByIntent   map[entities.Intent]int `json:"by_intent"`
	ByPlatform map[string]int          `json:"by_platform"`
	Daily      []entities.IntentUsage  `json:"daily"`
	TopIntents []entities.Intent       `json:"top_intents"`
}

type StatsUsecase struct {
	usage interfaces.UsageRecorder
	now   func() time.Time
}

func NewStatsUsecase(usage interfaces.UsageRecorder) *StatsUsecase {
	return &StatsUsecase{usage: usage, now: time.Now}
}

// Summary aggregates the last days of usage, today included.
func (uc *StatsUsecase) Summary(ctx context.Context, days int) (*UsageStats, error) {
	if days < 1 {
		days = 1
	}
	now := uc.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	rows, err := uc.usage.UsageSince(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{
		Since:      since,
		ByIntent:   make(map[entities.Intent]int),
		ByPlatform: make(map[string]int),
		Daily:      rows,
	}
	for _, r := range rows {
		stats.Messages += r.Messages
		stats.Items += r.Items
		stats.ByIntent[r.Intent] += r.Messages
		stats.ByPlatform[r.Platform] += r.Messages
	}

	for intent := range stats.ByIntent {
		stats.TopIntents = append(stats.TopIntents, intent)
	}
	sort.Slice(stats.TopIntents, func(i, j int) bool {
		a, b := stats.TopIntents[i], stats.TopIntents[j]
		if stats.ByIntent[a] != stats.ByIntent[b] {
			return stats.ByIntent[a] > stats.ByIntent[b]
		}
		return a < b
	})
	return stats, nil
}
