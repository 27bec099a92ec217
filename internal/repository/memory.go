package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
)

var (
	_ interfaces.UserStore     = (*MemoryUserStore)(nil)
	_ interfaces.UsageRecorder = (*MemoryUsageStore)(nil)
)

// MemoryUserStore keeps operator accounts in process memory. It is used
// when no database is configured.
type MemoryUserStore struct {
	mu     sync.RWMutex
	nextID int
	users  map[string]entities.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]entities.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *entities.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return ErrDuplicateUser
	}
	s.nextID++
	user.ID = s.nextID
	s.users[user.Username] = *user
	return nil
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

type usageKey struct {
	date     string
	platform string
	intent   entities.Intent
}

type MemoryUsageStore struct {
	mu     sync.Mutex
	now    func() time.Time
	counts map[usageKey]*entities.IntentUsage
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{now: time.Now, counts: make(map[usageKey]*entities.IntentUsage)}
}

func (s *MemoryUsageStore) RecordIntent(_ context.Context, platform string, intent entities.Intent, items int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	key := usageKey{date: day.Format("2006-01-02"), platform: platform, intent: intent}

	u, ok := s.counts[key]
	if !ok {
		u = &entities.IntentUsage{Date: day, Platform: platform, Intent: intent}
		s.counts[key] = u
	}
	u.Messages++
	u.Items += items
	return nil
}

func (s *MemoryUsageStore) UsageSince(_ context.Context, since time.Time) ([]entities.IntentUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := since.Format("2006-01-02")
	usage := []entities.IntentUsage{}
	for key, u := range s.counts {
		if key.date >= cutoff {
			usage = append(usage, *u)
		}
	}
	sort.Slice(usage, func(i, j int) bool {
		a, b := usage[i], usage[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.Intent < b.Intent
	})
	return usage, nil
}
