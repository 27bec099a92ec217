package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
)

var _ interfaces.UsageRecorder = (*UsageRepository)(nil)

type UsageRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db, now: time.Now}
}

// RecordIntent counts one handled message and the items it produced for today.
func (r *UsageRepository) RecordIntent(ctx context.Context, platform string, intent entities.Intent, items int) error {
	today := r.now().Format("2006-01-02")
	_, err := r.db.Exec(ctx, `
		INSERT INTO intent_usage (date, platform, intent, messages, items)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (date, platform, intent)
		DO UPDATE SET messages = intent_usage.messages + 1,
		              items = intent_usage.items + EXCLUDED.items
	`, today, platform, string(intent), items)
	return err
}

// UsageSince returns daily counters starting at since, oldest first.
func (r *UsageRepository) UsageSince(ctx context.Context, since time.Time) ([]entities.IntentUsage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date, platform, intent, messages, items
		FROM intent_usage
		WHERE date >= $1
		ORDER BY date ASC, platform ASC, intent ASC
	`, since.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := []entities.IntentUsage{}
	for rows.Next() {
		var (
			u      entities.IntentUsage
			intent string
		)
		if err := rows.Scan(&u.Date, &u.Platform, &intent, &u.Messages, &u.Items); err != nil {
			return nil, err
		}
		u.Intent = entities.Intent(intent)
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
