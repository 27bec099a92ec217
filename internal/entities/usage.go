package entities

import "time"

// IntentUsage is the per-day count of handled messages for one intent.
type IntentUsage struct {
	Date     time.Time `json:"date"`
	Platform string    `json:"platform"`
	Intent   Intent    `json:"intent"`
	Messages int       `json:"messages"`
	Items    int       `json:"items"`
}
