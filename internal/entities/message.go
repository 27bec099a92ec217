package entities

import "time"

type Message struct {
	ID         string
	ChatID     string
	From       string
	Content    string
	Platform   string // e.g., "whatsapp", "web", "telegram", "cli"
	ReceivedAt time.Time
}

const (
	PlatformTelegram = "telegram"
	PlatformWhatsApp = "whatsapp"
	PlatformWeb      = "web"
	PlatformCLI      = "cli"
)
