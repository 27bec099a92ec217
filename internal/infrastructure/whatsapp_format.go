package infrastructure

import (
	"html"
	"regexp"

	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"

	"ukwikibot/pkg/log"
)

var (
	boldTagRe   = regexp.MustCompile(`(?s)<b>(.*?)</b>`)
	anchorTagRe = regexp.MustCompile(`(?s)<a href="([^"]*)">(.*?)</a>`)
	anyTagRe    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// HTMLToWhatsApp rewrites the bot's HTML subset into WhatsApp markup:
// <b>x</b> becomes *x* and links become "text (url)".
func HTMLToWhatsApp(s string) string {
	s = boldTagRe.ReplaceAllString(s, "*$1*")
	s = anchorTagRe.ReplaceAllString(s, "$2 ($1)")
	s = anyTagRe.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// whatsAppLogger routes whatsmeow logs into the application logger.
type whatsAppLogger struct {
	entry *logrus.Entry
}

func NewWhatsAppLogger(module string) waLog.Logger {
	return &whatsAppLogger{entry: log.NewLogger().WithField("module", "whatsmeow/"+module)}
}

func (l *whatsAppLogger) Debugf(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }
func (l *whatsAppLogger) Infof(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l *whatsAppLogger) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *whatsAppLogger) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }

func (l *whatsAppLogger) Sub(module string) waLog.Logger {
	return &whatsAppLogger{entry: l.entry.WithField("module", l.entry.Data["module"].(string)+"/"+module)}
}
