package notify

import (
	"context"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"apartmenthunter/internal/models"
)

// Notifier delivers one accepted listing over some channel.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, l *models.Listing) error
}

// LogNotifier writes accepted listings to the log. It always succeeds.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Channel() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, l *models.Listing) error {
	n.logger.WithFields(logrus.Fields{
		"fingerprint": l.Fingerprint,
		"title":       l.Title,
		"price":       l.Price,
		"rooms":       l.Rooms,
		"location":    l.Location,
		"url":         l.URL,
		"description": preview(l.Description, 100),
	}).Info("Apartment matched")
	return nil
}

// FormatMessage renders a listing as Telegram HTML.
func FormatMessage(l *models.Listing) string {
	var b strings.Builder
	b.WriteString("<b>New Apartment Found!</b>\n\n")
	fmt.Fprintf(&b, "🏠 %s\n", html.EscapeString(l.Title))
	fmt.Fprintf(&b, "💰 %.0f₪ per month\n", l.Price)
	fmt.Fprintf(&b, "🚪 Rooms: %g\n", l.Rooms)
	if l.Location != "" {
		fmt.Fprintf(&b, "📍 %s\n", html.EscapeString(l.Location))
	}
	if l.SizeArea != nil {
		fmt.Fprintf(&b, "📐 %.0f m²\n", *l.SizeArea)
	}
	if d := preview(l.Description, 100); d != "" {
		fmt.Fprintf(&b, "📝 %s\n", html.EscapeString(d))
	}
	if l.URL != "" {
		fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">View listing</a>", html.EscapeString(l.URL))
	}
	return b.String()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
