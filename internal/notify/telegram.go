package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"apartmenthunter/internal/models"
)

const DefaultTelegramAPI = "https://api.telegram.org"

type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIBase  string // defaults to DefaultTelegramAPI
	Timeout  time.Duration
}

// TelegramNotifier posts listings to a chat through the Bot API.
type TelegramNotifier struct {
	logger *logrus.Logger
	client *http.Client
	config TelegramConfig
}

func NewTelegramNotifier(cfg TelegramConfig, logger *logrus.Logger) (*TelegramNotifier, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if cfg.BotToken == "" {
		return nil, errors.New("Telegram bot token is not configured")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("Telegram chat ID is not configured")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTelegramAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &TelegramNotifier{
		logger: logger,
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}, nil
}

func (t *TelegramNotifier) Channel() string { return "telegram" }

func (t *TelegramNotifier) Notify(ctx context.Context, l *models.Listing) error {
	return t.SendMessage(ctx, FormatMessage(l))
}

// SendMessage sends a message to the configured Telegram chat
func (t *TelegramNotifier) SendMessage(ctx context.Context, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.config.APIBase, "/"), t.config.BotToken)
	payload := map[string]interface{}{
		"chat_id":    t.config.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build Telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found - please check your token from @BotFather")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	t.logger.WithField("chat_id", t.config.ChatID).Debug("Telegram message sent")
	return nil
}
