package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/nerrad567/pettracker-core/internal/infrastructure/config"
)

// Bot API client settings.
const (
	telegramTimeout      = 10 * time.Second
	telegramRetries      = 3
	telegramRetryWait    = 500 * time.Millisecond
	telegramRetryMaxWait = 5 * time.Second
	secondsPerMinute     = 60
	defaultTelegramBurst = 1
)

// sendMessageRequest is the body of the Bot API sendMessage method.
type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// botResponse is the envelope of every Bot API reply.
type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Telegram sends notifications through the Telegram Bot API. Addressees
// are numeric chat IDs.
type Telegram struct {
	client  *resty.Client
	token   string
	limiter *ChatLimiter
	logger  Logger
}

// NewTelegram creates a Bot API notifier from cfg.
// Returns ErrDisabled when Telegram is not enabled.
func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = defaultTelegramBurst
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(telegramTimeout).
		SetRetryCount(telegramRetries).
		SetRetryWaitTime(telegramRetryWait).
		SetRetryMaxWaitTime(telegramRetryMaxWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Telegram{
		client:  client,
		token:   cfg.Token,
		limiter: NewChatLimiter(rateLimit(cfg.RatePerMinute), burst),
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger for the notifier.
func (t *Telegram) SetLogger(logger Logger) {
	t.logger = logger
}

// Notify sends message to the chat named by addressee.
func (t *Telegram) Notify(ctx context.Context, addressee, message string) error {
	if addressee == "" {
		return ErrNoAddressee
	}
	chatID, err := strconv.ParseInt(addressee, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: chat id %q", ErrNoAddressee, addressee)
	}

	if !t.limiter.Allow(addressee) {
		t.logger.Warn("telegram notification dropped", "chat_id", chatID)
		return ErrRateLimited
	}

	var result botResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{ChatID: chatID, Text: message}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode(), result.Description)
	}

	t.logger.Debug("telegram notification sent", "chat_id", chatID)
	return nil
}

func rateLimit(perMinute float64) rate.Limit {
	if perMinute <= 0 {
		return rate.Inf
	}
	return rate.Limit(perMinute / secondsPerMinute)
}
