package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Updater is the long-polling half of *tgbotapi.BotAPI.
type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// RetryDelayFromError picks a backoff for a failed getUpdates call.
func RetryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

const (
	pollBaseDelay = 1 * time.Second
	pollMaxDelay  = 15 * time.Second
	pollIdleDelay = 200 * time.Millisecond
	pollTimeout   = 30 // long polling timeout (sec)
)

// RunPolling fetches updates until ctx is done, backing off on errors.
func RunPolling(ctx context.Context, bot Updater, handle func(tgbotapi.Update), log *zap.Logger) {
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Info("polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeout

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := RetryDelayFromError(err)
			if d < pollBaseDelay {
				d = pollBaseDelay
			}
			if d > pollMaxDelay {
				d = pollMaxDelay
			}
			log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, pollIdleDelay)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// WebhookHandler decodes Telegram webhook posts and passes them to handle.
func WebhookHandler(handle func(tgbotapi.Update), log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var upd tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&upd); err != nil {
			log.Warn("bad webhook update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		handle(upd)
	}
}
