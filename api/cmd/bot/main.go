package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hs-classifier/api/internal/config"
	"hs-classifier/api/internal/form"
	"hs-classifier/api/internal/httpserver"
	"hs-classifier/api/internal/logger"
	"hs-classifier/api/internal/telegram"
	"hs-classifier/api/internal/util"
)

func main() {
	cmd := &cobra.Command{
		Use:           "bot",
		Short:         "Telegram front-end for HS code classification",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bot:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	if cfg.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	log.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

	client := form.NewClient(cfg.APIURL, cfg.ClassifyTimeout+10*time.Second)
	r := telegram.NewRouter(bot, client, log, cfg.ClassifyTimeout+10*time.Second)

	// each update runs on its own goroutine; per-chat forms serialize a chat's classifications
	var wg sync.WaitGroup
	dispatch := func(upd tgbotapi.Update) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.HandleUpdate(ctx, upd)
		}()
	}
	defer wg.Wait()

	mux := httpserver.NewRouter(log)
	mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		hctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := client.Health(hctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("api: not ok\n" + err.Error()))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	opt := httpserver.Options{
		Addr:            cfg.BotAddr(),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		return startWebhookMode(ctx, bot, mux, opt, webhookURL, dispatch, log)
	}
	return startPollingMode(ctx, bot, mux, opt, dispatch, log)
}

func startWebhookMode(ctx context.Context, bot *tgbotapi.BotAPI, mux chi.Router, opt httpserver.Options, baseURL string, dispatch func(tgbotapi.Update), log *zap.Logger) error {
	// secret webhook path
	path := "/webhook/" + util.ShortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	mux.Post(path, telegram.WebhookHandler(dispatch, log))
	log.Info("webhook mode", zap.String("addr", opt.Addr))
	return httpserver.Run(ctx, opt, mux, log)
}

func startPollingMode(ctx context.Context, bot *tgbotapi.BotAPI, mux chi.Router, opt httpserver.Options, dispatch func(tgbotapi.Update), log *zap.Logger) error {
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn("delete webhook failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	healthDone := make(chan struct{})
	go func() {
		defer close(healthDone)
		// health server, not required for polling
		if err := httpserver.Run(ctx, opt, mux, log); err != nil {
			log.Warn("health server stopped", zap.String("addr", opt.Addr), zap.Error(err))
		}
	}()

	log.Info("polling mode")
	telegram.RunPolling(ctx, bot, dispatch, log)
	cancel()
	<-healthDone
	return nil
}
