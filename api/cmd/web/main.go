package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hs-classifier/api/internal/config"
	"hs-classifier/api/internal/form"
	"hs-classifier/api/internal/httpserver"
	"hs-classifier/api/internal/logger"
	"hs-classifier/api/internal/webui"
)

const sessionSweepInterval = 5 * time.Minute

func main() {
	var (
		port   string
		apiURL string
	)
	cmd := &cobra.Command{
		Use:           "web",
		Short:         "HS code classification form",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.WebPort = port
			}
			if apiURL != "" {
				cfg.APIURL = apiURL
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides WEB_PORT)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "classification API base URL (overrides API_URL)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "web:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	// The API enforces its own deadline; leave headroom so its error reaches the page.
	timeout := cfg.ClassifyTimeout + 10*time.Second
	client := form.NewClient(cfg.APIURL, timeout)

	ui := webui.New(client, log, timeout)
	go ui.RunSweeper(ctx, sessionSweepInterval)

	r := httpserver.NewRouter(log)
	ui.Routes(r)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
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

	log.Info("form server starting", zap.String("api_url", cfg.APIURL))
	return httpserver.Run(ctx, httpserver.Options{
		Addr:            cfg.WebAddr(),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    timeout + 5*time.Second,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, r, log)
}
