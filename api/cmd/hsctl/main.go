package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiURL  string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "hsctl",
	Short: "Command line client for the HS code classification API",
	Long: `hsctl sends product descriptions to the classification API and prints
the ranked HS code predictions.

Examples:
  hsctl classify "Laptop computer with 16GB RAM"
  hsctl reference`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultURL := os.Getenv("API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8000"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "classification API base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")

	rootCmd.AddCommand(classifyCmd, referenceCmd, healthCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.Error.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
