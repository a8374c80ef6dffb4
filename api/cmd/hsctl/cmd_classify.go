package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hs-classifier/api/internal/form"
	"hs-classifier/api/internal/hscode"
)

// classifyCmd submits a description through the same form logic the web page uses
var classifyCmd = &cobra.Command{
	Use:   "classify [description]",
	Short: "Classify a product description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Print the HS code reference list",
	Args:  cobra.NoArgs,
	RunE:  runReference,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the classification API is up",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func baseContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(baseContext(cmd), timeout)
	defer cancel()

	f := form.New(form.NewClient(apiURL, timeout))
	st, err := f.Submit(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderCards(st.Display()))
	if st.Error != "" {
		return errors.New(st.Error)
	}
	fmt.Fprintln(out, styles.Muted.Render("Disclaimer: "+form.Disclaimer))
	return nil
}

func runReference(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), renderReference(hscode.Reference))
	return nil
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(baseContext(cmd), timeout)
	defer cancel()

	if err := form.NewClient(apiURL, timeout).Health(ctx); err != nil {
		return fmt.Errorf("API at %s: %w", apiURL, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles.High.Render("ok"))
	return nil
}
