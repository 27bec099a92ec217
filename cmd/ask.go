package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/usecases"
)

var askTimeout time.Duration

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Answer one message and print the response items",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(offline)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.service.Ask(ctx, strings.Join(args, " "))
		if errors.Is(err, usecases.ErrNoIntent) {
			fmt.Fprintln(cmd.OutOrStdout(), "(no intent)")
			return nil
		}
		if err != nil {
			return err
		}
		printResponse(cmd.OutOrStdout(), resp)
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Print the intent and arguments a message is routed to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		match, ok := usecases.NewRouter().Classify(strings.Join(args, " "))
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintln(out, "(no intent)")
			return nil
		}
		fmt.Fprintf(out, "intent: %s (%s)\n", match.Intent, match.Intent.Kind())
		for i, arg := range match.Args {
			fmt.Fprintf(out, "arg[%d]: %q\n", i, arg)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", time.Minute, "Overall lookup timeout")
}

func printResponse(w io.Writer, resp entities.Response) {
	if resp.Empty() {
		fmt.Fprintf(w, "%s: (empty)\n", resp.Intent)
		return
	}
	for _, item := range resp.Items {
		switch item.Kind {
		case entities.KindCoordinates:
			fmt.Fprintf(w, "[location] %.6f, %.6f\n", item.Latitude, item.Longitude)
		case entities.KindImage:
			fmt.Fprintf(w, "[image %d bytes] %s\n", len(item.Image), item.Caption)
		default:
			fmt.Fprintln(w, item.Text)
		}
	}
}
