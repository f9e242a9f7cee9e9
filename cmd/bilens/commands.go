package main

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/bilens/internal/bootstrap"
	"github.com/hrygo/bilens/server"
	apiv1 "github.com/hrygo/bilens/server/router/api/v1"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Index the documents under <data>/raw",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.Ingest.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topK, _ := cmd.Flags().GetInt("top-k")
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if topK <= 0 {
				topK = app.Profile.TopK
			}
			result, err := app.Pipeline.Answer(cmd.Context(), strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int("top-k", 0, "number of passages to retrieve (default from profile)")
	return cmd
}

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent <question>",
		Short: "Route a question to the analytics tables, the documents or both",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topK, _ := cmd.Flags().GetInt("top-k")
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if topK <= 0 {
				topK = app.Profile.TopK
			}
			return writeJSON(cmd.OutOrStdout(), app.Orchestrator.Answer(cmd.Context(), strings.Join(args, " "), topK))
		},
	}
	cmd.Flags().Int("top-k", 0, "number of passages to retrieve (default from profile)")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := loadProfile()
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				p.Port = port
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				p.Addr = addr
			}

			app, err := bootstrap.New(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer app.Close()

			apiV1Service := apiv1.NewAPIV1Service(app.Profile, app.Pipeline, app.Orchestrator, app.Metrics)
			return server.NewServer(app.Profile, apiV1Service).Start(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 0, "port to listen on (default 8000)")
	cmd.Flags().String("addr", "", "address to bind")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create and fill the analytics tables if they are empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			// Opening the app already seeded; report the resulting state.
			result, err := app.Store.Seed(cmd.Context(), app.Profile.ExamplesDir(), time.Now())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
