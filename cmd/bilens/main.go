package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/bilens/internal/bootstrap"
	"github.com/hrygo/bilens/internal/profile"
)

var version = "dev"

// profileFlags maps persistent flags to viper keys and profile fields.
var profileFlags = []struct {
	name  string
	usage string
	apply func(p *profile.Profile, v *viper.Viper, key string)
}{
	{"mode", "mode of the application: dev, demo or prod", func(p *profile.Profile, v *viper.Viper, k string) { p.Mode = v.GetString(k) }},
	{"data", "data directory holding raw/, processed/ and examples/", func(p *profile.Profile, v *viper.Viper, k string) { p.Data = v.GetString(k) }},
	{"driver", "analytics database driver: sqlite or postgres", func(p *profile.Profile, v *viper.Viper, k string) { p.Driver = v.GetString(k) }},
	{"dsn", "analytics database source name", func(p *profile.Profile, v *viper.Viper, k string) { p.DSN = v.GetString(k) }},
	{"rag-backend", "vector backend: flat, qdrant or pgvector", func(p *profile.Profile, v *viper.Viper, k string) { p.RAGBackend = v.GetString(k) }},
	{"generator-mode", "answer generator: ollama, openai or extractive", func(p *profile.Profile, v *viper.Viper, k string) { p.GeneratorMode = v.GetString(k) }},
	{"embedding-provider", "embedding provider: local, openai, siliconflow or ollama", func(p *profile.Profile, v *viper.Viper, k string) { p.EmbeddingProvider = v.GetString(k) }},
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bilens",
		Short:         "Question answering over business data and documents",
		Long:          "bilens answers questions from indexed documents, from the analytics tables, or from both.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			return initLogger(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	for _, f := range profileFlags {
		root.PersistentFlags().String(f.name, "", f.usage)
	}

	root.AddCommand(
		newIngestCmd(),
		newAskCmd(),
		newAgentCmd(),
		newServeCmd(),
		newSeedCmd(),
	)
	return root
}

// initViper binds flags and BILENS_* variables; flags take precedence.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()
	v.SetEnvPrefix("BILENS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")

	flags := cmd.Root().PersistentFlags()
	for _, name := range []string{"log-level", "log-format"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return errors.Wrapf(err, "failed to bind flag %s", name)
		}
	}
	for _, f := range profileFlags {
		if err := v.BindPFlag(f.name, flags.Lookup(f.name)); err != nil {
			return errors.Wrapf(err, "failed to bind flag %s", f.name)
		}
	}
	return nil
}

func initLogger(w io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format := viper.GetString("log-format"); format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return errors.Errorf("unsupported log format: %s", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadProfile builds the profile from flags, then environment, then defaults.
func loadProfile() *profile.Profile {
	v := viper.GetViper()
	p := &profile.Profile{Version: version}
	for _, f := range profileFlags {
		f.apply(p, v, f.name)
	}
	p.FromEnv()
	return p
}

func openApp(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.New(ctx, loadProfile())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
