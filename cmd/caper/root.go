package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ashkettle/caper"
	"github.com/ashkettle/caper/config"
	"github.com/ashkettle/caper/phase"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "caper",
		Short: "caper - saga and phase-machine orchestration demo",
		Long:  "Runs the implant-procurement saga and the operation phase machine against in-process subsystems.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "caper.yaml", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newSagaCommand(opts))
	cmd.AddCommand(newOpCommand(opts))
	cmd.AddCommand(newGraphCommand())

	return cmd
}

// logger builds the CLI logger; verbose lowers the level to debug.
func (o *rootOptions) logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if o.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// serveMetrics exposes both packages' metrics when an address is set.
func serveMetrics(cfg *config.Config, log zerolog.Logger) {
	if cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics/saga", caper.MetricsHandler())
	mux.Handle("/metrics/phase", phase.MetricsHandler())
	go func() {
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			log.Warn().Err(err).Msg("metrics endpoint stopped")
		}
	}()
}
