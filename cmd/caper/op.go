package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashkettle/caper/config"
	"github.com/ashkettle/caper/phase"
)

func newOpCommand(opts *rootOptions) *cobra.Command {
	var (
		confirmAfter time.Duration
		abortAfter   time.Duration
		abortReason  string
	)

	cmd := &cobra.Command{
		Use:   "op",
		Short: "Run one operation through the phase machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			log := opts.logger()
			serveMetrics(cfg, log)

			mgr := phase.NewManager(phase.WithLogger(log))
			handle, err := mgr.Start(cmd.Context(), cfg.Operation)
			if err != nil {
				return err
			}

			if confirmAfter > 0 {
				time.AfterFunc(confirmAfter, handle.ConfirmTeamReady)
			}
			if abortAfter > 0 {
				time.AfterFunc(abortAfter, func() { handle.Abort(abortReason) })
			}

			final, err := handle.Await(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(final)
		},
	}

	cmd.Flags().DurationVar(&confirmAfter, "confirm-after", time.Second, "send the team-ready confirmation after this delay (0 to never confirm)")
	cmd.Flags().DurationVar(&abortAfter, "abort-after", 0, "send an abort signal after this delay (0 to never abort)")
	cmd.Flags().StringVar(&abortReason, "abort-reason", "operator abort", "reason attached to the abort signal")
	return cmd
}

func newGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the phase graph in Graphviz DOT format",
		RunE: func(cmd *cobra.Command, args []string) error {
			dot, err := phase.NewGraph().DOT()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(append(dot, '\n'))
			return err
		},
	}
}
