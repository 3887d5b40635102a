package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"questionbank/internal/backend"
	"questionbank/internal/infra/probe"
)

// NewProbeCmd reports port reachability for the configured database host.
func NewProbeCmd(configPath *string) *cobra.Command {
	var race bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the direct-connection ports and recommend one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadBase(*configPath)
			if err != nil {
				return err
			}
			host := cfg.Database.Host
			candidates := backend.Candidates(cfg.Database)

			pick, results := probe.Recommend(cmd.Context(), host, candidates, probe.ProbeTimeout)
			fmt.Fprint(cmd.OutOrStdout(), probe.Report(host, results))
			log.Debug().Str("candidate", pick.Name).Int("port", pick.Port).Msg("port recommended")

			if !race {
				return nil
			}
			w, err := newRacer(cfg, log).Race(cmd.Context(), host, candidates)
			if err != nil {
				return err
			}
			defer w.Conn.Close(context.Background())
			fmt.Fprintf(cmd.OutOrStdout(), "Race winner: %s (port %d) in %s\n", w.Candidate.Name, w.Candidate.Port, w.Latency)
			return nil
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "also race full handshakes and report the first to connect")
	return cmd
}
