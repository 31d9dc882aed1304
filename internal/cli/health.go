package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/sitecraft/internal/health"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// HealthCmd returns the health command.
func HealthCmd() *cobra.Command {
	var timeout time.Duration
	var grpcAddr string
	var grpcService string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check whether the backend is reachable",
		Long: `Check whether the backend is reachable.

Exits non-zero when the backend is unhealthy.

Examples:
  sitecraft health
  sitecraft health --grpc-addr localhost:50051`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)

			checker := health.Checker(health.HTTPChecker{Client: newClient(cmd, logger)})
			if grpcAddr != "" {
				grpcChecker := health.NewGRPCChecker(grpcAddr, grpcService)
				defer func() { _ = grpcChecker.Close() }()
				checker = health.Multi(checker, grpcChecker)
			}

			probe := health.NewProbe(checker, health.WithTimeout(timeout), health.WithLogger(logger))
			st := probe.Check(cmd.Context())

			out := cmd.OutOrStdout()
			if st.Status == health.StatusHealthy {
				fmt.Fprintf(out, "API: %s\n", color.New(color.FgGreen).Sprint("healthy"))
				return nil
			}
			fmt.Fprintf(out, "API: %s\n", color.New(color.FgRed).Sprint(st.Status))
			if st.Detail != "" && st.Detail != st.Reason {
				fmt.Fprintf(out, "  %s\n", color.New(color.FgHiBlack).Sprint(st.Detail))
			}
			return errors.New(st.Reason)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", health.DefaultTimeout, "Probe timeout")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "Also check a gRPC health service at this address")
	cmd.Flags().StringVar(&grpcService, "grpc-service", "", "gRPC health service name")

	return cmd
}
