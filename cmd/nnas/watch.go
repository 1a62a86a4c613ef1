package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/internal/health"
	"github.com/jmerrifield20/nnas/pkg/client"
)

// ── watch ────────────────────────────────────────────────────────────────────

func newWatchCmd(a *app) *cobra.Command {
	var (
		cfg         health.Config
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "watch <canary> [canary] ...",
		Short: "Probe the account server with canary lookups until interrupted",
		Long: `Watch looks up each canary account id every interval and prints a line
whenever a canary turns healthy or degraded. A canary is healthy while the
server gives a definitive answer for it and degraded after --threshold
consecutive failures (rejected certificate, bad device credentials,
maintenance, unreachable server).

  nnas watch --interval 30s testuser`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reg *prometheus.Registry
			if metricsFile != "" {
				reg = prometheus.NewRegistry()
			}
			c, err := a.newClient(registererOrNil(reg))
			if err != nil {
				return err
			}
			defer c.Close()

			checker := health.New(c, args, cfg, a.logger)
			out := cmd.OutOrStdout()
			checker.SetTransition(func(canary string, from, to health.Status, last client.LookupResult) {
				line := fmt.Sprintf("%s  %s  %s -> %s", time.Now().UTC().Format(time.RFC3339), canary, from, to)
				if last.Err != nil {
					line += "  " + last.Err.Error()
				}
				fmt.Fprintln(out, line)
			})
			if reg != nil {
				checks := prometheus.NewCounterVec(prometheus.CounterOpts{
					Name: "nnas_canary_checks_total",
					Help: "Total canary lookups by result.",
				}, []string{"result"})
				if err := reg.Register(checks); err != nil {
					return fmt.Errorf("register canary metrics: %w", err)
				}
				checker.SetMetricsRecord(func(success bool) {
					result := "failure"
					if success {
						result = "success"
					}
					checks.WithLabelValues(result).Inc()
				})
				checker.SetRoundDone(func() {
					if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
						a.logger.Warn("write metrics", zap.String("path", metricsFile), zap.Error(err))
					}
				})
			}

			a.logger.Info("watching account server",
				zap.String("endpoint", c.Endpoint()),
				zap.Strings("canaries", args),
				zap.Duration("interval", cfg.CheckInterval),
			)
			checker.Run(cmd.Context())
			return nil
		},
	}
	cmd.Flags().DurationVar(&cfg.CheckInterval, "interval", time.Minute, "time between probe rounds")
	cmd.Flags().DurationVar(&cfg.ProbeTimeout, "probe-timeout", 10*time.Second, "deadline for a single probe")
	cmd.Flags().IntVar(&cfg.FailThreshold, "threshold", 3, "consecutive failures before a canary is degraded")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "rewrite Prometheus metrics to this file after every round")
	return cmd
}
