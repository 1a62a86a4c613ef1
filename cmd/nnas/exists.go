package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/pkg/client"
)

// ── exists ───────────────────────────────────────────────────────────────────

type existsFlags struct {
	format      string
	metricsFile string
}

func newExistsCmd(a *app) *cobra.Command {
	f := &existsFlags{}
	cmd := &cobra.Command{
		Use:   "exists <username> [username] ...",
		Short: "Check whether account ids are registered",
		Long: `Exists asks the account server whether each account id is taken.

Usernames are looked up concurrently and printed in argument order. The
command exits non-zero when any lookup could not be answered; "does_not_exist"
is only printed when the server confirmed it.

  nnas exists testuser someone-else
  nnas exists --format json testuser`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExists(cmd, a, f, args)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", "text", "output format: text or json")
	cmd.Flags().Duration("cache-ttl", 0, "cache definitive answers for this long")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	return cmd
}

func runExists(cmd *cobra.Command, a *app, f *existsFlags, usernames []string) error {
	if f.format != "text" && f.format != "json" {
		return fmt.Errorf("unknown format %q", f.format)
	}

	var reg *prometheus.Registry
	if f.metricsFile != "" {
		reg = prometheus.NewRegistry()
	}
	c, err := a.newClient(registererOrNil(reg))
	if err != nil {
		return err
	}
	defer c.Close()

	results := make([]client.LookupResult, len(usernames))
	var wg sync.WaitGroup
	for i, name := range usernames {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.DoesUserExist(cmd.Context(), name)
		}()
	}
	wg.Wait()

	out := cmd.OutOrStdout()
	switch f.format {
	case "json":
		err = printExistsJSON(out, results)
	default:
		err = printExistsText(out, results)
	}
	if err != nil {
		return err
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(f.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	failed := 0
	for _, r := range results {
		if r.Outcome == client.OutcomeError {
			failed++
		}
	}
	if failed > 0 {
		a.logger.Debug("lookups failed", zap.Int("failed", failed), zap.Int("total", len(results)))
		return fmt.Errorf("%d of %d lookups failed", failed, len(results))
	}
	return nil
}

// registererOrNil keeps a nil *Registry from becoming a non-nil interface.
func registererOrNil(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}

func printExistsJSON(w io.Writer, results []client.LookupResult) error {
	type jsonRow struct {
		Username string `json:"username"`
		Outcome  string `json:"outcome"`
		Status   int    `json:"status,omitempty"`
		Error    string `json:"error,omitempty"`
	}
	rows := make([]jsonRow, len(results))
	for i, r := range results {
		rows[i] = jsonRow{Username: r.Username, Outcome: r.Outcome.String(), Status: r.Status}
		if r.Err != nil {
			rows[i].Error = r.Err.Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func printExistsText(w io.Writer, results []client.LookupResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tOUTCOME\tSTATUS\tERROR")
	for _, r := range results {
		status := "-"
		if r.Status != 0 {
			status = fmt.Sprint(r.Status)
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Username, r.Outcome, status, errText)
	}
	return tw.Flush()
}
