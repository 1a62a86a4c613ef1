package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/nnas/pkg/accountxml"
)

// ── eula ─────────────────────────────────────────────────────────────────────

func newEULACmd(a *app) *cobra.Command {
	var (
		format string
		full   bool
	)
	cmd := &cobra.Command{
		Use:   "eula <country> [version]",
		Short: "Fetch the Nintendo Network EULA for a country",
		Long: `Eula fetches the Nintendo Network agreement for a country code.
The version defaults to the latest revision.

  nnas eula US
  nnas eula JP 0300 --full`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			c, err := a.newClient(nil)
			if err != nil {
				return err
			}
			defer c.Close()

			doc, err := c.GetEULA(cmd.Context(), args[0], version)
			if err != nil {
				return fmt.Errorf("eula %s: %w", args[0], err)
			}
			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc.Agreements)
			case "text":
				return printAgreements(cmd.OutOrStdout(), doc.Agreements, full)
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&full, "full", false, "print the agreement text")
	return cmd
}

func printAgreements(w io.Writer, agreements []accountxml.Agreement, full bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTRY\tLANGUAGE\tVERSION\tPUBLISHED\tTITLE")
	for _, ag := range agreements {
		published := ag.PublishDateRaw
		if t, err := ag.PublishDate(); err == nil {
			published = t.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ag.Country, ag.Language, ag.Version, published, ag.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !full {
		return nil
	}
	for _, ag := range agreements {
		fmt.Fprintf(w, "\n── %s (%s) ──\n\n%s\n", ag.Title, ag.Language, ag.Body)
	}
	return nil
}
