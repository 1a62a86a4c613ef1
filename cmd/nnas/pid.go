package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/nnas/pkg/accountxml"
)

// ── pid ──────────────────────────────────────────────────────────────────────

func newPIDCmd(a *app) *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "pid <id> [id] ...",
		Short: "Map account ids to principal ids",
		Long: `Pid translates account ids to principal ids in a single request.
With --reverse it maps principal ids back to account ids. Ids without a
counterpart are printed with "-".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := accountxml.IDTypeUser, accountxml.IDTypePID
			if reverse {
				in, out = out, in
			}
			c, err := a.newClient(nil)
			if err != nil {
				return err
			}
			defer c.Close()

			doc, err := c.MapUserIDs(cmd.Context(), in, out, args...)
			if err != nil {
				return fmt.Errorf("map ids: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\t%s\n", in, out)
			for _, id := range args {
				mapped, ok := doc.Lookup(id)
				if !ok {
					mapped = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\n", id, mapped)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "map principal ids to account ids")
	return cmd
}
