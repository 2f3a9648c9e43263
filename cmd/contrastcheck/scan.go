package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"auralense/contrast"
)

var errIssuesFound = errors.New("contrast issues found")

func newScanCmd(g *globalOptions) *cobra.Command {
	var (
		asJSON bool
		fail   bool
	)
	cmd := &cobra.Command{
		Use:   "scan <source>",
		Short: "List elements whose text fails its contrast threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()
			src, err := g.load(ctx, cmd, args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			defer src.close()

			issues, err := contrast.NewScanner(contrast.WithLogger(g.logger(cmd))).Scan(src.doc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeIssuesJSON(out, issues); err != nil {
					return err
				}
			} else {
				writeIssuesTable(out, issues)
			}
			if fail && len(issues) > 0 {
				return errIssuesFound
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print issues as JSON")
	cmd.Flags().BoolVar(&fail, "fail", false, "exit non-zero when any issue is found")
	return cmd
}

func writeIssuesJSON(w io.Writer, issues []contrast.Issue) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(issues)
}

func writeIssuesTable(w io.Writer, issues []contrast.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "no contrast issues")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLE\tRATIO\tNEEDS\tCOLOR\tBACKGROUND\tTEXT")
	for _, is := range issues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%q\n",
			is.Handle,
			strconv.FormatFloat(is.Ratio, 'f', 2, 64),
			strconv.FormatFloat(is.RequiredRatio(), 'f', 1, 64),
			is.OriginalColor,
			is.OriginalBackground,
			is.Text)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d issues\n", len(issues))
}
