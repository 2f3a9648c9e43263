package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"auralense/contrast"
	"auralense/dom"
)

func newFixCmd(g *globalOptions) *cobra.Command {
	var (
		output      string
		asJSON      bool
		keepHandles bool
	)
	cmd := &cobra.Command{
		Use:   "fix <source>",
		Short: "Rewrite failing colors and write the repaired HTML",
		Long: `fix scans the source and rewrites the inline color (and, when no text
color can reach the threshold, the background) of every failing element.
With --live the fixes are also applied to the open page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()
			src, err := g.load(ctx, cmd, args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			defer src.close()

			logger := g.logger(cmd)
			issues, err := contrast.NewScanner(contrast.WithLogger(logger)).Scan(src.doc)
			if err != nil {
				return err
			}
			fixed, err := contrast.NewRepairer(contrast.WithLogger(logger)).Fix(src.doc, issues)
			if err != nil {
				return err
			}
			if src.tab != nil {
				commit, err := src.tab.Commit(ctx, src.doc)
				if err != nil {
					return err
				}
				fixed = max(fixed-len(commit.Missing), 0)
				logger.Printf("applied %d changes to %s", commit.Applied, src.tab.URL())
			}
			if !keepHandles {
				if err := stripHandles(src.doc); err != nil {
					return err
				}
			}

			if err := writeDocument(cmd, output, src.doc); err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.ErrOrStderr()).Encode(map[string]any{
					"fixedCount": fixed,
					"issues":     issues,
				})
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "fixed %d of %d issues\n", fixed, len(issues))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "where to write the repaired HTML (- for stdout)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "report the result as JSON on stderr")
	cmd.Flags().BoolVar(&keepHandles, "keep-handles", false, "leave "+contrast.HandleAttr+" attributes in the output")
	return cmd
}

func stripHandles(doc *dom.Document) error {
	tagged, err := doc.QueryAll("[" + contrast.HandleAttr + "]")
	if err != nil {
		return err
	}
	for _, el := range tagged {
		el.RemoveAttr(contrast.HandleAttr)
	}
	return nil
}

func writeDocument(cmd *cobra.Command, output string, doc *dom.Document) error {
	var w io.Writer = cmd.OutOrStdout()
	if output != "" && output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := doc.Render(w); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}
