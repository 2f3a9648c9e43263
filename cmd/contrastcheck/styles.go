package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"auralense/contrast"
)

// newStylesCmd prints what the contrast checks see for the elements matching
// a selector, which helps when a verdict looks wrong.
func newStylesCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "styles <source> <selector>",
		Short: "Show computed colors and contrast for matching elements",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()
			src, err := g.load(ctx, cmd, args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			defer src.close()

			els, err := src.doc.QueryAll(args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, el := range els {
				st := el.ComputedStyle()
				bg := contrast.EffectiveBackground(src.doc, el)
				pt, _ := contrast.FontSizePt(st.FontSize)
				large := contrast.IsLargeText(pt, contrast.IsBold(st.FontWeight))
				ratio := contrast.Ratio(st.Color, bg.String())
				fmt.Fprintf(out, "node=%s color=%s background=%s effective=%s size=%s weight=%s display=%s rendered=%v ratio=%.2f needs=%.1f\n",
					strings.ToLower(el.TagName()), st.Color, st.BackgroundColor, bg, st.FontSize,
					st.FontWeight, st.Display, st.Rendered, ratio, contrast.RequiredRatio(large))
			}
			if len(els) == 0 {
				fmt.Fprintln(out, "no matching elements")
			}
			return nil
		},
	}
}
