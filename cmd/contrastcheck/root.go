package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"auralense/browser"
	"auralense/dom"
)

type globalOptions struct {
	verbose   bool
	live      bool
	browser   string
	timeout   time.Duration
	width     int
	height    int
	dark      bool
	userAgent string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "contrastcheck",
		Short: "Find and repair low contrast text in HTML",
		Long: `contrastcheck measures the contrast of every text element in a page
against WCAG thresholds (4.5:1, or 3:1 for large text) and can rewrite the
failing elements' colors.

A source is a file path, "-" for stdin, or an http(s) URL. With --live the
URL is rendered in headless Chrome and the browser's computed styles are used.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log progress to stderr")
	pf.BoolVar(&g.live, "live", false, "render URLs in headless Chrome")
	pf.StringVar(&g.browser, "browser", os.Getenv("AURALENSE_BROWSER"), "Chrome binary used with --live")
	pf.DurationVar(&g.timeout, "timeout", 45*time.Second, "time limit for loading a source")
	pf.IntVar(&g.width, "viewport-width", 1280, "viewport width for media queries")
	pf.IntVar(&g.height, "viewport-height", 800, "viewport height for media queries")
	pf.BoolVar(&g.dark, "dark", false, "evaluate prefers-color-scheme: dark")
	pf.StringVar(&g.userAgent, "user-agent", "", "User-Agent sent when fetching")

	root.AddCommand(newScanCmd(g), newFixCmd(g), newStylesCmd(g))
	return root
}

func (g *globalOptions) logger(cmd *cobra.Command) *log.Logger {
	if !g.verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "", log.Ltime|log.Lmicroseconds)
}

// source is a loaded document plus the live tab it came from, if any.
type source struct {
	doc   *dom.Document
	tab   *browser.Tab
	close func()
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (g *globalOptions) load(ctx context.Context, cmd *cobra.Command, src string) (*source, error) {
	logger := g.logger(cmd)
	opts := dom.Options{
		ViewportWidth:  g.width,
		ViewportHeight: g.height,
		DarkScheme:     g.dark,
		Logger:         logger,
	}
	if g.userAgent != "" {
		opts.Header = http.Header{"User-Agent": {g.userAgent}}
	}

	if g.live {
		if !isURL(src) {
			return nil, fmt.Errorf("--live needs an http(s) url, got %q", src)
		}
		b := browser.New(browser.Options{
			ExecPath:       g.browser,
			ViewportWidth:  g.width,
			ViewportHeight: g.height,
			Logger:         logger,
		})
		tab, err := b.Open(ctx, src, browser.PageOptions{Header: opts.Header, Timeout: g.timeout})
		if err != nil {
			b.Close()
			return nil, err
		}
		doc, err := tab.Snapshot(ctx)
		if err != nil {
			tab.Close()
			b.Close()
			return nil, err
		}
		return &source{doc: doc, tab: tab, close: func() { tab.Close(); b.Close() }}, nil
	}

	var (
		doc *dom.Document
		err error
	)
	switch {
	case isURL(src):
		logger.Printf("fetch %s", src)
		doc, err = dom.Fetch(ctx, src, opts)
	case src == "-":
		doc, err = dom.Parse(ctx, cmd.InOrStdin(), opts)
	default:
		var f *os.File
		f, err = os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		doc, err = dom.Parse(ctx, f, opts)
	}
	if err != nil {
		return nil, err
	}
	logger.Printf("%d author rules", doc.Stylesheet().Len())
	return &source{doc: doc, close: func() {}}, nil
}

func (g *globalOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if g.live {
		// the browser outlives the load; its own timeout bounds navigation
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}
