package server

import (
	"context"

	"auralense/browser"
	"auralense/dom"
)

// LivePage is an open browser page a session scans and repairs.
type LivePage interface {
	URL() string
	Snapshot(ctx context.Context) (*dom.Document, error)
	Commit(ctx context.Context, doc *dom.Document) (browser.CommitResult, error)
	Close()
}

// Opener opens live pages.
type Opener interface {
	Open(ctx context.Context, target string, opts browser.PageOptions) (LivePage, error)
}

// BrowserOpener opens pages as tabs of a headless Chrome.
type BrowserOpener struct {
	Browser *browser.Browser
}

func (o BrowserOpener) Open(ctx context.Context, target string, opts browser.PageOptions) (LivePage, error) {
	tab, err := o.Browser.Open(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	return tab, nil
}
