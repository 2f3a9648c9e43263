// Package browser drives a headless Chrome through chromedp so contrast
// checks can run against the styles a real engine computed.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrClosed is returned by operations on a closed tab.
var ErrClosed = errors.New("browser: tab closed")

// Options configure the browser process.
type Options struct {
	// ExecPath overrides the Chrome binary chromedp would discover.
	ExecPath       string
	ViewportWidth  int
	ViewportHeight int
	Logger         *log.Logger
}

// PageOptions control how a single page is opened.
type PageOptions struct {
	Header       http.Header
	WaitSelector string
	// WaitAfterLoad gives client side rendering time to settle.
	WaitAfterLoad time.Duration
	Timeout       time.Duration
}

// Browser owns one Chrome process; each Open starts a new tab in it.
type Browser struct {
	allocator context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
	width     int
	height    int

	mu         sync.Mutex
	root       context.Context
	cancelRoot context.CancelFunc
}

// New prepares an exec allocator. Chrome is started on first Open.
func New(opts Options) *Browser {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-extensions", true),
	)
	if opts.ExecPath != "" {
		flags = append(flags, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1280
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 800
	}
	flags = append(flags, chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight))
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), flags...)
	return &Browser{
		allocator: allocCtx,
		cancel:    cancel,
		logger:    logger,
		width:     opts.ViewportWidth,
		height:    opts.ViewportHeight,
	}
}

// Close stops the browser and every tab.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelRoot != nil {
		b.cancelRoot()
		b.root, b.cancelRoot = nil, nil
	}
	if b.cancel != nil {
		b.cancel()
	}
}

// start launches Chrome once. The first Run on a chromedp context ties the
// process lifetime to that context, so it must not carry a deadline.
func (b *Browser) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.root != nil {
		return b.root, nil
	}
	root, cancel := chromedp.NewContext(b.allocator)
	if err := chromedp.Run(root); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	b.root, b.cancelRoot = root, cancel
	return root, nil
}

// Tab is an open page. Its methods are safe for concurrent use but run one
// at a time.
type Tab struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	url    string
	width  int
	height int
	logger *log.Logger
	closed bool
}

// Open navigates a new tab to target and waits for it to render.
func (b *Browser) Open(ctx context.Context, target string, opts PageOptions) (*Tab, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("open: empty target url")
	}
	root, err := b.start()
	if err != nil {
		return nil, err
	}
	tabCtx, cancelTab := chromedp.NewContext(root)
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	loadCtx, cancelLoad := context.WithTimeout(tabCtx, timeout)
	defer cancelLoad()
	stop := context.AfterFunc(ctx, cancelLoad)
	defer stop()

	var finalURL string
	actions := []chromedp.Action{network.Enable()}
	actions = append(actions, headerActions(opts.Header)...)
	actions = append(actions,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if sel := strings.TrimSpace(opts.WaitSelector); sel != "" {
		actions = append(actions, chromedp.WaitVisible(sel, chromedp.ByQuery))
	}
	if opts.WaitAfterLoad > 0 {
		actions = append(actions, chromedp.Sleep(opts.WaitAfterLoad))
	}
	actions = append(actions, chromedp.Location(&finalURL))

	if err := chromedp.Run(loadCtx, actions...); err != nil {
		cancelTab()
		return nil, fmt.Errorf("open %s: %w", target, err)
	}
	if finalURL == "" {
		finalURL = target
	}
	b.logger.Printf("browser: opened %s", finalURL)
	return &Tab{
		ctx:    tabCtx,
		cancel: cancelTab,
		url:    finalURL,
		width:  b.width,
		height: b.height,
		logger: b.logger,
	}, nil
}

func headerActions(hdr http.Header) []chromedp.Action {
	var actions []chromedp.Action
	headers := hdr.Clone()
	if headers == nil {
		return nil
	}
	if ua := headers.Get("User-Agent"); ua != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(ua).Do(ctx)
		}))
		headers.Del("User-Agent")
	}
	extra := network.Headers{}
	for k, vs := range headers {
		name := http.CanonicalHeaderKey(k)
		if len(vs) == 0 || strings.EqualFold(name, "Content-Length") {
			continue
		}
		extra[name] = strings.Join(vs, ", ")
	}
	if len(extra) > 0 {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetExtraHTTPHeaders(extra).Do(ctx)
		}))
	}
	return actions
}

// URL is the address the tab ended up at after redirects.
func (t *Tab) URL() string { return t.url }

// Close closes the tab.
func (t *Tab) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.cancel()
}

// run executes actions on the tab bounded by ctx.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if t.closed {
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}
