package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"auralense/browser"
	"auralense/contrast"
	"auralense/dom"
	"auralense/internal/reports"
)

const (
	modeStatic = "static"
	modeLive   = "live"
)

var (
	errNoIssues        = errors.New("No issues provided to fix.")
	errNoSource        = errors.New("missing html, url or session")
	errLiveUnavailable = errors.New("live browser is not available")
)

// statusFor maps a pass error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNoIssues), errors.Is(err, errNoSource):
		return http.StatusBadRequest
	case errors.Is(err, errLiveUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// scan runs a scan pass, either over an existing session or over a newly
// loaded document which then becomes a session.
func (s *Server) scan(ctx context.Context, req scanRequest, hdr http.Header) (scanResult, error) {
	if req.Session != "" {
		return s.rescan(ctx, req)
	}
	target := strings.TrimSpace(req.URL)
	if strings.TrimSpace(req.HTML) == "" && target == "" {
		return scanResult{}, errNoSource
	}
	site := s.sites.Find(target)
	mode := modeStatic
	switch {
	case req.HTML != "":
		// markup sent inline is always scanned with the local cascade
	case req.Live != nil:
		if *req.Live {
			mode = modeLive
		}
	case site != nil && site.Mode == modeLive:
		mode = modeLive
	}
	hdr = mergeHeaders(hdr, site, req.Headers)

	sess := &session{
		url:      target,
		mode:     mode,
		scanner:  contrast.NewScanner(contrast.WithLogger(s.logger)),
		repairer: contrast.NewRepairer(contrast.WithLogger(s.logger)),
	}
	if mode == modeLive {
		if s.opener == nil {
			return scanResult{}, errLiveUnavailable
		}
		page, err := s.opener.Open(ctx, target, pageOptions(site, hdr))
		if err != nil {
			return scanResult{}, err
		}
		doc, err := page.Snapshot(ctx)
		if err != nil {
			page.Close()
			return scanResult{}, err
		}
		sess.page, sess.doc, sess.url = page, doc, page.URL()
	} else {
		doc, err := s.loadStatic(ctx, req.HTML, target, hdr, site)
		if err != nil {
			return scanResult{}, err
		}
		sess.doc = doc
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	res, err := s.scanSession(ctx, sess)
	if err != nil {
		if sess.page != nil {
			sess.page.Close()
		}
		return scanResult{}, err
	}
	res.Session = s.sessions.add(sess)
	s.record(ctx, reports.Report{
		Kind:      reports.KindScan,
		URL:       sess.url,
		Mode:      sess.mode,
		SessionID: res.Session,
		Issues:    len(res.Issues),
	})
	return res, nil
}

func (s *Server) rescan(ctx context.Context, req scanRequest) (scanResult, error) {
	sess, err := s.sessions.get(req.Session)
	if err != nil {
		return scanResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return scanResult{}, errSessionNotFound
	}
	if req.Refresh && sess.page != nil {
		doc, err := sess.page.Snapshot(ctx)
		if err != nil {
			return scanResult{}, err
		}
		sess.doc = doc
		sess.repairer = contrast.NewRepairer(contrast.WithLogger(s.logger))
	}
	res, err := s.scanSession(ctx, sess)
	if err != nil {
		return scanResult{}, err
	}
	res.Session = sess.id
	s.record(ctx, reports.Report{
		Kind:      reports.KindScan,
		URL:       sess.url,
		Mode:      sess.mode,
		SessionID: sess.id,
		Issues:    len(res.Issues),
	})
	return res, nil
}

// scanSession scans sess.doc and pushes the new handles to a live page.
// The caller holds sess.mu.
func (s *Server) scanSession(ctx context.Context, sess *session) (scanResult, error) {
	issues, err := sess.scanner.Scan(sess.doc)
	if err != nil {
		return scanResult{}, err
	}
	res := scanResult{Issues: issues, URL: sess.url, Mode: sess.mode}
	if sess.page != nil {
		if _, err := sess.page.Commit(ctx, sess.doc); err != nil {
			return scanResult{}, fmt.Errorf("tag live page: %w", err)
		}
	} else {
		sess.doc.Drain()
		res.HTML = sess.doc.String()
	}
	return res, nil
}

func (s *Server) loadStatic(ctx context.Context, markup, target string, hdr http.Header, site *SiteConfig) (*dom.Document, error) {
	w, h := s.viewport()
	opts := dom.Options{
		BaseURL:        target,
		Header:         hdr,
		ViewportWidth:  w,
		ViewportHeight: h,
		Logger:         s.logger,
	}
	if site != nil {
		opts.DarkScheme = site.DarkScheme
	}
	if markup != "" {
		return dom.ParseString(ctx, markup, opts)
	}
	return dom.Fetch(ctx, target, opts)
}

// fix repairs the given issues in a session, or in markup sent along with
// the request.
func (s *Server) fix(ctx context.Context, req fixRequest) (fixResult, error) {
	if len(req.IssuesToFix) == 0 {
		return fixResult{Error: errNoIssues.Error()}, errNoIssues
	}
	if req.Session == "" {
		if strings.TrimSpace(req.HTML) == "" {
			return fixResult{}, errNoSource
		}
		w, h := s.viewport()
		doc, err := dom.ParseString(ctx, req.HTML, dom.Options{ViewportWidth: w, ViewportHeight: h, Logger: s.logger})
		if err != nil {
			return fixResult{}, err
		}
		n, err := contrast.NewRepairer(contrast.WithLogger(s.logger)).Fix(doc, req.IssuesToFix)
		if err != nil {
			return fixResult{}, err
		}
		s.record(ctx, reports.Report{Kind: reports.KindFix, Issues: len(req.IssuesToFix), Fixed: n})
		return fixResult{FixedCount: n, HTML: doc.String()}, nil
	}

	sess, err := s.sessions.get(req.Session)
	if err != nil {
		return fixResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return fixResult{}, errSessionNotFound
	}
	n, err := sess.repairer.Fix(sess.doc, req.IssuesToFix)
	if err != nil {
		return fixResult{}, err
	}
	res := fixResult{FixedCount: n}
	if sess.page != nil {
		commit, err := sess.page.Commit(ctx, sess.doc)
		if err != nil {
			return fixResult{}, fmt.Errorf("apply fixes to live page: %w", err)
		}
		// Elements that left the page since the scan were only fixed in the
		// snapshot.
		n = max(n-len(commit.Missing), 0)
		res.FixedCount, res.Applied = n, commit.Applied
	} else {
		sess.doc.Drain()
		res.HTML = sess.doc.String()
	}
	s.record(ctx, reports.Report{
		Kind:      reports.KindFix,
		URL:       sess.url,
		Mode:      sess.mode,
		SessionID: sess.id,
		Issues:    len(req.IssuesToFix),
		Fixed:     n,
	})
	return res, nil
}

// closeSession ends a session, first restoring the inline colors the
// session's fixes replaced when asked to.
func (s *Server) closeSession(ctx context.Context, req closeRequest) (closeResult, error) {
	sess, err := s.sessions.remove(req.Session)
	if err != nil {
		return closeResult{}, err
	}
	res := closeResult{Session: sess.id}
	if req.Restore {
		sess.mu.Lock()
		res.Restored = sess.repairer.Restore()
		if sess.page != nil && !sess.closed {
			if _, err := sess.page.Commit(ctx, sess.doc); err != nil {
				s.logger.Printf("restore %s: %v", sess.id, err)
			}
		}
		if sess.page == nil {
			sess.doc.Drain()
			res.HTML = sess.doc.String()
		}
		sess.mu.Unlock()
	}
	sess.close()
	return res, nil
}

func (s *Server) record(ctx context.Context, r reports.Report) {
	if s.reports == nil {
		return
	}
	r.CreatedAt = s.clock()
	if _, err := s.reports.Record(ctx, r); err != nil {
		s.logger.Printf("record %s report: %v", r.Kind, err)
	}
}

func pageOptions(site *SiteConfig, hdr http.Header) browser.PageOptions {
	opts := browser.PageOptions{Header: hdr}
	if site != nil {
		opts.WaitSelector = site.WaitSelector
		opts.WaitAfterLoad = site.waitAfterLoad()
	}
	return opts
}

// mergeHeaders layers site headers, then request-supplied headers, over hdr.
func mergeHeaders(hdr http.Header, site *SiteConfig, extra map[string]string) http.Header {
	out := hdr.Clone()
	if out == nil {
		out = http.Header{}
	}
	if site != nil {
		for k, v := range site.Headers {
			out.Set(k, v)
		}
	}
	for k, v := range extra {
		out.Set(k, v)
	}
	return out
}
