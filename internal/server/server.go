// Package server exposes contrast scanning and repair over HTTP and a
// websocket message channel.
package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"auralense/internal/reports"
)

const defaultIndexHTML = `<!DOCTYPE html>
<html><body>
<h1>auralense</h1>
<form action="/scan" method="post">
<h3>Check a page for low contrast text</h3>
URL: <input type="text" name="url" size="60"><br>
<label><input type="checkbox" name="live" value="1"> use a live browser</label><br>
<button type="submit">Scan</button>
</form>
</body></html>`

const (
	defaultSitesDir   = "config/sites"
	defaultSessionTTL = 15 * time.Minute
)

// Config describes server wiring and runtime behaviour.
type Config struct {
	IndexHTML      string
	SitesDir       string
	ReportsDB      string
	SessionTTL     time.Duration
	BrowserPath    string
	DisableLive    bool
	ViewportWidth  int
	ViewportHeight int
	Logger         *log.Logger
	Clock          func() time.Time

	// Opener starts live pages. Live scans are refused when it is nil.
	Opener Opener
	// Reports records every pass when set.
	Reports *reports.Store
}

// DefaultConfig populates configuration from environment variables.
func DefaultConfig() Config {
	cfg := Config{
		IndexHTML:   defaultIndexHTML,
		Logger:      log.Default(),
		Clock:       time.Now,
		SitesDir:    strings.TrimSpace(os.Getenv("AURALENSE_SITES_DIR")),
		ReportsDB:   strings.TrimSpace(os.Getenv("AURALENSE_REPORTS_DB")),
		BrowserPath: strings.TrimSpace(os.Getenv("AURALENSE_BROWSER")),
		SessionTTL:  defaultSessionTTL,
	}
	if cfg.SitesDir == "" {
		cfg.SitesDir = defaultSitesDir
	}
	if raw := strings.TrimSpace(os.Getenv("AURALENSE_SESSION_TTL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("AURALENSE_LIVE"))) {
	case "0", "off", "false", "no":
		cfg.DisableLive = true
	}
	return cfg
}

type fileConfig struct {
	SitesDir   string `yaml:"sites_dir"`
	ReportsDB  string `yaml:"reports_db"`
	SessionTTL string `yaml:"session_ttl"`
	IndexHTML  string `yaml:"index_html"`
	Browser    struct {
		Path           string `yaml:"path"`
		Disabled       bool   `yaml:"disabled"`
		ViewportWidth  int    `yaml:"viewport_width"`
		ViewportHeight int    `yaml:"viewport_height"`
	} `yaml:"browser"`
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys missing from
// the file keep cfg's values.
func LoadConfigFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.SitesDir != "" {
		cfg.SitesDir = fc.SitesDir
	}
	if fc.ReportsDB != "" {
		cfg.ReportsDB = fc.ReportsDB
	}
	if fc.IndexHTML != "" {
		cfg.IndexHTML = fc.IndexHTML
	}
	if fc.SessionTTL != "" {
		d, err := time.ParseDuration(fc.SessionTTL)
		if err != nil {
			return cfg, fmt.Errorf("parse config %s: session_ttl: %w", path, err)
		}
		cfg.SessionTTL = d
	}
	if fc.Browser.Path != "" {
		cfg.BrowserPath = fc.Browser.Path
	}
	if fc.Browser.Disabled {
		cfg.DisableLive = true
	}
	if fc.Browser.ViewportWidth > 0 {
		cfg.ViewportWidth = fc.Browser.ViewportWidth
	}
	if fc.Browser.ViewportHeight > 0 {
		cfg.ViewportHeight = fc.Browser.ViewportHeight
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IndexHTML == "" {
		c.IndexHTML = defaultIndexHTML
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SitesDir == "" {
		c.SitesDir = defaultSitesDir
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 800
	}
}

// Server exposes the HTTP handlers.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	handler  http.Handler
	logger   *log.Logger
	sessions *sessionStore
	sites    *siteConfigStore
	opener   Opener
	reports  *reports.Store
	clock    func() time.Time
}

// New wires a server with the provided configuration.
func New(cfg Config) *Server {
	cfg.applyDefaults()
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		logger:   cfg.Logger,
		sessions: newSessionStore(cfg.Clock, cfg.SessionTTL),
		sites:    newSiteConfigStore(cfg.SitesDir),
		reports:  cfg.Reports,
		clock:    cfg.Clock,
	}
	if !cfg.DisableLive {
		s.opener = cfg.Opener
	}
	s.registerRoutes()
	s.handler = withLogging(s.logger, s.mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close ends every open session.
func (s *Server) Close() {
	n := s.sessions.closeAll()
	if n > 0 {
		s.logger.Printf("closed %d sessions", n)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/scan", s.handleScan)
	s.mux.HandleFunc("/fix", s.handleFix)
	s.mux.HandleFunc("/close", s.handleClose)
	s.mux.HandleFunc("/reports", s.handleReports)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/ping", s.handlePing)
}

func (s *Server) viewport() (int, int) {
	return s.cfg.ViewportWidth, s.cfg.ViewportHeight
}
