package server

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SiteConfig holds per-host settings read from <SitesDir>/<host>.json. A file
// for example.com also applies to its subdomains.
type SiteConfig struct {
	// Mode is "static" or "live"; it picks how a URL is loaded when the
	// request does not say.
	Mode            string            `json:"mode"`
	Headers         map[string]string `json:"headers,omitempty"`
	WaitSelector    string            `json:"waitSelector,omitempty"`
	WaitAfterLoadMS int               `json:"waitAfterLoadMs,omitempty"`
	DarkScheme      bool              `json:"darkScheme,omitempty"`
}

func (c *SiteConfig) waitAfterLoad() time.Duration {
	if c == nil || c.WaitAfterLoadMS <= 0 {
		return 0
	}
	return time.Duration(c.WaitAfterLoadMS) * time.Millisecond
}

type siteConfigStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*SiteConfig
}

func newSiteConfigStore(dir string) *siteConfigStore {
	return &siteConfigStore{
		dir:   dir,
		cache: make(map[string]*SiteConfig),
	}
}

// Find returns the config for target's host, or nil.
func (s *siteConfigStore) Find(target string) *SiteConfig {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	s.mu.RLock()
	if cfg, ok := s.cache[host]; ok {
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	labels := strings.Split(host, ".")
	for i := 0; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")
		if cfg := s.load(candidate); cfg != nil {
			s.mu.Lock()
			s.cache[host] = cfg
			s.mu.Unlock()
			return cfg
		}
	}
	s.mu.Lock()
	s.cache[host] = nil
	s.mu.Unlock()
	return nil
}

func (s *siteConfigStore) load(host string) *SiteConfig {
	if s.dir == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, host+".json"))
	if err != nil {
		return nil
	}
	var cfg SiteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	cfg.Mode = strings.TrimSpace(strings.ToLower(cfg.Mode))
	return &cfg
}
