package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auralense/browser"
	"auralense/internal/reports"
	"auralense/internal/server"
)

func main() {
	addrFlag := flag.String("addr", ":8081", "listen address, e.g. :80 or 0.0.0.0:8081")
	configFlag := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	addr := *addrFlag
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stdout)

	if err := run(addr, *configFlag); err != nil {
		log.Fatal(err)
	}
}

// run serves until interrupted. Resources opened here are released before it
// returns, including on startup errors.
func run(addr, configPath string) error {
	cfg := server.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = server.LoadConfigFile(configPath, cfg)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	if cfg.ReportsDB != "" {
		store, err := reports.Open(cfg.ReportsDB)
		if err != nil {
			return fmt.Errorf("reports: %w", err)
		}
		defer store.Close()
		cfg.Reports = store
		log.Printf("recording reports in %s", cfg.ReportsDB)
	}

	if !cfg.DisableLive {
		b := browser.New(browser.Options{
			ExecPath:       cfg.BrowserPath,
			ViewportWidth:  cfg.ViewportWidth,
			ViewportHeight: cfg.ViewportHeight,
			Logger:         log.Default(),
		})
		defer b.Close()
		cfg.Opener = server.BrowserOpener{Browser: b}
	}

	handler := server.New(cfg)
	defer handler.Close()
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		// Live scans can hold a request for the whole page load.
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          log.New(os.Stdout, "HTTPERR ", log.LstdFlags|log.Lmicroseconds),
		ConnState: func(c net.Conn, s http.ConnState) {
			log.Printf("CONN %s %s", s.String(), c.RemoteAddr())
		},
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Println("Listening on", addr)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
