package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxRequestBytes = 8 << 20

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.cfg.IndexHTML)))
	io.WriteString(w, s.cfg.IndexHTML)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req scanRequest
	if isForm(r) {
		_ = r.ParseForm()
		req.URL = r.FormValue("url")
		req.HTML = r.FormValue("html")
		req.Session = r.FormValue("session")
		if v := r.FormValue("live"); v != "" {
			live := parseBool(v)
			req.Live = &live
		}
	} else if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.scan(r.Context(), req, headersFromRequest(r))
	if err != nil {
		s.logger.Printf("scan %s: %v", firstNonEmpty(req.Session, req.URL, "<html>"), err)
		s.writeError(w, statusFor(err), err)
		return
	}
	s.logger.Printf("scan %s: %d issues (session %s)", firstNonEmpty(res.URL, "<html>"), len(res.Issues), res.Session)
	writeJSON(w, http.StatusOK, reply{Type: MsgIssuesResult, Payload: res})
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req fixRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.fix(r.Context(), req)
	if errors.Is(err, errNoIssues) {
		writeJSON(w, http.StatusBadRequest, reply{Type: MsgFixResult, Payload: res})
		return
	}
	if err != nil {
		s.logger.Printf("fix %s: %v", firstNonEmpty(req.Session, "<html>"), err)
		s.writeError(w, statusFor(err), err)
		return
	}
	s.logger.Printf("fix %s: %d of %d issues fixed", firstNonEmpty(req.Session, "<html>"), res.FixedCount, len(req.IssuesToFix))
	writeJSON(w, http.StatusOK, reply{Type: MsgFixResult, Payload: res})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req closeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.closeSession(r.Context(), req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, reply{Type: MsgSessionClosed, Payload: res})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if s.reports == nil {
		http.Error(w, "reports are not enabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.reports.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(list)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong\n")
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, reply{Type: MsgError, Payload: errorResult{Error: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func isForm(r *http.Request) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}
