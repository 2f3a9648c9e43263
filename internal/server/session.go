package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"auralense/contrast"
	"auralense/dom"
)

var errSessionNotFound = errors.New("session not found or expired")

// session pairs one document with the scanner and repairer working on it.
// mu serialises passes: a scan invalidates handles an in-flight fix would use.
type session struct {
	id   string
	url  string
	mode string

	mu       sync.Mutex
	doc      *dom.Document
	page     LivePage
	scanner  *contrast.Scanner
	repairer *contrast.Repairer
	closed   bool

	expiresAt time.Time
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.page != nil {
		s.page.Close()
	}
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	clock    func() time.Time
}

func newSessionStore(clock func() time.Time, ttl time.Duration) *sessionStore {
	if clock == nil {
		clock = time.Now
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionStore{sessions: make(map[string]*session), ttl: ttl, clock: clock}
}

// add registers sess under a fresh id. Expired sessions are swept first.
func (s *sessionStore) add(sess *session) string {
	expired := s.sweep()
	for _, old := range expired {
		old.close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.id = uuid.NewString()
	sess.expiresAt = s.clock().Add(s.ttl)
	s.sessions[sess.id] = sess
	return sess.id
}

// get returns a live session and extends its lifetime.
func (s *sessionStore) get(id string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && s.clock().After(sess.expiresAt) {
		delete(s.sessions, id)
		s.mu.Unlock()
		sess.close()
		return nil, errSessionNotFound
	}
	if !ok {
		s.mu.Unlock()
		return nil, errSessionNotFound
	}
	sess.expiresAt = s.clock().Add(s.ttl)
	s.mu.Unlock()
	return sess, nil
}

func (s *sessionStore) remove(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	delete(s.sessions, id)
	return sess, nil
}

func (s *sessionStore) sweep() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	var out []*session
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
			out = append(out, sess)
		}
	}
	return out
}

func (s *sessionStore) closeAll() int {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.close()
	}
	return len(all)
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
