// -----------------------------------------------------------------------
// Browser Session - one authenticated browser/tab pair per worker
// -----------------------------------------------------------------------

package browser

import (
	"context"
	"sync"
	"time"
)

// Session holds one live browser and one tab context. The process owns at
// most one verified session at a time; it is created by the authenticator
// and invalidated by the job runner when detected dead.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc

	Browser       context.Context
	browserCancel context.CancelFunc

	Tab       context.Context
	tabCancel context.CancelFunc

	LastVerifiedAt time.Time
}

// Alive reports whether the tab context is still usable. It inspects
// context state only and never performs I/O.
func (s *Session) Alive() bool {
	if s == nil || s.Tab == nil {
		return false
	}
	return s.Tab.Err() == nil
}

// MarkVerified stamps the session as freshly authenticated
func (s *Session) MarkVerified() {
	s.LastVerifiedAt = time.Now()
}

// Close tears down the tab, browser and allocator in that order.
// Safe to call on a nil or partially constructed session.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// Store tracks the current session for the worker process. Set replaces the
// current pair without closing the previous one: during re-login the caller
// hands off the old session explicitly, which avoids tearing down a browser
// another component is still draining.
type Store struct {
	mu      sync.RWMutex
	current *Session
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{}
}

// Get returns the current session, or nil if none has been set
func (st *Store) Get() *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Set replaces the current session. The previous session is returned so the
// caller can decide whether to close it.
func (st *Store) Set(s *Session) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	prev := st.current
	st.current = s
	return prev
}

// Clear drops the current session without closing it
func (st *Store) Clear() *Session {
	return st.Set(nil)
}
