package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rootedapp/portal/internal/errors"
)

// SessionState tracks the handle through its lifecycle.
type SessionState string

const (
	StateOpen       SessionState = "open"
	StateCommitted  SessionState = "committed"
	StateRolledBack SessionState = "rolled_back"
	StateClosed     SessionState = "closed"
)

// Session owns one live transaction for the duration of one request. It is
// created by the lifecycle stage, never shared across requests, and finished
// exactly once on every exit path.
type Session struct {
	mu    sync.Mutex
	tx    Tx
	state SessionState
}

var _ Querier = (*Session)(nil)

// OpenSession begins a transaction and returns the owning handle.
func OpenSession(ctx context.Context, driver Driver) (*Session, error) {
	tx, err := driver.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{tx: tx, state: StateOpen}, nil
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) liveTx() (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil, errors.NoActiveSession()
	}
	return s.tx, nil
}

// ExecContext forwards to the owned transaction.
func (s *Session) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	tx, err := s.liveTx()
	if err != nil {
		return nil, err
	}
	return tx.ExecContext(ctx, query, args...)
}

// GetContext forwards to the owned transaction.
func (s *Session) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	tx, err := s.liveTx()
	if err != nil {
		return err
	}
	return tx.GetContext(ctx, dest, query, args...)
}

// SelectContext forwards to the owned transaction.
func (s *Session) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	tx, err := s.liveTx()
	if err != nil {
		return err
	}
	return tx.SelectContext(ctx, dest, query, args...)
}

// Commit flushes pending writes. The session is finished afterwards even when
// the commit itself fails; the underlying connection is released either way.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return errors.NoActiveSession()
	}
	err := s.tx.Commit()
	if err != nil {
		s.state = StateRolledBack
		return err
	}
	s.state = StateCommitted
	return nil
}

// Rollback discards pending writes.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return errors.NoActiveSession()
	}
	err := s.tx.Rollback()
	s.state = StateRolledBack
	return err
}

// Close releases the underlying connection. If the session is still open it
// is rolled back first. Close is idempotent and must be reachable on every
// exit path; leaking a connection is strictly worse than losing the error
// this returns.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return nil
	case StateOpen:
		err := s.tx.Rollback()
		s.state = StateClosed
		return err
	default:
		s.state = StateClosed
		return nil
	}
}
