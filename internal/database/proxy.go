package database

import (
	"context"
	"database/sql"

	"github.com/rootedapp/portal/internal/errors"
	"github.com/rootedapp/portal/internal/reqscope"
)

var sessionCell = reqscope.NewCell[*Session]("db_session")

// SessionToken restores the session cell on lifecycle exit.
type SessionToken = reqscope.Token[*Session]

// BindSession publishes the handle for the current request.
func BindSession(ctx context.Context, s *Session) (context.Context, SessionToken) {
	return sessionCell.Bind(ctx, s)
}

// ResetSession clears the binding; the proxy is unusable from this instant,
// including through contexts downstream code may have captured.
func ResetSession(tok SessionToken) {
	sessionCell.Reset(tok)
}

// CurrentSession resolves the session bound to ctx's request.
func CurrentSession(ctx context.Context) (*Session, error) {
	s, err := sessionCell.Get(ctx)
	if err != nil {
		return nil, errors.NoActiveSession()
	}
	return s, nil
}

// SessionProxy is the stable handle given to business code. It holds no
// connection state of its own; every call resolves the session currently
// bound for the calling request and forwards. Two requests invoking the same
// proxy value therefore operate on two independent transactions.
type SessionProxy struct{}

var _ Querier = SessionProxy{}

// NewSessionProxy returns the stateless proxy.
func NewSessionProxy() SessionProxy { return SessionProxy{} }

// ExecContext forwards to the bound session.
func (SessionProxy) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	s, err := CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.ExecContext(ctx, query, args...)
}

// GetContext forwards to the bound session.
func (SessionProxy) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	s, err := CurrentSession(ctx)
	if err != nil {
		return err
	}
	return s.GetContext(ctx, dest, query, args...)
}

// SelectContext forwards to the bound session.
func (SessionProxy) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	s, err := CurrentSession(ctx)
	if err != nil {
		return err
	}
	return s.SelectContext(ctx, dest, query, args...)
}
