// Package dbtest provides an in-memory Driver with connection accounting and
// snapshot-isolated transactions. Tests use it to observe commit/rollback and
// pool behaviour without a real database.
//
// Transactions interpret a micro query language:
//
//	ExecContext:   "SET <key> <int>", "INCR <key>"
//	GetContext:    "GET <key>" into *int (sql.ErrNoRows when missing)
//	SelectContext: "KEYS" into *[]string
//
// SET commits the absolute value. INCR commits a delta against the latest
// committed state, the way a row-locked "n = n + 1" behaves, so concurrent
// increments never lose updates.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rootedapp/portal/internal/database"
)

// Driver is a fake database.Driver. The zero value is not usable; call New.
type Driver struct {
	mu   sync.Mutex
	data map[string]int

	inUse      int
	opened     int
	committed  int
	rolledBack int

	// BeginErr, CommitErr and RollbackErr, when set, fail the corresponding
	// call. A failed commit still releases the connection, matching
	// database/sql semantics.
	BeginErr    error
	CommitErr   error
	RollbackErr error
}

var _ database.Driver = (*Driver)(nil)

// New creates an empty fake driver.
func New() *Driver {
	return &Driver{data: make(map[string]int)}
}

// Begin hands out a transaction with a snapshot of committed state.
func (d *Driver) Begin(ctx context.Context) (database.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.BeginErr != nil {
		return nil, d.BeginErr
	}

	snapshot := make(map[string]int, len(d.data))
	for k, v := range d.data {
		snapshot[k] = v
	}
	d.inUse++
	d.opened++
	return &tx{drv: d, snapshot: snapshot, writes: make(map[string]int), deltas: make(map[string]int)}, nil
}

// Stats reports current connection accounting.
func (d *Driver) Stats() database.PoolStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return database.PoolStats{InUse: d.inUse}
}

// Close is a no-op for the fake pool.
func (d *Driver) Close() error { return nil }

// Committed returns the durably committed value for key.
func (d *Driver) Committed(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data[key]
}

// Counters returns (opened, committed, rolledBack) transaction counts.
func (d *Driver) Counters() (int, int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.committed, d.rolledBack
}

type tx struct {
	drv      *Driver
	mu       sync.Mutex
	snapshot map[string]int
	writes   map[string]int // absolute values from SET
	deltas   map[string]int // pending increments from INCR
	done     bool
}

type result struct{ rows int64 }

func (r result) LastInsertId() (int64, error) { return 0, nil }
func (r result) RowsAffected() (int64, error) { return r.rows, nil }

func (t *tx) read(key string) (int, bool) {
	if v, ok := t.writes[key]; ok {
		return v, true
	}
	v, ok := t.snapshot[key]
	if d, incremented := t.deltas[key]; incremented {
		return v + d, true
	}
	return v, ok
}

func (t *tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, sql.ErrTxDone
	}

	fields := strings.Fields(query)
	switch {
	case len(fields) == 3 && fields[0] == "SET":
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("dbtest: bad SET value %q", fields[2])
		}
		t.writes[fields[1]] = n
		delete(t.deltas, fields[1])
		return result{rows: 1}, nil
	case len(fields) == 2 && fields[0] == "INCR":
		if _, set := t.writes[fields[1]]; set {
			t.writes[fields[1]]++
		} else {
			t.deltas[fields[1]]++
		}
		return result{rows: 1}, nil
	default:
		return nil, fmt.Errorf("dbtest: unsupported exec %q", query)
	}
}

func (t *tx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}

	fields := strings.Fields(query)
	if len(fields) != 2 || fields[0] != "GET" {
		return fmt.Errorf("dbtest: unsupported get %q", query)
	}
	v, ok := t.read(fields[1])
	if !ok {
		return sql.ErrNoRows
	}
	out, isInt := dest.(*int)
	if !isInt {
		return fmt.Errorf("dbtest: GET dest must be *int, got %T", dest)
	}
	*out = v
	return nil
}

func (t *tx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}

	if strings.TrimSpace(query) != "KEYS" {
		return fmt.Errorf("dbtest: unsupported select %q", query)
	}
	out, ok := dest.(*[]string)
	if !ok {
		return fmt.Errorf("dbtest: KEYS dest must be *[]string, got %T", dest)
	}

	seen := make(map[string]struct{})
	for k := range t.snapshot {
		seen[k] = struct{}{}
	}
	for k := range t.writes {
		seen[k] = struct{}{}
	}
	for k := range t.deltas {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	*out = keys
	return nil
}

func (t *tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true

	t.drv.mu.Lock()
	defer t.drv.mu.Unlock()
	t.drv.inUse--
	if t.drv.CommitErr != nil {
		t.drv.rolledBack++
		return t.drv.CommitErr
	}
	for k, v := range t.writes {
		t.drv.data[k] = v
	}
	for k, d := range t.deltas {
		t.drv.data[k] += d
	}
	t.drv.committed++
	return nil
}

func (t *tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true

	t.drv.mu.Lock()
	defer t.drv.mu.Unlock()
	t.drv.inUse--
	t.drv.rolledBack++
	return t.drv.RollbackErr
}
