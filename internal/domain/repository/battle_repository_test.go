package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"code_clash/internal/common"
	"code_clash/internal/domain/model"
)

// The in-memory driver below models the visibility rule the repository
// depends on under read committed: a write made inside an open
// transaction is visible to reads on that transaction's connection, and
// to nobody else until commit.

type battleState struct {
	status   model.BattleStatus
	winnerID *string
	endedAt  *time.Time
}

type battleStore struct {
	mu   sync.Mutex
	rows map[string]battleState
}

type memConn struct {
	store  *battleStore
	staged map[string]battleState // non-nil while a transaction is open
}

func (c *memConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}

func (c *memConn) Close() error { return nil }

func (c *memConn) Begin() (driver.Tx, error) {
	c.staged = map[string]battleState{}
	return c, nil
}

func (c *memConn) Commit() error {
	c.store.mu.Lock()
	for id, st := range c.staged {
		c.store.rows[id] = st
	}
	c.store.mu.Unlock()
	c.staged = nil
	return nil
}

func (c *memConn) Rollback() error {
	c.staged = nil
	return nil
}

func (c *memConn) lookup(id string) (battleState, bool) {
	if c.staged != nil {
		if st, ok := c.staged[id]; ok {
			return st, true
		}
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	st, ok := c.store.rows[id]
	return st, ok
}

func (c *memConn) write(id string, st battleState) {
	if c.staged != nil {
		c.staged[id] = st
		return
	}
	c.store.mu.Lock()
	c.store.rows[id] = st
	c.store.mu.Unlock()
}

func (c *memConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q := strings.TrimSpace(query)
	switch {
	case strings.HasPrefix(q, "UPDATE battles"):
		id := args[0].Value.(string)
		prior := model.BattleStatus(args[4].Value.(string))
		st, ok := c.lookup(id)
		if !ok || st.status != prior {
			return &memRows{cols: []string{"id"}}, nil
		}
		winner := args[2].Value.(string)
		ended := args[3].Value.(time.Time)
		st.status = model.BattleStatus(args[1].Value.(string))
		st.winnerID = &winner
		st.endedAt = &ended
		c.write(id, st)
		return &memRows{cols: []string{"id"}, data: [][]driver.Value{{id}}}, nil
	case strings.HasPrefix(q, "SELECT"):
		id := args[0].Value.(string)
		st, ok := c.lookup(id)
		if !ok {
			return &memRows{cols: battleSelectCols}, nil
		}
		return &memRows{cols: battleSelectCols, data: [][]driver.Value{battleValues(id, st)}}, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", q)
}

var battleSelectCols = []string{
	"id", "creator_id", "defender_id", "problem_id", "language_slug", "difficulty",
	"duration_minutes", "rated", "status", "winner_id", "created_at", "started_at", "ended_at",
	"creator_username", "defender_username",
}

func battleValues(id string, st battleState) []driver.Value {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var winner, ended driver.Value
	if st.winnerID != nil {
		winner = *st.winnerID
	}
	if st.endedAt != nil {
		ended = *st.endedAt
	}
	return []driver.Value{
		id, "creator-1", "defender-1", "problem-1", "python3", "easy",
		int64(10), false, string(st.status), winner, started, started, ended,
		"alice", "bob",
	}
}

type memRows struct {
	cols []string
	data [][]driver.Value
	pos  int
}

func (r *memRows) Columns() []string { return r.cols }
func (r *memRows) Close() error      { return nil }

func (r *memRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}

type memConnector struct{ store *battleStore }

func (c memConnector) Connect(context.Context) (driver.Conn, error) {
	return &memConn{store: c.store}, nil
}

func (c memConnector) Driver() driver.Driver { return memDriver{} }

type memDriver struct{}

func (memDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open through the connector")
}

func newBattleDB(t *testing.T, rows map[string]battleState) (*sql.DB, BattleRepository) {
	t.Helper()
	db := sql.OpenDB(memConnector{store: &battleStore{rows: rows}})
	t.Cleanup(func() { db.Close() })
	return db, NewPgBattleRepository(db)
}

func TestEndBattleReturnsTransactionalState(t *testing.T) {
	db, repo := newBattleDB(t, map[string]battleState{
		"battle-1": {status: model.BattleInProgress},
	})
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	endedAt := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	battle, err := repo.EndBattle(ctx, tx, "battle-1", "defender-1", endedAt)
	if err != nil {
		t.Fatalf("EndBattle: %v", err)
	}
	// The returned snapshot must reflect the write still pending in the
	// transaction, not the pre-update row.
	if battle.Status != model.BattleCompleted {
		t.Errorf("returned status = %q, want %q", battle.Status, model.BattleCompleted)
	}
	if battle.WinnerID == nil || *battle.WinnerID != "defender-1" {
		t.Errorf("returned winner = %v, want defender-1", battle.WinnerID)
	}
	if battle.EndedAt == nil || !battle.EndedAt.Equal(endedAt) {
		t.Errorf("returned ended_at = %v, want %v", battle.EndedAt, endedAt)
	}

	// Other connections keep seeing the committed row until commit.
	outside, err := repo.FindBattleByID(ctx, "battle-1")
	if err != nil {
		t.Fatalf("FindBattleByID: %v", err)
	}
	if outside.Status != model.BattleInProgress {
		t.Errorf("uncommitted write leaked: status = %q", outside.Status)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	after, err := repo.FindBattleByID(ctx, "battle-1")
	if err != nil {
		t.Fatalf("FindBattleByID after commit: %v", err)
	}
	if after.Status != model.BattleCompleted || after.WinnerID == nil {
		t.Errorf("committed state not visible: status %q, winner %v", after.Status, after.WinnerID)
	}
}

func TestEndBattleWithoutTransaction(t *testing.T) {
	_, repo := newBattleDB(t, map[string]battleState{
		"battle-1": {status: model.BattleInProgress},
	})
	ctx := context.Background()
	endedAt := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)

	battle, err := repo.EndBattle(ctx, nil, "battle-1", "creator-1", endedAt)
	if err != nil {
		t.Fatalf("EndBattle: %v", err)
	}
	if battle.Status != model.BattleCompleted {
		t.Errorf("status = %q, want %q", battle.Status, model.BattleCompleted)
	}

	if _, err := repo.EndBattle(ctx, nil, "battle-1", "defender-1", endedAt); !errors.Is(err, common.ErrConflict) {
		t.Errorf("second end: err = %v, want ErrConflict", err)
	}
	if _, err := repo.EndBattle(ctx, nil, "missing", "creator-1", endedAt); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing battle: err = %v, want ErrNotFound", err)
	}
}
