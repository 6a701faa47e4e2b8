// Package replay persists battle traffic and outcomes to SQLite. Hook a
// Store's Traffic method into a connection and every line exchanged with the
// simulator is recorded in order, enough to replay or post-mortem a battle.
package replay

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"showdown-engine/battle"
	"showdown-engine/client"
	"showdown-engine/internal/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS battles (
	id         INTEGER PRIMARY KEY,
	format     TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP,
	outcome    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS traffic (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	battle_id INTEGER NOT NULL,
	direction TEXT NOT NULL,
	line      TEXT NOT NULL,
	at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS traffic_battle ON traffic(battle_id, seq);
`

// Line is one recorded traffic line.
type Line struct {
	Seq       int64
	Direction client.Direction
	Line      string
	At        time.Time
}

// Store is a SQLite-backed battle recorder. Safe for concurrent use; the
// database serializes writers.
type Store struct {
	db         *sql.DB
	insertLine *sql.Stmt
}

// Open creates or opens the store at filename. ":memory:" works for tests.
func Open(filename string) (*Store, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open replay store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping replay store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create replay schema: %w", err)
	}
	insertLine, err := db.Prepare(
		`INSERT INTO traffic (battle_id, direction, line, at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare replay insert: %w", err)
	}
	return &Store{db: db, insertLine: insertLine}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.insertLine.Close()
	return s.db.Close()
}

// StartBattle registers a battle before its first traffic line.
func (s *Store) StartBattle(id uint64, format string) error {
	_, err := s.db.Exec(
		`INSERT INTO battles (id, format, started_at) VALUES (?, ?, ?)`,
		int64(id), format, time.Now())
	if err != nil {
		return fmt.Errorf("record battle %d: %w", id, err)
	}
	return nil
}

// FinishBattle stamps the battle's outcome.
func (s *Store) FinishBattle(id uint64, outcome battle.Outcome) error {
	_, err := s.db.Exec(
		`UPDATE battles SET outcome = ?, ended_at = ? WHERE id = ?`,
		int(outcome), time.Now(), int64(id))
	if err != nil {
		return fmt.Errorf("finish battle %d: %w", id, err)
	}
	return nil
}

// Traffic records one line. It matches client.TrafficFunc, so pass
// store.Traffic as the connection's traffic hook. Recording failures are
// logged, not returned: dropping a replay line must not kill the battle.
func (s *Store) Traffic(direction client.Direction, battleID uint64, line string) {
	if _, err := s.insertLine.Exec(int64(battleID), string(direction), line, time.Now()); err != nil {
		log.Error("replay record failed", "id", battleID, "err", err)
	}
}

// Lines returns a battle's traffic in recorded order.
func (s *Store) Lines(battleID uint64) ([]Line, error) {
	rows, err := s.db.Query(
		`SELECT seq, direction, line, at FROM traffic WHERE battle_id = ? ORDER BY seq`,
		int64(battleID))
	if err != nil {
		return nil, fmt.Errorf("load battle %d traffic: %w", battleID, err)
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		var dir string
		if err := rows.Scan(&l.Seq, &dir, &l.Line, &l.At); err != nil {
			return nil, err
		}
		l.Direction = client.Direction(dir)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Outcome returns a battle's recorded outcome.
func (s *Store) Outcome(battleID uint64) (battle.Outcome, error) {
	var outcome int
	err := s.db.QueryRow(
		`SELECT outcome FROM battles WHERE id = ?`, int64(battleID)).Scan(&outcome)
	if err != nil {
		return 0, fmt.Errorf("load battle %d outcome: %w", battleID, err)
	}
	return battle.Outcome(outcome), nil
}
