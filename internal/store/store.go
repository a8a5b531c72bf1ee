// Package store implements SQLite persistence for debate sessions: the
// blackboard row, its snapshots, and every child table keyed on the
// blackboard id. All child rows cascade-delete with the blackboard.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database. One Store is shared by all sessions;
// each session writes only rows keyed on its own blackboard id.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at the given path. Use ":memory:"
// for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: the foreign_keys pragma is per-connection, and
	// SQLite allows one writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	blackboards := `
	CREATE TABLE IF NOT EXISTS blackboards (
		id TEXT PRIMARY KEY,
		current_claim TEXT,
		support_strength REAL NOT NULL,
		active_objection TEXT,
		analogy_of_record TEXT,
		cycle_count INTEGER NOT NULL,
		state_json TEXT NOT NULL,
		embedding BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	snapshots := `
	CREATE TABLE IF NOT EXISTS blackboard_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blackboard_id TEXT NOT NULL REFERENCES blackboards(id) ON DELETE CASCADE,
		cycle_number INTEGER NOT NULL,
		state_json TEXT NOT NULL,
		embedding_vector BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_bb ON blackboard_snapshots(blackboard_id, cycle_number);
	`

	contributions := `
	CREATE TABLE IF NOT EXISTS agent_contributions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blackboard_id TEXT NOT NULL REFERENCES blackboards(id) ON DELETE CASCADE,
		cycle_number INTEGER NOT NULL,
		agent_role TEXT NOT NULL,
		model_used TEXT,
		input_prompt TEXT,
		output_text TEXT,
		accepted INTEGER NOT NULL DEFAULT 0,
		support_delta REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_contrib_bb ON agent_contributions(blackboard_id, cycle_number);
	`

	cemetery := `
	CREATE TABLE IF NOT EXISTS cemetery_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blackboard_id TEXT NOT NULL REFERENCES blackboards(id) ON DELETE CASCADE,
		claim TEXT NOT NULL,
		cause_of_death TEXT NOT NULL,
		final_support REAL NOT NULL,
		cycle_killed INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(blackboard_id, claim, cycle_killed)
	);
	`

	frontier := `
	CREATE TABLE IF NOT EXISTS frontier_ideas (
		id TEXT NOT NULL,
		blackboard_id TEXT NOT NULL REFERENCES blackboards(id) ON DELETE CASCADE,
		idea_text TEXT NOT NULL,
		sponsor_ids TEXT NOT NULL,
		sponsor_count INTEGER NOT NULL,
		cycles_alive INTEGER NOT NULL,
		activated INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (blackboard_id, id)
	);
	`

	trajectory := `
	CREATE TABLE IF NOT EXISTS trajectory_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blackboard_id TEXT NOT NULL REFERENCES blackboards(id) ON DELETE CASCADE,
		cycle_number INTEGER NOT NULL,
		embedding_vector BLOB NOT NULL,
		claim_text TEXT NOT NULL,
		support_strength REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(blackboard_id, cycle_number)
	);
	`

	transitions := `
	CREATE TABLE IF NOT EXISTS claim_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blackboard_id TEXT NOT NULL REFERENCES blackboards(id) ON DELETE CASCADE,
		from_cycle INTEGER NOT NULL,
		to_cycle INTEGER NOT NULL,
		previous_claim TEXT NOT NULL,
		new_claim TEXT NOT NULL,
		trigger_agent TEXT NOT NULL,
		trigger_contribution_id INTEGER NOT NULL DEFAULT 0,
		change_type TEXT NOT NULL,
		diff_additions TEXT,
		diff_removals TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(blackboard_id, to_cycle),
		CHECK(to_cycle > from_cycle)
	);
	`

	summaries := `
	CREATE TABLE IF NOT EXISTS claim_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blackboard_id TEXT NOT NULL REFERENCES blackboards(id) ON DELETE CASCADE,
		cycle_number INTEGER NOT NULL,
		context TEXT,
		evolution TEXT,
		addressed_objections TEXT,
		remaining_gaps TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(blackboard_id, cycle_number)
	);
	`

	costs := `
	CREATE TABLE IF NOT EXISTS llm_costs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blackboard_id TEXT NOT NULL REFERENCES blackboards(id) ON DELETE CASCADE,
		cycle_number INTEGER NOT NULL,
		agent_role TEXT NOT NULL,
		model_used TEXT,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_costs_bb ON llm_costs(blackboard_id);
	`

	for _, table := range []string{blackboards, snapshots, contributions, cemetery, frontier, trajectory, transitions, summaries, costs} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DeleteBlackboard removes a blackboard and, via cascade, all child rows.
func (s *Store) DeleteBlackboard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM blackboards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete blackboard %s: %w", id, err)
	}
	return nil
}
