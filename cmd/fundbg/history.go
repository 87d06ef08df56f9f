package main

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// history stores REPL input lines in a small sqlite database under the
// user's home directory.
type history struct {
	db *sql.DB
}

func openHistory() (*history, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(home, ".fundbg_history.db"))
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		line TEXT NOT NULL,
		at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &history{db: db}, nil
}

// Append records one input line. Failures are ignored; history is best
// effort.
func (h *history) Append(line string) {
	h.db.Exec(`INSERT INTO history (line) VALUES (?)`, line)
}

// Recent returns the last n lines, oldest first.
func (h *history) Recent(n int) ([]string, error) {
	rows, err := h.db.Query(
		`SELECT line FROM (SELECT id, line FROM history ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (h *history) Close() error { return h.db.Close() }
