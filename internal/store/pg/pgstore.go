// Package pg backs every domain store with PostgreSQL through the pgx
// stdlib driver. Id sets (assigned admins, entry assignees) live in join
// tables; entry history and products are stored as jsonb documents.
package pg

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fieldpulse.org/internal/attendance"
	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/entry"
	"fieldpulse.org/internal/notify"
)

// Store owns the connection pool and hands out the per-domain store views.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle, used by sqlmock tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() *Users                 { return &Users{db: s.db} }
func (s *Store) Entries() *Entries             { return &Entries{db: s.db} }
func (s *Store) Notifications() *Notifications { return &Notifications{db: s.db} }
func (s *Store) Attendance() *Attendance       { return &Attendance{db: s.db} }

type Users struct{ db *sql.DB }

type Entries struct{ db *sql.DB }

type Notifications struct{ db *sql.DB }

type Attendance struct{ db *sql.DB }

var (
	_ directory.Store  = (*Users)(nil)
	_ entry.Store      = (*Entries)(nil)
	_ notify.Store     = (*Notifications)(nil)
	_ attendance.Store = (*Attendance)(nil)
)

// placeholders renders $start..$start+n-1 for dynamically sized IN lists.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
