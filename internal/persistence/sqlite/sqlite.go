package sqlite

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		display_name TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		password_hash TEXT NOT NULL,
		disabled INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('room', 'device')),
		status TEXT NOT NULL DEFAULT 'available',
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		booked_by TEXT NOT NULL,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		resource_type TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		status TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		purpose TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_at > start_at)
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_device_purposes (
		reservation_id TEXT NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		purpose TEXT NOT NULL,
		PRIMARY KEY (reservation_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		revoked_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_resource ON reservations(resource_id, start_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
}

// Storage bundles the SQLite-backed repositories behind a single handle.
type Storage struct {
	pool         *ConnectionPool
	watch        *ReservationWatch
	Users        *UserRepository
	Resources    *ResourceRepository
	Reservations *ReservationRepository
	Sessions     *SessionRepository
}

// Open connects to the SQLite database at dsn and wires the repositories.
// Call Migrate before first use.
func Open(dsn string) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}

	watch := NewReservationWatch()

	return &Storage{
		pool:         pool,
		watch:        watch,
		Users:        NewUserRepository(pool),
		Resources:    NewResourceRepository(pool),
		Reservations: NewReservationRepository(pool, watch),
		Sessions:     NewSessionRepository(pool),
	}, nil
}

// Pool exposes the underlying connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Watch exposes the reservation change feed.
func (s *Storage) Watch() *ReservationWatch {
	return s.watch
}

// Close releases the change feed and the database connections.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	if s.watch != nil {
		s.watch.Close()
	}
	if s.pool != nil {
		return s.pool.Close()
	}
	return nil
}

// Migrate creates the schema when it does not exist yet.
func (s *Storage) Migrate(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := s.pool.DB().ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
