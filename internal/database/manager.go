// Package database implements class session persistence over SQLite.
// Writes funnel through a single goroutine; reads run concurrently
// against the WAL-mode connection pool.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "classpulse/pkg/database"
	"classpulse/pkg/interfaces"
	"classpulse/pkg/types"
)

// Manager implements interfaces.SessionDatabase.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies the schema and starts the
// write loop.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	if _, err := db.Exec(dbconfig.Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	// Single-writer goroutine avoids SQLite write contention.
	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateClassSession inserts a new class session row.
func (m *Manager) CreateClassSession(ctx context.Context, session *types.ClassSession) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO class_sessions (id, channel, name, start_time, status)
			VALUES (?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			session.ID,
			session.Channel,
			session.Name,
			session.StartTime,
			session.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to insert class session: %w", err)
		}
		return nil
	})
}

// GetActiveByChannel returns the channel's active class session, or
// interfaces.ErrSessionNotFound when none is open.
func (m *Manager) GetActiveByChannel(ctx context.Context, channel string) (*types.ClassSession, error) {
	query := `
		SELECT id, channel, name, start_time, end_time, status
		FROM class_sessions
		WHERE channel = ? AND status = 'active'
		ORDER BY start_time DESC
		LIMIT 1
	`

	row := m.db.QueryRowContext(ctx, query, channel)

	session, err := scanClassSession(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to query class session: %w", err)
	}
	return session, nil
}

// UpdateClassSession persists end_time and status changes.
func (m *Manager) UpdateClassSession(ctx context.Context, session *types.ClassSession) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			UPDATE class_sessions
			SET end_time = ?, status = ?
			WHERE id = ?
		`
		_, err := db.ExecContext(ctx, query,
			session.EndTime,
			session.Status,
			session.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update class session: %w", err)
		}
		return nil
	})
}

// ListActiveSessions returns all active class sessions, newest first.
func (m *Manager) ListActiveSessions(ctx context.Context) ([]*types.ClassSession, error) {
	query := `
		SELECT id, channel, name, start_time, end_time, status
		FROM class_sessions
		WHERE status = 'active'
		ORDER BY start_time DESC
	`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active class sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*types.ClassSession

	for rows.Next() {
		session, err := scanClassSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating class session rows: %w", err)
	}

	return sessions, nil
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	_, err := m.db.QueryContext(ctx, "SELECT COUNT(*) FROM class_sessions LIMIT 1")
	if err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// Close drains the write loop and closes the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

func scanClassSession(scan func(dest ...any) error) (*types.ClassSession, error) {
	var session types.ClassSession
	var endTime sql.NullTime

	err := scan(
		&session.ID,
		&session.Channel,
		&session.Name,
		&session.StartTime,
		&endTime,
		&session.Status,
	)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		session.EndTime = &endTime.Time
	}

	return &session, nil
}

func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	return nil
}
