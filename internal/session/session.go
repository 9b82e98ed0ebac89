// Package session owns the single live database connection shared by every
// request.
//
// Requests take a read lease for as long as they use the connection.
// Replacing the connection takes the write lock, so the old handle is closed
// only after every in-flight statement on it has finished.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/database/mysql"
	"github.com/koustreak/askdb/internal/database/postgres"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/logger"
)

// Dialer opens a connection for a normalized config.
type Dialer func(ctx context.Context, cfg *database.ConnectConfig) (database.DB, error)

// Dial opens a MySQL or PostgreSQL connection according to cfg.Driver.
func Dial(ctx context.Context, cfg *database.ConnectConfig) (database.DB, error) {
	var (
		db  database.DB
		err error
	)
	switch cfg.Driver {
	case database.DialectMySQL:
		db, err = mysql.New(ctx, cfg)
	case database.DialectPostgres:
		db, err = postgres.New(ctx, cfg)
	default:
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unsupported driver %q", cfg.Driver))
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Handle is one live connection.
type Handle struct {
	ID          uint64
	DB          database.DB
	Driver      database.Dialect
	Addr        string
	Database    string
	ConnectedAt time.Time
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	Dialer         Dialer
	DefaultDriver  database.Dialect
	ConnectTimeout time.Duration
	Logger         *logger.Logger
}

// Manager holds at most one Handle.
type Manager struct {
	mu      sync.RWMutex
	current *Handle
	nextID  uint64

	dial           Dialer
	defaultDriver  database.Dialect
	connectTimeout time.Duration
	log            *logger.Logger
}

// NewManager returns a Manager with no connection.
func NewManager(opts Options) *Manager {
	m := &Manager{
		dial:           opts.Dialer,
		defaultDriver:  opts.DefaultDriver,
		connectTimeout: opts.ConnectTimeout,
		log:            opts.Logger,
	}
	if m.dial == nil {
		m.dial = Dial
	}
	if m.defaultDriver == "" {
		m.defaultDriver = database.DialectMySQL
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	return m
}

// Connect opens a connection for cfg and makes it current.
//
// The previous connection is closed in every case, after in-flight requests
// release it. On failure the manager is left with no connection and the
// driver's error is returned.
func (m *Manager) Connect(ctx context.Context, cfg database.ConnectConfig) (*Handle, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = m.connectTimeout
	}

	var (
		db  database.DB
		err = cfg.Normalize(m.defaultDriver)
	)
	if err == nil {
		db, err = m.dial(ctx, &cfg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.closeLocked()
	if err != nil {
		m.log.WarnWith("connect failed", err, map[string]interface{}{
			"driver": string(cfg.Driver),
			"addr":   cfg.Addr(),
		})
		return nil, err
	}

	m.nextID++
	m.current = &Handle{
		ID:          m.nextID,
		DB:          db,
		Driver:      cfg.Driver,
		Addr:        cfg.Addr(),
		Database:    cfg.Database,
		ConnectedAt: time.Now(),
	}
	m.log.InfoWith("connected", map[string]interface{}{
		"connection_id": m.current.ID,
		"driver":        string(cfg.Driver),
		"addr":          m.current.Addr,
		"database":      cfg.Database,
	})
	return m.current, nil
}

// Acquire leases the current connection. release must be called exactly
// once; extra calls are ignored.
func (m *Manager) Acquire() (*Handle, func(), error) {
	m.mu.RLock()
	if m.current == nil {
		m.mu.RUnlock()
		return nil, nil, errs.New(errs.ErrKindNotConnected, "Not connected")
	}
	var once sync.Once
	return m.current, func() { once.Do(m.mu.RUnlock) }, nil
}

// Connected reports whether a connection is installed. It does not wait for
// a pending Connect.
func (m *Manager) Connected() bool {
	if !m.mu.TryRLock() {
		// A replacement is in progress.
		return false
	}
	defer m.mu.RUnlock()
	return m.current != nil
}

// Close drops the current connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	if m.current == nil {
		return nil
	}
	old := m.current
	m.current = nil

	err := old.DB.Close()
	if err != nil {
		m.log.WarnWith("closing connection", err, map[string]interface{}{"connection_id": old.ID})
	} else {
		m.log.With().Uint64("connection_id", old.ID).Logger().Debug("connection closed")
	}
	return err
}
