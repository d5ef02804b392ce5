package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jrsteele09/go-auth-engine/internal/store/sqlite/migrations"
	"github.com/jrsteele09/go-auth-engine/internal/utils"
	_ "modernc.org/sqlite"
)

// Store is the durable home of the session family: login sessions, sessions, refresh
// tokens and codes.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*Store)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(dsn string, options ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA foreign_keys = ON;`, `PRAGMA busy_timeout = 5000;`} {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ApplyMigrations applies the embedded migrations.
func (s *Store) ApplyMigrations() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}
	instance, err := migrate.NewWithInstance("iofs", source, "", driver)
	if err != nil {
		return err
	}
	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) LoginSessions() *LoginSessionRepo { return &LoginSessionRepo{db: s.db, now: s.now} }
func (s *Store) Sessions() *SessionRepo           { return &SessionRepo{db: s.db} }
func (s *Store) RefreshTokens() *RefreshTokenRepo { return &RefreshTokenRepo{db: s.db} }
func (s *Store) Codes() *CodeRepo                 { return &CodeRepo{db: s.db, now: s.now} }

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	return utils.Ptr(time.UnixMilli(n.Int64).UTC())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
