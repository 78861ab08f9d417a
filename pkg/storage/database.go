package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx"
	"github.com/jackc/pgx/stdlib"
	"github.com/mattn/go-sqlite3"
	"gopkg.in/op/go-logging.v1"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrLoginTaken        = errors.New("login already taken")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Config selects and locates the database
type Config struct {
	// Driver is "sqlite3" or "pgx"
	Driver string

	// URL is a file path for sqlite3 and a connection string for pgx
	URL string

	// User and Password override the credentials of a pgx connection string
	User     string
	Password string
}

// DB is the account and message store of the server. It is safe for
// concurrent use.
type DB struct {
	db     *sql.DB
	driver string
	log    *logging.Logger
}

// Open opens the database and creates missing tables
func Open(cfg Config, log *logging.Logger) (*DB, error) {
	if log == nil {
		log = logging.MustGetLogger("storage")
	}

	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case DriverSQLite, "":
		cfg.Driver = DriverSQLite
		db, err = openSQLite(cfg.URL)
	case DriverPostgres:
		db, err = openPostgres(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	s := &DB{
		db:     db,
		driver: cfg.Driver,
		log:    log,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Noticef("Opened %s database", cfg.Driver)
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite3: empty database path")
	}

	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func openPostgres(cfg Config, log *logging.Logger) (*sql.DB, error) {
	connCfg, err := pgx.ParseConnectionString(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("sql/pgx: invalid connection string: %w", err)
	}
	if cfg.User != "" {
		connCfg.User = cfg.User
	}
	if cfg.Password != "" {
		connCfg.Password = cfg.Password
	}
	connCfg.Logger = &pgxLogger{log: log}
	connCfg.LogLevel = pgx.LogLevelWarn

	db := stdlib.OpenDB(connCfg)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql/pgx: failed to connect: %w", err)
	}
	return db, nil
}

func (s *DB) initSchema() error {
	var stmts []string

	switch s.driver {
	case DriverPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id BIGSERIAL PRIMARY KEY,
				login VARCHAR(64) NOT NULL UNIQUE,
				passwordHash BYTEA NOT NULL,
				passwordSalt BYTEA NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS privateMessages (
				id BIGSERIAL PRIMARY KEY,
				sender BIGINT NOT NULL,
				receiver BIGINT NOT NULL,
				text TEXT NOT NULL
			)`,
		}
	default:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				login TEXT NOT NULL UNIQUE,
				passwordHash BLOB NOT NULL,
				passwordSalt BLOB NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS privateMessages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				sender INTEGER NOT NULL,
				receiver INTEGER NOT NULL,
				text TEXT NOT NULL
			)`,
		}
	}

	stmts = append(stmts,
		`CREATE INDEX IF NOT EXISTS idx_private_messages_sender ON privateMessages(sender)`,
		`CREATE INDEX IF NOT EXISTS idx_private_messages_receiver ON privateMessages(receiver)`,
	)

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres
func (s *DB) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	var pgErr pgx.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Driver returns the name of the database driver in use
func (s *DB) Driver() string {
	return s.driver
}

// Stats holds row counts for the admin API
type Stats struct {
	Accounts int64 `json:"accounts"`
	Messages int64 `json:"messages"`
}

// Stats counts accounts and messages
func (s *DB) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&st.Accounts); err != nil {
		return st, fmt.Errorf("failed to count accounts: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM privateMessages").Scan(&st.Messages); err != nil {
		return st, fmt.Errorf("failed to count messages: %w", err)
	}
	return st, nil
}

// Close closes the database connection
func (s *DB) Close() error {
	return s.db.Close()
}

// pgxLogger forwards pgx driver logs to go-logging
type pgxLogger struct {
	log *logging.Logger
}

func (l *pgxLogger) Log(level pgx.LogLevel, msg string, data map[string]interface{}) {
	parts := make([]string, 0, 1+len(data))
	parts = append(parts, msg)
	for k, v := range data {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	line := strings.Join(parts, " ")

	switch level {
	case pgx.LogLevelNone:
	case pgx.LogLevelDebug, pgx.LogLevelTrace:
		l.log.Debug(line)
	case pgx.LogLevelInfo:
		l.log.Info(line)
	case pgx.LogLevelWarn:
		l.log.Warning(line)
	default:
		l.log.Error(line)
	}
}
