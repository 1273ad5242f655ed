package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                                // Local SQLite driver

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type SQLiteRepository struct {
	db *sql.DB

	links  *LinkRepository
	groups *GroupRepository
	users  *UserRepository
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite" {
		// A single writer avoids SQLITE_BUSY/LOCKED between pooled connections.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &SQLiteRepository{
		db:     db,
		links:  &LinkRepository{db: db},
		groups: &GroupRepository{db: db},
		users:  &UserRepository{db: db},
	}, nil
}

func (r *SQLiteRepository) Links() *LinkRepository   { return r.links }
func (r *SQLiteRepository) Groups() *GroupRepository { return r.groups }
func (r *SQLiteRepository) Users() *UserRepository   { return r.users }

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		short_uri TEXT NOT NULL,
		full_short_url TEXT NOT NULL,
		origin_url TEXT NOT NULL,
		gid TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		valid_date_type INTEGER NOT NULL DEFAULT 0,
		valid_date DATETIME,
		description TEXT NOT NULL DEFAULT '',
		enable_status INTEGER NOT NULL DEFAULT 0,
		del_flag INTEGER NOT NULL DEFAULT 0,
		del_time INTEGER NOT NULL DEFAULT 0,
		total_pv INTEGER NOT NULL DEFAULT 0,
		total_uv INTEGER NOT NULL DEFAULT 0,
		total_uip INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_links_domain_short_uri ON links(domain, short_uri) WHERE del_flag = 0;
	CREATE INDEX IF NOT EXISTS idx_links_owner_gid ON links(user_id, gid, enable_status, del_flag);

	CREATE TABLE IF NOT EXISTS link_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gid TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		del_flag INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_link_groups_user ON link_groups(user_id, del_flag);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		real_name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		mail TEXT NOT NULL DEFAULT '',
		del_flag INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(query)
	return err
}

// translate maps driver specific unique violations onto ports.ErrDuplicateKey.
func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT_UNIQUE") {
		return errors.Join(ports.ErrDuplicateKey, err)
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
