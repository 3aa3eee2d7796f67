package session

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS session_cookies (
    origin TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    path TEXT NOT NULL DEFAULT '/',
    expires_at INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (origin, name)
);
`

// SQLiteStore persists session cookies on disk so a session survives process
// restarts. Writes are best-effort: the Store interface mirrors the cookie
// jar shape and does not surface per-call persistence errors.
type SQLiteStore struct {
	mu    sync.Mutex
	sqlDB *sql.DB
	clock func() time.Time
}

// Open opens a SQLite cookie store at path and applies the schema.
func Open(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session store path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func originKey(origin *url.URL) string {
	return origin.Scheme + "://" + origin.Host
}

// SetCookies upserts cookies for the origin. A cookie with MaxAge < 0 or an
// expiry in the past is deleted.
func (s *SQLiteStore) SetCookies(origin *url.URL, cookies []*http.Cookie) {
	if s == nil || s.sqlDB == nil || origin == nil || len(cookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	key := originKey(origin)
	for _, cookie := range cookies {
		if cookie == nil || cookie.Name == "" {
			continue
		}
		expiresAt := cookie.Expires
		if cookie.MaxAge > 0 {
			expiresAt = now.Add(time.Duration(cookie.MaxAge) * time.Second)
		}
		expired := cookie.MaxAge < 0 || (!expiresAt.IsZero() && !expiresAt.After(now))
		if expired {
			_, _ = s.sqlDB.Exec(
				`DELETE FROM session_cookies WHERE origin = ? AND name = ?`,
				key, cookie.Name,
			)
			continue
		}
		var expiresMillis int64
		if !expiresAt.IsZero() {
			expiresMillis = expiresAt.UnixMilli()
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = s.sqlDB.Exec(
			`INSERT INTO session_cookies (origin, name, value, path, expires_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (origin, name) DO UPDATE SET
			     value = excluded.value,
			     path = excluded.path,
			     expires_at = excluded.expires_at`,
			key, cookie.Name, cookie.Value, path, expiresMillis,
		)
	}
}

// Cookies returns unexpired cookies stored for the origin.
func (s *SQLiteStore) Cookies(origin *url.URL) []*http.Cookie {
	if s == nil || s.sqlDB == nil || origin == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.sqlDB.Query(
		`SELECT name, value, path, expires_at FROM session_cookies WHERE origin = ? ORDER BY name`,
		originKey(origin),
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	now := s.clock().UTC()
	var cookies []*http.Cookie
	for rows.Next() {
		var (
			name, value, path string
			expiresMillis     int64
		)
		if err := rows.Scan(&name, &value, &path, &expiresMillis); err != nil {
			return cookies
		}
		if expiresMillis > 0 && !time.UnixMilli(expiresMillis).After(now) {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: path})
	}
	return cookies
}

// Clear deletes every stored cookie.
func (s *SQLiteStore) Clear() {
	if s == nil || s.sqlDB == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.sqlDB.Exec(`DELETE FROM session_cookies`)
}
