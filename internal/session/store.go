// Package session persists relying-party session cookies for a single
// configured origin. The store backing is swappable: an in-memory cookie jar
// for ephemeral use and a SQLite store that survives restarts.
package session

import (
	"net/http"
	"net/url"
)

// Store holds session cookies for the relying-party origin. Clear backs the
// local sign-out path and must always succeed from the caller's perspective.
type Store interface {
	SetCookies(origin *url.URL, cookies []*http.Cookie)
	Cookies(origin *url.URL) []*http.Cookie
	Clear()
}
