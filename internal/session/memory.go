package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// MemoryStore keeps session cookies in process memory, scoped by the public
// suffix list so cookies never leak across registrable domains.
type MemoryStore struct {
	mu  sync.Mutex
	jar http.CookieJar
}

func newJar() http.CookieJar {
	// cookiejar.New never fails with a well-formed options struct.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// NewMemoryStore creates an empty in-memory cookie store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jar: newJar()}
}

// SetCookies records cookies for the origin.
func (s *MemoryStore) SetCookies(origin *url.URL, cookies []*http.Cookie) {
	if s == nil || origin == nil || len(cookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(origin, cookies)
}

// Cookies returns the cookies stored for the origin.
func (s *MemoryStore) Cookies(origin *url.URL) []*http.Cookie {
	if s == nil || origin == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar.Cookies(origin)
}

// Clear drops every stored cookie.
func (s *MemoryStore) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = newJar()
}
