package passkey

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("passkey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Action != "sign-in" {
		t.Fatalf("Action = %q, want sign-in", cfg.Action)
	}
	if cfg.Domain != "frbpasskey.ymedia.in" {
		t.Fatalf("Domain = %q, want default", cfg.Domain)
	}
	if cfg.SessionPath != "" {
		t.Fatalf("SessionPath = %q, want empty", cfg.SessionPath)
	}
}

func TestParseConfigEnvFallback(t *testing.T) {
	fs := flag.NewFlagSet("passkey", flag.ContinueOnError)
	env := map[string]string{
		"FRBPASSKEY_RP_DOMAIN":    "example.com",
		"FRBPASSKEY_SESSION_PATH": "/tmp/session.db",
	}
	cfg, err := ParseConfig(fs, nil, func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Domain != "example.com" {
		t.Fatalf("Domain = %q, want example.com", cfg.Domain)
	}
	if cfg.SessionPath != "/tmp/session.db" {
		t.Fatalf("SessionPath = %q, want /tmp/session.db", cfg.SessionPath)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	fs := flag.NewFlagSet("passkey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-action", "sign-up", "-username", "alice", "-domain", "override.test"}, func(key string) (string, bool) {
		return "env.test", key == "FRBPASSKEY_RP_DOMAIN"
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Action != "sign-up" || cfg.Username != "alice" {
		t.Fatalf("cfg = %+v, want sign-up/alice", cfg)
	}
	if cfg.Domain != "override.test" {
		t.Fatalf("Domain = %q, want flag override", cfg.Domain)
	}
}

func TestRunRejectsUnknownAction(t *testing.T) {
	err := Run(context.Background(), Config{Action: "frobnicate", Domain: "frbpasskey.ymedia.in"})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestRunSignUpRequiresUsername(t *testing.T) {
	err := Run(context.Background(), Config{Action: "sign-up", Domain: "frbpasskey.ymedia.in"})
	if err == nil {
		t.Fatal("expected error for missing username")
	}
}

// TestRunSignUpRoundTrip drives a full registration followed by an assertion
// against a fake relying party.
func TestRunSignUpRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signup/public-key/challenge":
			json.NewEncoder(w).Encode(map[string]any{"challenge": "c2lnbnVw", "user": map[string]string{"id": "u1"}})
		case "/login/public-key/challenge":
			json.NewEncoder(w).Encode(map[string]any{"challenge": "bG9naW4"})
		case "/login/public-key":
			http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: "s3cret", Path: "/"})
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "location": "/"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	cfg := Config{
		Action:   "sign-up",
		Username: "alice",
		Domain:   "frbpasskey.ymedia.in",
		BaseURL:  server.URL,
	}
	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
}
