// Package passkey wires the diagnostic CLI: it drives passkey ceremonies
// against a relying party with a software authenticator.
package passkey

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/frbpasskey/internal/authenticator"
	"github.com/louisbranch/frbpasskey/internal/authenticator/softtoken"
	"github.com/louisbranch/frbpasskey/internal/ceremony"
	"github.com/louisbranch/frbpasskey/internal/events"
	"github.com/louisbranch/frbpasskey/internal/rp"
	"github.com/louisbranch/frbpasskey/internal/session"
)

// Config holds passkey command configuration.
type Config struct {
	Action          string
	Username        string
	Domain          string
	BaseURL         string
	SessionPath     string
	PreferImmediate bool
	Timeout         time.Duration
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		Action:      "sign-in",
		Domain:      envOrDefault(lookup, []string{"FRBPASSKEY_RP_DOMAIN"}, "frbpasskey.ymedia.in"),
		BaseURL:     envOrDefault(lookup, []string{"FRBPASSKEY_RP_BASE_URL"}, ""),
		SessionPath: envOrDefault(lookup, []string{"FRBPASSKEY_SESSION_PATH"}, ""),
		Timeout:     30 * time.Second,
	}

	fs.StringVar(&cfg.Action, "action", cfg.Action, "Ceremony to run: sign-up, sign-in, autofill, sign-out")
	fs.StringVar(&cfg.Username, "username", cfg.Username, "Username for sign-up")
	fs.StringVar(&cfg.Domain, "domain", cfg.Domain, "Relying-party domain")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Relying-party base URL (defaults to https://<domain>)")
	fs.StringVar(&cfg.SessionPath, "session", cfg.SessionPath, "Path to the SQLite session store (in-memory when empty)")
	fs.BoolVar(&cfg.PreferImmediate, "prefer-immediate", cfg.PreferImmediate, "Only use locally available credentials")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Authenticator step timeout (0 disables)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes one ceremony action and reports its outcome.
func Run(ctx context.Context, cfg Config) error {
	store, closeStore, err := openSessionStore(cfg.SessionPath)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := rp.New(rp.Config{Domain: cfg.Domain, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, store, nil)
	if err != nil {
		return fmt.Errorf("build relying-party client: %w", err)
	}

	token := softtoken.New(client.Origin().String())
	bus := events.NewBus()
	sub := bus.Subscribe()
	defer sub.Cancel()

	orch, err := ceremony.New(ceremony.Config{AuthenticatorTimeout: cfg.Timeout}, client, token, bus, store)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	pres := authenticator.PresentationContext{}
	switch strings.TrimSpace(cfg.Action) {
	case "sign-up":
		if strings.TrimSpace(cfg.Username) == "" {
			return fmt.Errorf("sign-up requires -username")
		}
		// The softtoken holds credentials in memory, so prove the round trip
		// immediately with an assertion against the fresh registration.
		if _, err := orch.SignUp(ctx, cfg.Username, pres); err != nil {
			return reportOutcomes(sub, err)
		}
		_, err = orch.SignIn(ctx, pres, true)
		return reportOutcomes(sub, err)
	case "sign-in":
		_, err := orch.SignIn(ctx, pres, cfg.PreferImmediate)
		return reportOutcomes(sub, err)
	case "autofill":
		_, err := orch.BeginAutofillAssistedSignIn(ctx, pres)
		return reportOutcomes(sub, err)
	case "sign-out":
		err := orch.SignOut(ctx)
		return reportOutcomes(sub, err)
	default:
		return fmt.Errorf("unknown action %q", cfg.Action)
	}
}

func openSessionStore(path string) (session.Store, func(), error) {
	if strings.TrimSpace(path) == "" {
		return session.NewMemoryStore(), func() {}, nil
	}
	store, err := session.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("close session store: %v", err)
		}
	}, nil
}

func reportOutcomes(sub *events.Subscription, err error) error {
	for {
		select {
		case outcome := <-sub.Events():
			if outcome.Message != "" {
				log.Printf("outcome: %s (%s)", outcome.Kind, outcome.Message)
			} else {
				log.Printf("outcome: %s", outcome.Kind)
			}
		default:
			return err
		}
	}
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
