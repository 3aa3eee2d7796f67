// Package ceremony sequences passkey ceremonies: challenge fetch,
// authenticator invocation, response encoding, server submission, and
// outcome broadcast. One modal ceremony runs at a time.
package ceremony

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/frbpasskey/internal/authenticator"
	"github.com/louisbranch/frbpasskey/internal/events"
	"github.com/louisbranch/frbpasskey/internal/platform/errors"
	"github.com/louisbranch/frbpasskey/internal/session"
	"github.com/louisbranch/frbpasskey/internal/wire"
)

// State is a ceremony attempt's position in its lifecycle.
type State string

const (
	StateIdle                  State = "idle"
	StateFetchingChallenge     State = "fetching_challenge"
	StateAwaitingAuthenticator State = "awaiting_authenticator"
	StateSubmitting            State = "submitting"
	StateSucceeded             State = "succeeded"
	StateFailed                State = "failed"
	StateCanceled              State = "canceled"
)

// RelyingParty is the server-side collaborator for ceremonies. *rp.Client
// satisfies it; tests substitute fakes.
type RelyingParty interface {
	Domain() string
	FetchLoginChallenge(ctx context.Context) (wire.Challenge, error)
	FetchSignupChallenge(ctx context.Context, username string) (wire.Challenge, error)
	SubmitRegistration(ctx context.Context, submission wire.SignUpSubmission) (wire.LoginResult, error)
	SubmitAssertion(ctx context.Context, submission wire.SignInSubmission) (wire.LoginResult, error)
	LogOut(ctx context.Context) (wire.LogoutResult, error)
}

// Config tunes orchestrator behavior.
type Config struct {
	// AuthenticatorTimeout bounds the authenticator step. Zero means no
	// timeout: the step is bounded only by platform-side cancellation,
	// matching the legacy client.
	AuthenticatorTimeout time.Duration
}

// Orchestrator drives passkey ceremonies against one relying party. It is
// constructed with injected collaborators; there is no process-wide
// singleton.
type Orchestrator struct {
	cfg      Config
	rp       RelyingParty
	auth     authenticator.Authenticator
	bus      *events.Bus
	sessions session.Store
	tracer   trace.Tracer

	mu             sync.Mutex
	modalInFlight  bool
	autofillGen    uint64
	autofillCancel context.CancelFunc
}

// New creates an orchestrator. All collaborators are required except
// sessions, which may be nil when local sign-out state is managed elsewhere.
func New(cfg Config, relyingParty RelyingParty, auth authenticator.Authenticator, bus *events.Bus, sessions session.Store) (*Orchestrator, error) {
	if relyingParty == nil {
		return nil, errors.New(errors.CodeUnknown, "relying-party client is required")
	}
	if auth == nil {
		return nil, errors.New(errors.CodeUnknown, "authenticator is required")
	}
	if bus == nil {
		return nil, errors.New(errors.CodeUnknown, "event bus is required")
	}
	return &Orchestrator{
		cfg:      cfg,
		rp:       relyingParty,
		auth:     auth,
		bus:      bus,
		sessions: sessions,
		tracer:   otel.Tracer("frbpasskey/ceremony"),
	}, nil
}

// SignIn runs one modal sign-in ceremony and returns its terminal state.
// A second modal ceremony started before the first completes is rejected
// with CEREMONY_IN_FLIGHT and emits no event.
func (o *Orchestrator) SignIn(ctx context.Context, pres authenticator.PresentationContext, preferImmediate bool) (State, error) {
	if err := o.acquireModal(); err != nil {
		return StateIdle, err
	}
	defer o.releaseModal()

	ctx, span := o.tracer.Start(ctx, "ceremony.sign_in")
	defer span.End()

	state, err := o.runSignIn(ctx, pres, preferImmediate)
	span.SetAttributes(attribute.String("ceremony.state", string(state)))
	return state, err
}

func (o *Orchestrator) runSignIn(ctx context.Context, pres authenticator.PresentationContext, preferImmediate bool) (State, error) {
	challengeBytes, err := o.fetchLoginChallenge(ctx)
	if err != nil {
		return o.fail(err)
	}

	result, err := o.invokeAuthenticator(ctx, func(authCtx context.Context) (authenticator.CredentialResult, error) {
		return o.auth.CreateAssertion(authCtx, o.rp.Domain(), challengeBytes, authenticator.AssertionOptions{
			PreferImmediateCredentials: preferImmediate,
			Presentation:               pres,
		})
	})
	if err != nil {
		return o.fail(err)
	}
	return o.completeAssertion(ctx, result)
}

// SignUp runs one modal registration ceremony for username. A successful
// registration is an implicit sign-in.
func (o *Orchestrator) SignUp(ctx context.Context, username string, pres authenticator.PresentationContext) (State, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return StateIdle, errors.New(errors.CodeUsernameEmpty, "username is required")
	}
	if err := o.acquireModal(); err != nil {
		return StateIdle, err
	}
	defer o.releaseModal()

	ctx, span := o.tracer.Start(ctx, "ceremony.sign_up")
	defer span.End()

	state, err := o.runSignUp(ctx, username, pres)
	span.SetAttributes(attribute.String("ceremony.state", string(state)))
	return state, err
}

func (o *Orchestrator) runSignUp(ctx context.Context, username string, pres authenticator.PresentationContext) (State, error) {
	challenge, err := o.rp.FetchSignupChallenge(ctx, username)
	if err != nil {
		return o.fail(err)
	}
	challengeBytes, err := wire.DecodeBase64URL(challenge.Challenge)
	if err != nil {
		return o.fail(errors.Wrap(errors.CodeDecodeFailure, "malformed signup challenge", err))
	}
	if challenge.User == nil || challenge.User.ID == "" {
		return o.fail(errors.New(errors.CodeChallengeMissingUser, "signup challenge is missing the user id"))
	}
	userID := []byte(challenge.User.ID)

	result, err := o.invokeAuthenticator(ctx, func(authCtx context.Context) (authenticator.CredentialResult, error) {
		return o.auth.CreateRegistration(authCtx, o.rp.Domain(), challengeBytes, username, userID)
	})
	if err != nil {
		return o.fail(err)
	}

	switch result.Kind {
	case authenticator.KindRegistration:
		return o.submitRegistration(ctx, result.Registration)
	case authenticator.KindCanceled:
		return StateCanceled, nil
	case authenticator.KindFault:
		return o.fail(errors.New(errors.CodeAuthenticatorFault, result.FaultReason))
	default:
		return o.fail(errors.New(errors.CodeCredentialUnsupported, "unsupported credential type"))
	}
}

// BeginAutofillAssistedSignIn runs a passive assertion ceremony surfaced
// alongside a text-entry affordance. It does not take the modal guard and a
// later explicit SignIn or SignUp supersedes it.
func (o *Orchestrator) BeginAutofillAssistedSignIn(ctx context.Context, pres authenticator.PresentationContext) (State, error) {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	if o.autofillCancel != nil {
		o.autofillCancel()
	}
	o.autofillGen++
	gen := o.autofillGen
	o.autofillCancel = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		// A newer autofill attempt may own the slot by now.
		if o.autofillGen == gen {
			o.autofillCancel = nil
		}
		o.mu.Unlock()
	}()

	ctx, span := o.tracer.Start(ctx, "ceremony.autofill_sign_in")
	defer span.End()

	state, err := o.runAutofill(ctx, pres)
	span.SetAttributes(attribute.String("ceremony.state", string(state)))
	return state, err
}

func (o *Orchestrator) runAutofill(ctx context.Context, pres authenticator.PresentationContext) (State, error) {
	challengeBytes, err := o.fetchLoginChallenge(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Superseded by a modal ceremony mid-fetch.
			return StateCanceled, nil
		}
		return o.fail(err)
	}

	result, err := o.auth.CreateAutofillAssertion(ctx, o.rp.Domain(), challengeBytes)
	if err != nil {
		return o.fail(errors.Wrap(errors.CodeAuthenticatorFault, "authenticator fault", err))
	}
	return o.completeAssertion(ctx, result)
}

// SignOut terminates the session. Local sign-out applies unconditionally:
// the session store is cleared and LoggedOut is emitted even when the
// server-side call fails, with the failure surfaced separately.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "ceremony.sign_out")
	defer span.End()

	result, err := o.rp.LogOut(ctx)
	if err == nil && !result.Status {
		err = errors.New(errors.CodeServerRejected, "logout rejected by server")
	}
	if err != nil {
		o.bus.Publish(events.Outcome{Kind: events.OutcomeFailed, Message: err.Error()})
	}
	if o.sessions != nil {
		o.sessions.Clear()
	}
	o.bus.Publish(events.Outcome{Kind: events.OutcomeLoggedOut})
	return err
}

func (o *Orchestrator) fetchLoginChallenge(ctx context.Context) ([]byte, error) {
	challenge, err := o.rp.FetchLoginChallenge(ctx)
	if err != nil {
		return nil, err
	}
	challengeBytes, err := wire.DecodeBase64URL(challenge.Challenge)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDecodeFailure, "malformed login challenge", err)
	}
	return challengeBytes, nil
}

// invokeAuthenticator applies the configured timeout to one authenticator
// step and normalizes platform faults to domain errors.
func (o *Orchestrator) invokeAuthenticator(ctx context.Context, invoke func(context.Context) (authenticator.CredentialResult, error)) (authenticator.CredentialResult, error) {
	if o.cfg.AuthenticatorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.AuthenticatorTimeout)
		defer cancel()
	}
	result, err := invoke(ctx)
	if err != nil {
		return authenticator.CredentialResult{}, errors.Wrap(errors.CodeAuthenticatorFault, "authenticator fault", err)
	}
	return result, nil
}

// completeAssertion handles the authenticator result of a sign-in ceremony,
// modal or autofill.
func (o *Orchestrator) completeAssertion(ctx context.Context, result authenticator.CredentialResult) (State, error) {
	switch result.Kind {
	case authenticator.KindAssertion:
		return o.submitAssertion(ctx, result.Assertion)
	case authenticator.KindCanceled:
		// An ordinary terminal outcome: no Failed event, no banner.
		return StateCanceled, nil
	case authenticator.KindPassword:
		// The relying party has no password verification endpoint.
		return o.fail(errors.New(errors.CodeCredentialUnsupported, "unsupported credential type"))
	case authenticator.KindFault:
		return o.fail(errors.New(errors.CodeAuthenticatorFault, result.FaultReason))
	default:
		return o.fail(errors.New(errors.CodeCredentialUnsupported, "unsupported credential type"))
	}
}

func (o *Orchestrator) submitAssertion(ctx context.Context, assertion *authenticator.Assertion) (State, error) {
	submission := wire.SignInSubmission{
		ID:                      wire.EncodeBase64URL(assertion.CredentialID),
		AuthenticatorAttachment: "platform",
		Response: wire.NewAssertionResponse(
			assertion.ClientDataJSON,
			assertion.AuthenticatorData,
			assertion.Signature,
			assertion.UserHandle,
		),
	}
	result, err := o.rp.SubmitAssertion(ctx, submission)
	if err != nil {
		return o.fail(err)
	}
	if !result.OK {
		return o.fail(errors.New(errors.CodeServerRejected, "login rejected by server"))
	}
	o.bus.Publish(events.Outcome{Kind: events.OutcomeSignedIn})
	return StateSucceeded, nil
}

func (o *Orchestrator) submitRegistration(ctx context.Context, registration *authenticator.Registration) (State, error) {
	submission := wire.SignUpSubmission{
		Response: wire.NewRegistrationResponse(registration.ClientDataJSON, registration.AttestationObject),
	}
	result, err := o.rp.SubmitRegistration(ctx, submission)
	if err != nil {
		return o.fail(err)
	}
	if !result.OK {
		return o.fail(errors.New(errors.CodeServerRejected, "registration rejected by server"))
	}
	// Successful registration doubles as a sign-in.
	o.bus.Publish(events.Outcome{Kind: events.OutcomeSignedIn})
	return StateSucceeded, nil
}

func (o *Orchestrator) fail(err error) (State, error) {
	o.bus.Publish(events.Outcome{Kind: events.OutcomeFailed, Message: err.Error()})
	return StateFailed, err
}

// acquireModal takes the modal guard and supersedes any pending autofill
// ceremony. The matching releaseModal runs deferred so every exit path,
// including panics, clears the guard.
func (o *Orchestrator) acquireModal() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.modalInFlight {
		return errors.New(errors.CodeCeremonyInFlight, "a ceremony is already in progress")
	}
	o.modalInFlight = true
	if o.autofillCancel != nil {
		o.autofillCancel()
		o.autofillCancel = nil
	}
	return nil
}

func (o *Orchestrator) releaseModal() {
	o.mu.Lock()
	o.modalInFlight = false
	o.mu.Unlock()
}
