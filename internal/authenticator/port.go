// Package authenticator defines the capability boundary to the platform
// authenticator: create or assert a credential for a challenge, or report
// cancellation. Implementations are host specific; the orchestrator only
// sees this interface.
package authenticator

import "context"

// PresentationContext is an opaque handle to wherever the host platform may
// render authenticator UI. The orchestrator passes it through untouched.
type PresentationContext struct {
	Anchor any
}

// ResultKind discriminates the credential result union.
type ResultKind string

const (
	// KindRegistration carries a newly created credential attestation.
	KindRegistration ResultKind = "registration"
	// KindAssertion carries a signed assertion for an existing credential.
	KindAssertion ResultKind = "assertion"
	// KindPassword carries a locally saved password credential.
	KindPassword ResultKind = "password"
	// KindCanceled reports that the user or platform dismissed the request.
	KindCanceled ResultKind = "canceled"
	// KindFault reports a platform error other than cancellation.
	KindFault ResultKind = "fault"
)

// Registration is the attestation payload of a created credential.
type Registration struct {
	ClientDataJSON    []byte
	AttestationObject []byte
}

// Assertion is the signed proof of possession of an existing credential.
type Assertion struct {
	CredentialID      []byte
	ClientDataJSON    []byte
	AuthenticatorData []byte
	Signature         []byte
	UserHandle        []byte
}

// Password is a legacy saved-password credential.
type Password struct {
	Username string
	Password string
}

// CredentialResult is the tagged union produced by one authenticator
// invocation. Exactly the payload matching Kind is non-nil; results are
// immutable and consumed once by the orchestrator.
type CredentialResult struct {
	Kind         ResultKind
	Registration *Registration
	Assertion    *Assertion
	Password     *Password
	FaultReason  string
}

// NewRegistrationResult wraps a registration payload.
func NewRegistrationResult(reg Registration) CredentialResult {
	return CredentialResult{Kind: KindRegistration, Registration: &reg}
}

// NewAssertionResult wraps an assertion payload.
func NewAssertionResult(assertion Assertion) CredentialResult {
	return CredentialResult{Kind: KindAssertion, Assertion: &assertion}
}

// NewPasswordResult wraps a saved-password payload.
func NewPasswordResult(username, password string) CredentialResult {
	return CredentialResult{Kind: KindPassword, Password: &Password{Username: username, Password: password}}
}

// Canceled reports a dismissed request.
func Canceled() CredentialResult {
	return CredentialResult{Kind: KindCanceled}
}

// Fault reports a platform error other than cancellation.
func Fault(reason string) CredentialResult {
	return CredentialResult{Kind: KindFault, FaultReason: reason}
}

// AssertionOptions tunes an assertion request.
type AssertionOptions struct {
	// PreferImmediateCredentials restricts the request to locally available
	// credentials: when none exist the platform cancels silently instead of
	// offering the cross-device flow.
	PreferImmediateCredentials bool
	Presentation               PresentationContext
}

// Authenticator asks the platform to create or assert a credential. Calls
// may suspend indefinitely awaiting user interaction; cancellation arrives
// as the Canceled result variant, not as an error. The error return is for
// faults in reaching the platform itself.
type Authenticator interface {
	// CreateAssertion requests a signed assertion for rpID. The platform may
	// also surface a saved password credential.
	CreateAssertion(ctx context.Context, rpID string, challenge []byte, opts AssertionOptions) (CredentialResult, error)

	// CreateAutofillAssertion is the non-modal variant surfaced alongside a
	// text-entry affordance. Platform credentials only; no password fallback.
	CreateAutofillAssertion(ctx context.Context, rpID string, challenge []byte) (CredentialResult, error)

	// CreateRegistration requests creation of a new credential bound to the
	// server-assigned user id.
	CreateRegistration(ctx context.Context, rpID string, challenge []byte, displayName string, userID []byte) (CredentialResult, error)
}
