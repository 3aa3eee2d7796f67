package wire

import (
	"github.com/go-webauthn/webauthn/protocol"
)

// Challenge is the relying-party challenge issued per ceremony attempt. The
// challenge value is unpadded base64url and must be used at most once; the
// server tracks consumption.
type Challenge struct {
	User      *ChallengeUser `json:"user,omitempty"`
	Challenge string         `json:"challenge"`
}

// ChallengeUser carries the server-assigned account identifier returned with
// signup challenges.
type ChallengeUser struct {
	ID string `json:"id"`
}

// SignupChallengeParams is the request body for a signup challenge. CSRF is
// a freshly generated anti-forgery token, new on every call.
type SignupChallengeParams struct {
	CSRF     string `json:"_csrf"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// CredentialResponse is the authenticator response embedded in a submission.
// Binary fields travel as unpadded base64url. UserHandle is the asymmetry in
// the protocol: it is the raw bytes reinterpreted as a UTF-8 string, not
// base64.
type CredentialResponse struct {
	ClientDataJSON    protocol.URLEncodedBase64 `json:"clientDataJSON"`
	AttestationObject protocol.URLEncodedBase64 `json:"attestationObject,omitempty"`
	AuthenticatorData protocol.URLEncodedBase64 `json:"authenticatorData,omitempty"`
	UserHandle        string                    `json:"userHandle,omitempty"`
	Signature         protocol.URLEncodedBase64 `json:"signature,omitempty"`
	Transports        []string                  `json:"transports,omitempty"`
}

// SignUpSubmission is the wire body submitted to finish a registration
// ceremony. Only clientDataJSON and attestationObject are populated.
type SignUpSubmission struct {
	Response CredentialResponse `json:"response"`
}

// SignInSubmission is the wire body submitted to finish an assertion
// ceremony. The attestationObject is absent; assertion fields are populated.
type SignInSubmission struct {
	ID                      string             `json:"id"`
	AuthenticatorAttachment string             `json:"authenticatorAttachment,omitempty"`
	Response                CredentialResponse `json:"response"`
}

// NewRegistrationResponse builds the response body for a finished
// registration. Transports is fixed to "internal": the credential is bound to
// the platform authenticator.
func NewRegistrationResponse(clientDataJSON, attestationObject []byte) CredentialResponse {
	return CredentialResponse{
		ClientDataJSON:    clientDataJSON,
		AttestationObject: attestationObject,
		Transports:        []string{"internal"},
	}
}

// NewAssertionResponse builds the response body for a finished assertion.
func NewAssertionResponse(clientDataJSON, authenticatorData, signature, userHandle []byte) CredentialResponse {
	return CredentialResponse{
		ClientDataJSON:    clientDataJSON,
		AuthenticatorData: authenticatorData,
		Signature:         signature,
		UserHandle:        string(userHandle),
	}
}

// LoginResult is the success body of a registration or assertion submission.
type LoginResult struct {
	OK       bool   `json:"ok"`
	Location string `json:"location"`
}

// LogoutResult is the success body of a logout call. The wire field is named
// "ok"; the client exposes it as Status.
type LogoutResult struct {
	Status bool `json:"ok"`
}

// ServerError is the error body returned by any endpoint on a non-200
// status.
type ServerError struct {
	Error string `json:"error,omitempty"`
}
