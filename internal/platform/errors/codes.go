// Package errors provides structured error handling for passkey ceremonies.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Transport and server errors
	CodeTransportFailure Code = "TRANSPORT_FAILURE"
	CodeServerRejected   Code = "SERVER_REJECTED"
	CodeDecodeFailure    Code = "DECODE_FAILURE"

	// Challenge errors
	CodeChallengeMissingUser Code = "CHALLENGE_MISSING_USER"

	// Authenticator errors
	CodeAuthenticatorCanceled Code = "AUTHENTICATOR_CANCELED"
	CodeAuthenticatorFault    Code = "AUTHENTICATOR_FAULT"
	CodeCredentialUnsupported Code = "CREDENTIAL_UNSUPPORTED"

	// Ceremony errors
	CodeCeremonyInFlight Code = "CEREMONY_IN_FLIGHT"
	CodeUsernameEmpty    Code = "USERNAME_EMPTY"
)
