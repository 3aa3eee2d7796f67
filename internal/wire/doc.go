// Package wire defines the JSON payloads and base64url conversions shared by
// the relying-party client and the ceremony orchestrator.
package wire
