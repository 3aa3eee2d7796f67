// Package softtoken is a software authenticator used by the diagnostic CLI
// and integration tests. It creates ES256 credentials in process memory and
// produces wire-correct registration and assertion payloads with a
// "none"-format attestation. It makes no secure-enclave claims.
package softtoken

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"

	"github.com/louisbranch/frbpasskey/internal/authenticator"
)

const (
	flagUserPresent        = 0x01
	flagUserVerified       = 0x04
	flagAttestedCredential = 0x40
)

var aaguid = [16]byte{0x66, 0x72, 0x62, 0x70, 0x61, 0x73, 0x73, 0x6b, 0x65, 0x79, 0x73, 0x6f, 0x66, 0x74, 0x30, 0x31}

type credential struct {
	id         []byte
	key        *ecdsa.PrivateKey
	userHandle []byte
	counter    uint32
}

// Token is an in-memory software authenticator holding one credential per
// relying party.
type Token struct {
	origin string

	mu          sync.Mutex
	credentials map[string]*credential
}

// New creates an empty token. Origin is embedded in fabricated
// clientDataJSON and should match the relying party's expected origin.
func New(origin string) *Token {
	return &Token{
		origin:      origin,
		credentials: make(map[string]*credential),
	}
}

// CreateRegistration creates a fresh ES256 credential for rpID and returns
// its attestation. An existing credential for the relying party is replaced.
func (t *Token) CreateRegistration(ctx context.Context, rpID string, challenge []byte, displayName string, userID []byte) (authenticator.CredentialResult, error) {
	if err := ctx.Err(); err != nil {
		return authenticator.Canceled(), nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return authenticator.CredentialResult{}, fmt.Errorf("generate key: %w", err)
	}
	credID := make([]byte, 16)
	if _, err := rand.Read(credID); err != nil {
		return authenticator.CredentialResult{}, fmt.Errorf("generate credential id: %w", err)
	}

	clientDataJSON, err := t.clientData(protocol.CreateCeremony, challenge)
	if err != nil {
		return authenticator.CredentialResult{}, err
	}

	authData, err := registrationAuthData(rpID, credID, key)
	if err != nil {
		return authenticator.CredentialResult{}, err
	}

	attObj, err := cbor.Marshal(attestationObject{
		AuthData: authData,
		Fmt:      "none",
		AttStmt:  map[string]any{},
	})
	if err != nil {
		return authenticator.CredentialResult{}, fmt.Errorf("encode attestation object: %w", err)
	}

	t.mu.Lock()
	t.credentials[rpID] = &credential{
		id:         credID,
		key:        key,
		userHandle: append([]byte(nil), userID...),
	}
	t.mu.Unlock()

	return authenticator.NewRegistrationResult(authenticator.Registration{
		ClientDataJSON:    clientDataJSON,
		AttestationObject: attObj,
	}), nil
}

// CreateAssertion signs the challenge with the credential stored for rpID.
// Without a stored credential the request cancels, mirroring the platform
// behavior when no local credential exists.
func (t *Token) CreateAssertion(ctx context.Context, rpID string, challenge []byte, opts authenticator.AssertionOptions) (authenticator.CredentialResult, error) {
	return t.assert(ctx, rpID, challenge)
}

// CreateAutofillAssertion behaves like CreateAssertion; the softtoken has no
// password credentials, so the modal and autofill paths coincide.
func (t *Token) CreateAutofillAssertion(ctx context.Context, rpID string, challenge []byte) (authenticator.CredentialResult, error) {
	return t.assert(ctx, rpID, challenge)
}

func (t *Token) assert(ctx context.Context, rpID string, challenge []byte) (authenticator.CredentialResult, error) {
	if err := ctx.Err(); err != nil {
		return authenticator.Canceled(), nil
	}

	t.mu.Lock()
	cred, ok := t.credentials[rpID]
	if ok {
		cred.counter++
	}
	t.mu.Unlock()
	if !ok {
		return authenticator.Canceled(), nil
	}

	clientDataJSON, err := t.clientData(protocol.AssertCeremony, challenge)
	if err != nil {
		return authenticator.CredentialResult{}, err
	}

	rpIDHash := sha256.Sum256([]byte(rpID))
	authData := make([]byte, 0, len(rpIDHash)+5)
	authData = append(authData, rpIDHash[:]...)
	authData = append(authData, flagUserPresent|flagUserVerified)
	authData = binary.BigEndian.AppendUint32(authData, cred.counter)

	clientDataHash := sha256.Sum256(clientDataJSON)
	signed := append(append([]byte(nil), authData...), clientDataHash[:]...)
	digest := sha256.Sum256(signed)
	signature, err := ecdsa.SignASN1(rand.Reader, cred.key, digest[:])
	if err != nil {
		return authenticator.CredentialResult{}, fmt.Errorf("sign assertion: %w", err)
	}

	return authenticator.NewAssertionResult(authenticator.Assertion{
		CredentialID:      append([]byte(nil), cred.id...),
		ClientDataJSON:    clientDataJSON,
		AuthenticatorData: authData,
		Signature:         signature,
		UserHandle:        append([]byte(nil), cred.userHandle...),
	}), nil
}

// PublicKey returns the public key of the credential stored for rpID, for
// test-side signature verification.
func (t *Token) PublicKey(rpID string) (*ecdsa.PublicKey, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cred, ok := t.credentials[rpID]
	if !ok {
		return nil, false
	}
	return &cred.key.PublicKey, true
}

func (t *Token) clientData(ceremony protocol.CeremonyType, challenge []byte) ([]byte, error) {
	data := protocol.CollectedClientData{
		Type:      ceremony,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    t.origin,
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode client data: %w", err)
	}
	return raw, nil
}

type attestationObject struct {
	AuthData []byte         `cbor:"authData"`
	Fmt      string         `cbor:"fmt"`
	AttStmt  map[string]any `cbor:"attStmt"`
}

func registrationAuthData(rpID string, credID []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	// COSE EC2 key: kty 2 (EC2), alg -7 (ES256), crv 1 (P-256).
	coseKey, err := cbor.Marshal(webauthncose.EC2PublicKeyData{
		PublicKeyData: webauthncose.PublicKeyData{
			KeyType:   2,
			Algorithm: -7,
		},
		Curve:  1,
		XCoord: key.PublicKey.X.Bytes(),
		YCoord: key.PublicKey.Y.Bytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode cose key: %w", err)
	}

	rpIDHash := sha256.Sum256([]byte(rpID))
	authData := make([]byte, 0, len(rpIDHash)+5+len(aaguid)+2+len(credID)+len(coseKey))
	authData = append(authData, rpIDHash[:]...)
	authData = append(authData, flagUserPresent|flagUserVerified|flagAttestedCredential)
	authData = binary.BigEndian.AppendUint32(authData, 0)
	authData = append(authData, aaguid[:]...)
	authData = binary.BigEndian.AppendUint16(authData, uint16(len(credID)))
	authData = append(authData, credID...)
	authData = append(authData, coseKey...)
	return authData, nil
}
