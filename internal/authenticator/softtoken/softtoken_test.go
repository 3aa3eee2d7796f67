package softtoken

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/louisbranch/frbpasskey/internal/authenticator"
)

const rpID = "frbpasskey.ymedia.in"

func register(t *testing.T, token *Token, challenge []byte) *authenticator.Registration {
	t.Helper()
	result, err := token.CreateRegistration(context.Background(), rpID, challenge, "alice", []byte("u1"))
	if err != nil {
		t.Fatalf("create registration: %v", err)
	}
	if result.Kind != authenticator.KindRegistration {
		t.Fatalf("kind = %v, want registration", result.Kind)
	}
	return result.Registration
}

func TestCreateRegistrationPayloads(t *testing.T) {
	token := New("https://frbpasskey.ymedia.in")
	challenge := []byte("registration-challenge")
	reg := register(t, token, challenge)

	var clientData struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Origin    string `json:"origin"`
	}
	if err := json.Unmarshal(reg.ClientDataJSON, &clientData); err != nil {
		t.Fatalf("decode client data: %v", err)
	}
	if clientData.Type != "webauthn.create" {
		t.Fatalf("type = %q, want webauthn.create", clientData.Type)
	}
	if clientData.Challenge != base64.RawURLEncoding.EncodeToString(challenge) {
		t.Fatalf("challenge = %q", clientData.Challenge)
	}
	if clientData.Origin != "https://frbpasskey.ymedia.in" {
		t.Fatalf("origin = %q", clientData.Origin)
	}

	var attObj struct {
		AuthData []byte         `cbor:"authData"`
		Fmt      string         `cbor:"fmt"`
		AttStmt  map[string]any `cbor:"attStmt"`
	}
	if err := cbor.Unmarshal(reg.AttestationObject, &attObj); err != nil {
		t.Fatalf("decode attestation object: %v", err)
	}
	if attObj.Fmt != "none" {
		t.Fatalf("fmt = %q, want none", attObj.Fmt)
	}
	if len(attObj.AttStmt) != 0 {
		t.Fatalf("attStmt = %v, want empty", attObj.AttStmt)
	}

	rpIDHash := sha256.Sum256([]byte(rpID))
	if len(attObj.AuthData) < 37 {
		t.Fatalf("auth data too short: %d bytes", len(attObj.AuthData))
	}
	if string(attObj.AuthData[:32]) != string(rpIDHash[:]) {
		t.Fatal("auth data rpIdHash mismatch")
	}
	flags := attObj.AuthData[32]
	if flags&0x40 == 0 {
		t.Fatal("expected attested credential flag set")
	}
}

func TestAssertionSignatureVerifies(t *testing.T) {
	token := New("https://frbpasskey.ymedia.in")
	register(t, token, []byte("registration-challenge"))

	challenge := []byte("assertion-challenge")
	result, err := token.CreateAssertion(context.Background(), rpID, challenge, authenticator.AssertionOptions{})
	if err != nil {
		t.Fatalf("create assertion: %v", err)
	}
	if result.Kind != authenticator.KindAssertion {
		t.Fatalf("kind = %v, want assertion", result.Kind)
	}
	assertion := result.Assertion
	if string(assertion.UserHandle) != "u1" {
		t.Fatalf("user handle = %q, want u1", assertion.UserHandle)
	}

	pub, ok := token.PublicKey(rpID)
	if !ok {
		t.Fatal("expected stored public key")
	}
	clientDataHash := sha256.Sum256(assertion.ClientDataJSON)
	signed := append(append([]byte(nil), assertion.AuthenticatorData...), clientDataHash[:]...)
	digest := sha256.Sum256(signed)
	if !ecdsa.VerifyASN1(pub, digest[:], assertion.Signature) {
		t.Fatal("assertion signature does not verify")
	}
}

func TestAssertionCounterIncrements(t *testing.T) {
	token := New("https://frbpasskey.ymedia.in")
	register(t, token, []byte("c"))

	counters := make([]uint32, 0, 2)
	for i := 0; i < 2; i++ {
		result, err := token.CreateAssertion(context.Background(), rpID, []byte("c"), authenticator.AssertionOptions{})
		if err != nil {
			t.Fatalf("create assertion: %v", err)
		}
		counters = append(counters, binary.BigEndian.Uint32(result.Assertion.AuthenticatorData[33:37]))
	}
	if counters[0] != 1 || counters[1] != 2 {
		t.Fatalf("counters = %v, want [1 2]", counters)
	}
}

func TestAssertionWithoutCredentialCancels(t *testing.T) {
	token := New("https://frbpasskey.ymedia.in")
	result, err := token.CreateAssertion(context.Background(), rpID, []byte("c"), authenticator.AssertionOptions{})
	if err != nil {
		t.Fatalf("create assertion: %v", err)
	}
	if result.Kind != authenticator.KindCanceled {
		t.Fatalf("kind = %v, want canceled", result.Kind)
	}
}

func TestCanceledContext(t *testing.T) {
	token := New("https://frbpasskey.ymedia.in")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := token.CreateRegistration(ctx, rpID, []byte("c"), "alice", []byte("u1"))
	if err != nil {
		t.Fatalf("create registration: %v", err)
	}
	if result.Kind != authenticator.KindCanceled {
		t.Fatalf("kind = %v, want canceled", result.Kind)
	}
}
