package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSignInSubmissionJSONShape(t *testing.T) {
	sub := SignInSubmission{
		ID:                      EncodeBase64URL([]byte{0x01, 0x02}),
		AuthenticatorAttachment: "platform",
		Response: NewAssertionResponse(
			[]byte(`{"type":"webauthn.get"}`),
			[]byte{0xaa},
			[]byte{0xbb},
			[]byte("user-1"),
		),
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "attestationObject") {
		t.Fatalf("assertion body must omit attestationObject: %s", body)
	}
	if !strings.Contains(body, `"userHandle":"user-1"`) {
		t.Fatalf("userHandle must be the raw UTF-8 string: %s", body)
	}
	if strings.Contains(body, "=") {
		t.Fatalf("binary fields must be unpadded base64url: %s", body)
	}
}

func TestSignUpSubmissionJSONShape(t *testing.T) {
	sub := SignUpSubmission{
		Response: NewRegistrationResponse(
			[]byte(`{"type":"webauthn.create"}`),
			[]byte{0xcc, 0xdd},
		),
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, absent := range []string{"authenticatorData", "signature", "userHandle"} {
		if strings.Contains(body, absent) {
			t.Fatalf("registration body must omit %s: %s", absent, body)
		}
	}
	if !strings.Contains(body, `"transports":["internal"]`) {
		t.Fatalf("registration body must fix transports to internal: %s", body)
	}
}

func TestChallengeDecoding(t *testing.T) {
	var ch Challenge
	if err := json.Unmarshal([]byte(`{"challenge":"abc-_123","user":{"id":"u1"}}`), &ch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ch.Challenge != "abc-_123" {
		t.Fatalf("Challenge = %q, want %q", ch.Challenge, "abc-_123")
	}
	if ch.User == nil || ch.User.ID != "u1" {
		t.Fatalf("User = %+v, want id u1", ch.User)
	}

	var bare Challenge
	if err := json.Unmarshal([]byte(`{"challenge":"xyz","user":null}`), &bare); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if bare.User != nil {
		t.Fatalf("User = %+v, want nil", bare.User)
	}
}

func TestLogoutResultMapsOKField(t *testing.T) {
	var res LogoutResult
	if err := json.Unmarshal([]byte(`{"ok":true}`), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !res.Status {
		t.Fatal("Status = false, want true")
	}
}
