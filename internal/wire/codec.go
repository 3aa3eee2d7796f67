package wire

import (
	"encoding/base64"
	"strings"

	"github.com/louisbranch/frbpasskey/internal/platform/errors"
)

// Base64URLToBase64 converts a base64url string to standard base64,
// re-padding to a multiple-of-4 length. The conversion is purely textual:
// input that is not valid base64url produces output that fails to decode,
// which callers surface as a decode error.
func Base64URLToBase64(s string) string {
	b64 := strings.ReplaceAll(s, "-", "+")
	b64 = strings.ReplaceAll(b64, "_", "/")
	if rem := len(b64) % 4; rem != 0 {
		b64 += strings.Repeat("=", 4-rem)
	}
	return b64
}

// Base64ToBase64URL converts a standard base64 string to unpadded base64url.
func Base64ToBase64URL(s string) string {
	b64url := strings.ReplaceAll(s, "+", "-")
	b64url = strings.ReplaceAll(b64url, "/", "_")
	return strings.TrimRight(b64url, "=")
}

// DecodeBase64URL decodes a base64url string into raw bytes.
func DecodeBase64URL(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(Base64URLToBase64(s))
	if err != nil {
		return nil, errors.Wrap(errors.CodeDecodeFailure, "decode base64url value", err)
	}
	return raw, nil
}

// EncodeBase64URL encodes raw bytes as unpadded base64url.
func EncodeBase64URL(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
