package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"storefront/pkg/order/domain/model"
)

const SignatureHeader = "Payment-Signature"

// Verifier checks the gateway signature header
// "t=<unix seconds>,v1=<hex hmac-sha256 of "<t>.<body>">".
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify returns an error matching model.ErrInvalidSignature for every rejection.
func (v *Verifier) Verify(header string, body []byte) error {
	if header == "" {
		return errors.Wrap(model.ErrInvalidSignature, "missing signature header")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return errors.Wrap(model.ErrInvalidSignature, "malformed signature header")
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.Wrap(model.ErrInvalidSignature, "malformed timestamp")
	}
	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(unix, 0))
		if age > v.tolerance || age < -v.tolerance {
			return errors.Wrap(model.ErrInvalidSignature, "timestamp outside tolerance")
		}
	}

	expected := computeSignature(v.secret, timestamp, body)
	for _, signature := range signatures {
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return errors.Wrap(model.ErrInvalidSignature, "no matching signature")
}

// Sign builds a header value for body, as the gateway does.
func Sign(secret string, at time.Time, body []byte) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(computeSignature([]byte(secret), timestamp, body))
}

func computeSignature(secret []byte, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}
