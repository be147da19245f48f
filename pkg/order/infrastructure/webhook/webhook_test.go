package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/order/domain/model"
)

const secret = "whsec_test"

func newVerifier(now time.Time) *Verifier {
	v := NewVerifier(secret, 5*time.Minute)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifier(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"type":"payment_intent.succeeded"}`)

	tests := []struct {
		name   string
		header string
		valid  bool
	}{
		{"Valid", Sign(secret, now, body), true},
		{"Valid among rotated secrets", Sign("old", now, body) + ",v1=" + Sign(secret, now, body)[len("t=1700000000,v1="):], true},
		{"Missing", "", false},
		{"Malformed", "garbage", false},
		{"Wrong secret", Sign("other", now, body), false},
		{"Too old", Sign(secret, now.Add(-10*time.Minute), body), false},
		{"From the future", Sign(secret, now.Add(10*time.Minute), body), false},
		{"Not hex", "t=1700000000,v1=zz", false},
	}
	verifier := newVerifier(now)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.Verify(tt.header, body)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, model.ErrInvalidSignature)
			}
		})
	}
}

func TestVerifier_TamperedBody(t *testing.T) {
	now := time.Unix(1700000000, 0)
	header := Sign(secret, now, []byte(`{"amount":100}`))

	err := newVerifier(now).Verify(header, []byte(`{"amount":1}`))

	assert.ErrorIs(t, err, model.ErrInvalidSignature)
}

func TestEventConfirmation(t *testing.T) {
	event, err := ParseEvent([]byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount":2500}}}`))
	require.NoError(t, err)

	confirmation, ok := event.Confirmation()
	require.True(t, ok)
	assert.Equal(t, "pi_1", confirmation.PaymentID)
	assert.Equal(t, int64(2500), confirmation.AmountCents)

	event, err = ParseEvent([]byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`))
	require.NoError(t, err)
	_, ok = event.Confirmation()
	assert.False(t, ok)

	_, err = ParseEvent([]byte(`{`))
	assert.Error(t, err)
}
