package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentLedger_Seen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewPaymentLedger(db, time.Hour)
	ctx := context.Background()

	mock.ExpectExists("storefront:payment:pi_1").SetVal(1)
	mock.ExpectExists("storefront:payment:pi_2").SetVal(0)
	mock.ExpectExists("storefront:payment:pi_3").SetErr(errors.New("connection refused"))

	seen, err := ledger.Seen(ctx, "pi_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = ledger.Seen(ctx, "pi_2")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = ledger.Seen(ctx, "pi_3")
	assert.ErrorContains(t, err, "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentLedger_Mark(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewPaymentLedger(db, 24*time.Hour)

	mock.ExpectSetNX("storefront:payment:pi_1", 1, 24*time.Hour).SetVal(true)

	require.NoError(t, ledger.Mark(context.Background(), "pi_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
