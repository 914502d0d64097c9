package web3mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web3mail/internal/marketplace"
	"web3mail/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func poolOrder(workerpool string, price uint64) marketplace.PublishedWorkerpoolOrder {
	return marketplace.PublishedWorkerpoolOrder{
		Order: marketplace.WorkerpoolOrder{Workerpool: workerpool, WorkerpoolPrice: price, Volume: 1},
	}
}

func firstPick(int) int { return 0 }

func TestCheckUserVoucher(t *testing.T) {
	valid := &marketplace.Voucher{Balance: 10, ExpirationTimestamp: testNow.Add(time.Hour)}
	require.NoError(t, checkUserVoucherAt(valid, testNow))

	tests := []struct {
		name    string
		voucher *marketplace.Voucher
		want    string
	}{
		{"missing", nil, "not associated with any voucher"},
		{"expired", &marketplace.Voucher{Balance: 10, ExpirationTimestamp: testNow.Add(-time.Second)}, "expired"},
		{"empty", &marketplace.Voucher{Balance: 0, ExpirationTimestamp: testNow.Add(time.Hour)}, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkUserVoucherAt(tt.voucher, testNow)
			appErr := requireAppError(t, err, types.ErrCodeWorkflowVoucher)
			assert.Contains(t, appErr.Message, tt.want)
		})
	}
}

func TestFilterWorkerpoolOrders_WithoutVoucher(t *testing.T) {
	got, err := filterWorkerpoolOrders(nil, 100, false, nil, testNow, firstPick)
	require.NoError(t, err)
	assert.Nil(t, got)

	orders := []marketplace.PublishedWorkerpoolOrder{
		poolOrder(testWorkerpool, 50),
		poolOrder(otherPool, 5),
		poolOrder(testWhitelist, 10),
	}

	got, err = filterWorkerpoolOrders(orders, 1, false, nil, testNow, firstPick)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = filterWorkerpoolOrders(orders, 10, false, nil, testNow, firstPick)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, otherPool, got.Order.Workerpool)

	var offered int
	_, err = filterWorkerpoolOrders(orders, 10, false, nil, testNow, func(n int) int {
		offered = n
		return n - 1
	})
	require.NoError(t, err)
	assert.Equal(t, 2, offered)
}

func TestFilterWorkerpoolOrders_WithVoucher(t *testing.T) {
	voucher := func(balance uint64, sponsored ...string) *marketplace.Voucher {
		return &marketplace.Voucher{
			Balance:              balance,
			ExpirationTimestamp:  testNow.Add(time.Hour),
			SponsoredWorkerpools: sponsored,
		}
	}
	orders := []marketplace.PublishedWorkerpoolOrder{
		poolOrder(testWorkerpool, 30),
		poolOrder(otherPool, 5),
		poolOrder(testWhitelist, 20),
	}

	t.Run("invalid voucher", func(t *testing.T) {
		_, err := filterWorkerpoolOrders(orders, 0, true, nil, testNow, firstPick)
		requireAppError(t, err, types.ErrCodeWorkflowVoucher)
	})

	t.Run("none sponsored", func(t *testing.T) {
		_, err := filterWorkerpoolOrders(orders, 0, true, voucher(100, "0xcccccccccccccccccccccccccccccccccccccccc"), testNow, firstPick)
		appErr := requireAppError(t, err, types.ErrCodeWorkflowVoucher)
		assert.Equal(t, "Found some workerpool orders but none can be sponsored by your voucher.", appErr.Message)
	})

	t.Run("cheapest sponsored covered by balance", func(t *testing.T) {
		got, err := filterWorkerpoolOrders(orders, 0, true, voucher(25, testWorkerpool, testWhitelist), testNow, firstPick)
		require.NoError(t, err)
		assert.Equal(t, testWhitelist, got.Order.Workerpool)
	})

	t.Run("sponsorship is case insensitive", func(t *testing.T) {
		mixed := []marketplace.PublishedWorkerpoolOrder{poolOrder("0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD", 5)}
		got, err := filterWorkerpoolOrders(mixed, 0, true, voucher(25, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"), testNow, firstPick)
		require.NoError(t, err)
		require.NotNil(t, got)
	})

	t.Run("balance topped up by max price", func(t *testing.T) {
		got, err := filterWorkerpoolOrders(orders, 10, true, voucher(10, testWhitelist), testNow, firstPick)
		require.NoError(t, err)
		assert.Equal(t, testWhitelist, got.Order.Workerpool)
	})

	t.Run("not enough", func(t *testing.T) {
		_, err := filterWorkerpoolOrders(orders, 5, true, voucher(10, testWhitelist), testNow, firstPick)
		appErr := requireAppError(t, err, types.ErrCodeWorkflowVoucher)
		assert.Contains(t, appErr.Message, "(20 nRLC)")
		assert.Contains(t, appErr.Message, "additional 10 nRLC")
	})
}
