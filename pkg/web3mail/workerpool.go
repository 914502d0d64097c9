package web3mail

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"web3mail/internal/marketplace"
	"web3mail/internal/types"
)

// CheckUserVoucher returns an error unless voucher exists, has not expired and
// has a positive balance.
func CheckUserVoucher(voucher *marketplace.Voucher) error {
	return checkUserVoucherAt(voucher, time.Now())
}

func checkUserVoucherAt(voucher *marketplace.Voucher, now time.Time) error {
	switch {
	case voucher == nil:
		return types.NewWorkflowError(types.ErrCodeWorkflowVoucher,
			"Oops, it seems your wallet is not associated with any voucher. Check on https://builder.iex.ec/ to get one or top up your account.", nil)
	case voucher.ExpirationTimestamp.Before(now):
		return types.NewWorkflowError(types.ErrCodeWorkflowVoucher,
			"Oops, it seems your voucher has expired. You might want to ask for a top up. Check on https://builder.iex.ec/", nil)
	case voucher.Balance == 0:
		return types.NewWorkflowError(types.ErrCodeWorkflowVoucher,
			"Oops, it seems your voucher is empty. You might want to ask for a top up. Check on https://builder.iex.ec/", nil)
	}
	return nil
}

// FilterWorkerpoolOrders picks the workerpool order to match. It returns
// (nil, nil) when orders is empty or, without a voucher, when no order is
// priced within workerpoolMaxPrice.
//
// Without a voucher the choice among affordable orders is uniformly random.
// With a voucher, the cheapest sponsored order is taken if the voucher
// balance, alone or topped up by workerpoolMaxPrice, covers its price.
func FilterWorkerpoolOrders(
	orders []marketplace.PublishedWorkerpoolOrder,
	workerpoolMaxPrice uint64,
	useVoucher bool,
	voucher *marketplace.Voucher,
) (*marketplace.PublishedWorkerpoolOrder, error) {
	return filterWorkerpoolOrders(orders, workerpoolMaxPrice, useVoucher, voucher, time.Now(), rand.IntN)
}

func filterWorkerpoolOrders(
	orders []marketplace.PublishedWorkerpoolOrder,
	workerpoolMaxPrice uint64,
	useVoucher bool,
	voucher *marketplace.Voucher,
	now time.Time,
	pick func(n int) int,
) (*marketplace.PublishedWorkerpoolOrder, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	if !useVoucher {
		var affordable []marketplace.PublishedWorkerpoolOrder
		for _, o := range orders {
			if o.Order.WorkerpoolPrice <= workerpoolMaxPrice {
				affordable = append(affordable, o)
			}
		}
		if len(affordable) == 0 {
			return nil, nil
		}
		chosen := affordable[pick(len(affordable))]
		return &chosen, nil
	}

	if err := checkUserVoucherAt(voucher, now); err != nil {
		return nil, err
	}

	sponsored := make(map[string]bool, len(voucher.SponsoredWorkerpools))
	for _, wp := range voucher.SponsoredWorkerpools {
		sponsored[strings.ToLower(wp)] = true
	}
	var eligible []marketplace.PublishedWorkerpoolOrder
	for _, o := range orders {
		if sponsored[strings.ToLower(o.Order.Workerpool)] {
			eligible = append(eligible, o)
		}
	}
	if len(eligible) == 0 {
		return nil, types.NewWorkflowError(types.ErrCodeWorkflowVoucher,
			"Found some workerpool orders but none can be sponsored by your voucher.", nil)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Order.WorkerpoolPrice < eligible[j].Order.WorkerpoolPrice
	})
	cheapest := eligible[0]
	price := cheapest.Order.WorkerpoolPrice

	if voucher.Balance >= price || price-voucher.Balance <= workerpoolMaxPrice {
		return &cheapest, nil
	}

	return nil, types.NewWorkflowError(types.ErrCodeWorkflowVoucher,
		fmt.Sprintf(
			"Oops, it seems your voucher is not enough to cover the cost of the workerpool order (%d nRLC). "+
				"Top up your voucher or approve an additional %d nRLC as workerpoolMaxPrice.",
			price, price-voucher.Balance,
		), nil)
}
