package marketplace

import "context"

// AutoPaginate follows More until it is nil and returns a single page holding
// every order. Count is the count reported by the last page.
func AutoPaginate[T any](ctx context.Context, first Page[T]) (Page[T], error) {
	orders := append([]T(nil), first.Orders...)
	count := first.Count

	next := first.More
	for next != nil {
		page, err := next(ctx)
		if err != nil {
			return Page[T]{}, err
		}
		orders = append(orders, page.Orders...)
		count = page.Count
		next = page.More
	}

	return Page[T]{Orders: orders, Count: count}, nil
}
