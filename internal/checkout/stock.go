package checkout

import (
	"context"
	"fmt"
	"sort"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/apperr"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
)

// line is one product and quantity to take from stock.
type line struct {
	productID int64
	quantity  int
}

// lockProducts locks every product the lines touch, in ascending id order so
// that concurrent checkouts over overlapping products cannot deadlock.
func lockProducts(ctx context.Context, st Store, lines []line) (map[int64]catalog.Product, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.productID] {
			seen[l.productID] = true
			ids = append(ids, l.productID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		p, err := st.ProductForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		products[id] = *p
	}
	return products, nil
}

// demand sums the requested quantity per product.
func demand(lines []line) map[int64]int {
	want := make(map[int64]int, len(lines))
	for _, l := range lines {
		want[l.productID] += l.quantity
	}
	return want
}

// validateStock checks every line against the locked products without
// changing anything. The first product that is inactive or short fails the
// whole set.
func validateStock(lines []line, products map[int64]catalog.Product) error {
	want := demand(lines)
	for _, l := range lines {
		p := products[l.productID]
		if !p.Active {
			return fmt.Errorf("%w: %s is no longer available", apperr.ErrInsufficientStock, p.Name)
		}
		if p.Stock < want[l.productID] {
			return fmt.Errorf("%w: %s has %d available, %d requested", apperr.ErrInsufficientStock, p.Name, p.Stock, want[l.productID])
		}
	}
	return nil
}

// deductStock takes the lines out of stock through catalog.ApplyStockDelta.
// Callers validate first, so a failure here means the store changed under a
// held lock and the transaction must roll back.
func deductStock(ctx context.Context, st Store, lines []line, products map[int64]catalog.Product) error {
	want := demand(lines)

	ids := make([]int64, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		next, err := catalog.ApplyStockDelta(products[id], -want[id])
		if err != nil {
			return err
		}
		if err := st.SaveStock(ctx, next); err != nil {
			return err
		}
		products[id] = next
	}
	return nil
}
