package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Lot is the allocator's view of one purchase line: where it came from, its
// position in FIFO order, and how much of it is still unallocated.
type Lot struct {
	LotID      int
	PurchaseID int
	LotGroupID int
	LineNumber int
	IngestedAt time.Time
	ProductID  int
	Quantity   int64
	Consumed   int64
	UnitCost   decimal.Decimal
}

// Available returns the unallocated units of the lot.
func (l Lot) Available() int64 { return l.Quantity - l.Consumed }

// Allocation records units taken from one lot during an allocation walk.
type Allocation struct {
	Lot      Lot
	Quantity int64
}

// CostBasis returns the total cost of all allocated units,
// Σ(quantity × unit cost). Never shown to the end customer; used for profit.
func CostBasis(allocs []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Lot.UnitCost.Mul(decimal.NewFromInt(a.Quantity)))
	}
	return total
}

// SortLotsFIFO orders lots oldest purchase first. Ties on the ingestion
// timestamp are broken by lot group id, then line number, so the walk is
// deterministic for lots recorded in the same instant.
func SortLotsFIFO(lots []Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.IngestedAt.Equal(b.IngestedAt) {
			return a.IngestedAt.Before(b.IngestedAt)
		}
		if a.LotGroupID != b.LotGroupID {
			return a.LotGroupID < b.LotGroupID
		}
		return a.LineNumber < b.LineNumber
	})
}

// AllocateFIFO walks lots in FIFO order, consuming min(remaining, available)
// from each until quantity is satisfied. All-or-nothing: if the lots cannot
// cover the full quantity it returns InsufficientStockError and no
// allocations. The input slice is re-sorted in place; consumed counters on
// the lots themselves are not touched — applying the returned allocations is
// the caller's job, inside its transaction.
func AllocateFIFO(productID int, quantity int64, lots []Lot) ([]Allocation, error) {
	if quantity <= 0 {
		return nil, ValidationErrorf("allocation quantity must be positive, got %d", quantity)
	}
	SortLotsFIFO(lots)

	remaining := quantity
	var allocs []Allocation
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		available := lot.Available()
		if available <= 0 {
			continue
		}
		take := remaining
		if available < take {
			take = available
		}
		allocs = append(allocs, Allocation{Lot: lot, Quantity: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: quantity - remaining,
		}
	}
	return allocs, nil
}

// AttributedUnits replays the full FIFO history for one product and returns
// how many of the demanded units land on lots of the given purchase. Lots
// must be every completed-purchase lot for the product (raw quantities,
// consumed counters ignored); demand is the summed quantity across all
// active sale lines for the product. Total historical demand is
// order-independent once the oldest-first rule is fixed, so a single summed
// walk is equivalent to replaying sale by sale.
func AttributedUnits(purchaseID int, demand int64, lots []Lot) int64 {
	SortLotsFIFO(lots)

	var attributed int64
	remaining := demand
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		used := remaining
		if lot.Quantity < used {
			used = lot.Quantity
		}
		remaining -= used
		if lot.PurchaseID == purchaseID {
			attributed += used
		}
	}
	return attributed
}
