package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PeriodSummary is one bucket of the profit summary.
type PeriodSummary struct {
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
}

// ProfitSummary buckets revenue and FIFO profit by period label.
type ProfitSummary struct {
	Granularity Granularity              `json:"granularity"`
	Reference   time.Time                `json:"reference"`
	Periods     map[string]PeriodSummary `json:"periods"`
}

// DailySummary is the FIFO profit of the current business day.
type DailySummary struct {
	Date   string          `json:"date"`
	Profit decimal.Decimal `json:"profit"`
}

// ReportingService computes profit from the lot ledger, never from stored
// running totals, so historical corrections stay consistent. It reads a
// point-in-time snapshot and tolerates slight staleness; it never mutates
// consumed counters.
type ReportingService interface {
	// Summarize replays every completed sale in sale-creation order against a
	// private copy of the lot availabilities, and buckets revenue and profit
	// for the sales falling in reference's period at the given granularity.
	Summarize(ctx context.Context, g Granularity, reference time.Time) (*ProfitSummary, error)
	// DailyProfit is Summarize for today at day granularity, reduced to a
	// single figure.
	DailyProfit(ctx context.Context) (*DailySummary, error)
}

type reportingService struct {
	pool *pgxpool.Pool
	loc  *time.Location
	now  func() time.Time
}

// NewReportingService builds a ReportingService. loc is the business-local
// timezone used for period bucketing.
func NewReportingService(pool *pgxpool.Pool, loc *time.Location) ReportingService {
	return &reportingService{pool: pool, loc: loc, now: time.Now}
}

// lotAvail is the aggregator's private, in-memory copy of a lot's remaining
// units during a replay.
type lotAvail struct {
	remaining int64
	unitCost  decimal.Decimal
}

// saleLineRow is one active line of a completed sale, in replay order.
type saleLineRow struct {
	saleID    int
	soldAt    time.Time
	saleTotal decimal.Decimal
	productID int
	quantity  int64
	unitPrice decimal.Decimal
}

func (s *reportingService) Summarize(ctx context.Context, g Granularity, reference time.Time) (*ProfitSummary, error) {
	if !ValidGranularity(g) {
		return nil, ValidationErrorf("granularity must be one of day, week, month, year; got %q", g)
	}

	lotsByProduct, err := s.loadLotLedger(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := s.loadCompletedSaleLines(ctx)
	if err != nil {
		return nil, err
	}

	summary := &ProfitSummary{
		Granularity: g,
		Reference:   reference,
		Periods:     make(map[string]PeriodSummary),
	}

	// Every completed sale consumes lots in replay order, whether or not it
	// lands in the requested period — attribution depends on the sales that
	// came before.
	lastRevenueSale := 0
	for _, ln := range lines {
		profit := consumeForProfit(lotsByProduct[ln.productID], ln.quantity, ln.unitPrice)

		if !SamePeriod(ln.soldAt, reference, g, s.loc) {
			continue
		}
		label := PeriodLabel(ln.soldAt, g, s.loc)
		bucket := summary.Periods[label]
		bucket.Profit = bucket.Profit.Add(profit)
		if ln.saleID != lastRevenueSale {
			bucket.Revenue = bucket.Revenue.Add(ln.saleTotal)
			lastRevenueSale = ln.saleID
		}
		summary.Periods[label] = bucket
	}
	return summary, nil
}

func (s *reportingService) DailyProfit(ctx context.Context) (*DailySummary, error) {
	now := s.now().In(s.loc)
	summary, err := s.Summarize(ctx, GranularityDay, now)
	if err != nil {
		return nil, err
	}

	profit := decimal.Zero
	for _, bucket := range summary.Periods {
		profit = profit.Add(bucket.Profit)
	}
	return &DailySummary{
		Date:   fmt.Sprintf("%d/%d/%d", now.Day(), int(now.Month()), now.Year()),
		Profit: profit,
	}, nil
}

// consumeForProfit walks the product's remaining lots oldest first, charging
// each consumed unit its lot cost. Units beyond all lots contribute nothing.
func consumeForProfit(lots []*lotAvail, quantity int64, unitPrice decimal.Decimal) decimal.Decimal {
	profit := decimal.Zero
	remaining := quantity
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		take := remaining
		if lot.remaining < take {
			take = lot.remaining
		}
		if take <= 0 {
			continue
		}
		perUnit := unitPrice.Sub(lot.unitCost)
		profit = profit.Add(perUnit.Mul(decimal.NewFromInt(take)))
		lot.remaining -= take
		remaining -= take
	}
	return profit
}

// loadLotLedger builds the per-product lot sequences in FIFO order, with raw
// quantities: the replay re-derives attribution from scratch.
func (s *reportingService) loadLotLedger(ctx context.Context) (map[int][]*lotAvail, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pl.product_id, pl.quantity, pl.unit_cost
		FROM purchase_lots pl
		JOIN purchase_lot_groups g ON g.id = pl.lot_group_id
		JOIN purchases p ON p.id = g.purchase_id
		WHERE p.status = 'completed' AND g.is_active = true
		ORDER BY p.ingested_at, g.id, pl.line_number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lot ledger: %w", err)
	}
	defer rows.Close()

	ledger := make(map[int][]*lotAvail)
	for rows.Next() {
		var productID int
		var quantity int64
		var unitCost decimal.Decimal
		if err := rows.Scan(&productID, &quantity, &unitCost); err != nil {
			return nil, fmt.Errorf("failed to scan ledger lot: %w", err)
		}
		ledger[productID] = append(ledger[productID], &lotAvail{remaining: quantity, unitCost: unitCost})
	}
	return ledger, rows.Err()
}

func (s *reportingService) loadCompletedSaleLines(ctx context.Context) ([]saleLineRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sa.id, sa.sold_at, sa.total, sl.product_id, sl.quantity, sl.unit_price
		FROM sales sa
		JOIN sale_line_groups g ON g.sale_id = sa.id
		JOIN sale_lines sl ON sl.line_group_id = g.id
		WHERE sa.status = 'completed' AND g.is_active = true
		ORDER BY sa.sold_at, sa.id, g.id, sl.line_number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed sale lines: %w", err)
	}
	defer rows.Close()

	var lines []saleLineRow
	for rows.Next() {
		var ln saleLineRow
		if err := rows.Scan(&ln.saleID, &ln.soldAt, &ln.saleTotal, &ln.productID, &ln.quantity, &ln.unitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}
