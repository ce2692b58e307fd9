package core

import (
	"context"
	"fmt"
)

// guardPurchaseReleaseTx is the reversal guard. Before a completed purchase
// may leave that state, or shrink its line quantities, every product its lots
// touch is replayed: all completed-purchase lots for the product in FIFO
// order against the summed demand of all active sale lines. If any demanded
// unit lands on a lot of this purchase, the change is rejected with
// PurchaseLockedError — those units have already been spent by cost
// accounting and un-completing the purchase would rewrite history.
//
// Runs inside the mutating transaction so the decision and the change it
// gates see the same snapshot.
func guardPurchaseReleaseTx(ctx context.Context, tx pgxRowQuerier, purchaseID int) error {
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT pl.product_id
		FROM purchase_lots pl
		JOIN purchase_lot_groups g ON g.id = pl.lot_group_id
		WHERE g.purchase_id = $1
	`, purchaseID)
	if err != nil {
		return fmt.Errorf("failed to query products of purchase %d: %w", purchaseID, err)
	}
	var productIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan product id: %w", err)
		}
		productIDs = append(productIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating purchase products: %w", err)
	}

	for _, productID := range productIDs {
		lots, err := loadCompletedLotsTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		demand, err := activeSaleDemandTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		if units := AttributedUnits(purchaseID, demand, lots); units > 0 {
			return &PurchaseLockedError{PurchaseID: purchaseID, ProductID: productID, Units: units}
		}
	}
	return nil
}
