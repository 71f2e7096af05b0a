package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"house-alert-api/models"
)

type Transaction struct {
	tx *sql.Tx
}

func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback is a no-op after a successful Commit.
func (t *Transaction) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// RecordPayment reports false when the merchant trade number is already stored.
func (t *Transaction) RecordPayment(ctx context.Context, p models.Payment) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT IGNORE INTO payments (merchant_trade_no, trade_no, account_id, tier, amount, paid_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.MerchantTradeNo, p.TradeNo, p.AccountID, string(p.Tier), p.Amount, p.PaidAt.UTC())
	if err != nil {
		log.Printf("Error saving payment %s: %v", p.MerchantTradeNo, err)
		return false, fmt.Errorf("failed to save payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *Transaction) SetSubscription(ctx context.Context, accountID string, plan models.Plan) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE accounts SET subscription_tier = ?, max_regions = ?, daily_notify_limit = ?
		WHERE id = ?
	`, string(plan.ID), plan.MaxRegions, plan.DailyNotifyLimit, accountID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return expectOneRow(result)
}
