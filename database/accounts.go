package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"house-alert-api/models"
)

const accountColumns = `id, email, display_name, subscription_tier, max_regions,
	daily_notify_limit, line_user_id, line_linked_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var tier string
	var lineUserID sql.NullString
	var lineLinkedAt sql.NullTime

	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &tier, &a.MaxRegions,
		&a.DailyNotifyLimit, &lineUserID, &lineLinkedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Tier = models.SubscriptionTier(tier)
	if lineUserID.Valid {
		a.LineUserID = &lineUserID.String
	}
	if lineLinkedAt.Valid {
		t := lineLinkedAt.Time
		a.LineLinkedAt = &t
	}
	return &a, nil
}

func (c *Connection) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting account: %w", err)
	}
	return a, nil
}

// EnsureAccount inserts the account if its id is new and returns the stored row.
func (c *Connection) EnsureAccount(ctx context.Context, account models.Account) (*models.Account, bool, error) {
	result, err := c.db.ExecContext(ctx, `
		INSERT IGNORE INTO accounts (id, email, display_name, subscription_tier, max_regions, daily_notify_limit)
		VALUES (?, ?, ?, ?, ?, ?)
	`, account.ID, account.Email, account.DisplayName, string(account.Tier), account.MaxRegions, account.DailyNotifyLimit)
	if err != nil {
		return nil, false, fmt.Errorf("error creating account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("error getting rows affected: %w", err)
	}

	stored, err := c.GetAccount(ctx, account.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, rows == 1, nil
}

func (c *Connection) queryAccounts(ctx context.Context, query string, args ...interface{}) ([]models.Account, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// FindAccountsByEmail returns every account registered with the address.
// The email must already be lower-cased.
func (c *Connection) FindAccountsByEmail(ctx context.Context, email string) ([]models.Account, error) {
	accounts, err := c.queryAccounts(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = ? ORDER BY created_at ASC", email)
	if err != nil {
		return nil, fmt.Errorf("error finding accounts by email: %w", err)
	}
	return accounts, nil
}

func (c *Connection) FindAccountsByIDPrefix(ctx context.Context, prefix string) ([]models.Account, error) {
	escaped := escapeLike(prefix)
	accounts, err := c.queryAccounts(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id LIKE ? LIMIT 2", escaped+"%")
	if err != nil {
		return nil, fmt.Errorf("error finding accounts by id prefix: %w", err)
	}
	return accounts, nil
}

// UpdateAccountBinding sets the LINE identity and bind time in one statement.
func (c *Connection) UpdateAccountBinding(ctx context.Context, accountID, lineUserID string, linkedAt time.Time) error {
	result, err := c.db.ExecContext(ctx,
		"UPDATE accounts SET line_user_id = ?, line_linked_at = ? WHERE id = ?",
		lineUserID, linkedAt.UTC(), accountID)
	if err != nil {
		return fmt.Errorf("error updating account binding: %w", err)
	}
	return expectOneRow(result)
}

func (c *Connection) ApplySubscription(ctx context.Context, accountID string, plan models.Plan) error {
	result, err := c.db.ExecContext(ctx, `
		UPDATE accounts SET subscription_tier = ?, max_regions = ?, daily_notify_limit = ?
		WHERE id = ?
	`, string(plan.ID), plan.MaxRegions, plan.DailyNotifyLimit, accountID)
	if err != nil {
		return fmt.Errorf("error applying subscription: %w", err)
	}
	return expectOneRow(result)
}

// ApplyPayment records the payment and upgrades the account atomically.
// It reports false when the merchant trade number was already applied.
func (c *Connection) ApplyPayment(ctx context.Context, payment models.Payment, plan models.Plan) (bool, error) {
	tx, err := c.BeginTransaction(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	inserted, err := tx.RecordPayment(ctx, payment)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	if err := tx.SetSubscription(ctx, payment.AccountID, plan); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit payment: %w", err)
	}
	return true, nil
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
