package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"house-alert-api/models"
)

const monitorColumns = `id, account_id, listing_type, regions, price_min, price_max,
	is_active, created_at, updated_at`

func scanMonitor(row rowScanner) (*models.Monitor, error) {
	var m models.Monitor
	var listingType, regionsJSON string

	err := row.Scan(&m.ID, &m.AccountID, &listingType, &regionsJSON, &m.PriceMin,
		&m.PriceMax, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	m.Type = models.ListingType(listingType)
	m.Regions = []string{}
	if regionsJSON != "" {
		if err := json.Unmarshal([]byte(regionsJSON), &m.Regions); err != nil {
			return nil, fmt.Errorf("error parsing regions of monitor %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func encodeRegions(regions []string) (string, error) {
	if regions == nil {
		regions = []string{}
	}
	b, err := json.Marshal(regions)
	if err != nil {
		return "", fmt.Errorf("error encoding regions: %w", err)
	}
	return string(b), nil
}

func (c *Connection) ListMonitors(ctx context.Context, accountID string) ([]models.Monitor, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT "+monitorColumns+" FROM monitors WHERE account_id = ? ORDER BY created_at ASC", accountID)
	if err != nil {
		return nil, fmt.Errorf("error listing monitors: %w", err)
	}
	defer rows.Close()

	monitors := []models.Monitor{}
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, *m)
	}
	return monitors, rows.Err()
}

func (c *Connection) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+monitorColumns+" FROM monitors WHERE id = ?", id)
	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting monitor: %w", err)
	}
	return m, nil
}

// CreateMonitor assigns an id when m has none and returns the stored row.
func (c *Connection) CreateMonitor(ctx context.Context, m models.Monitor) (*models.Monitor, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	regions, err := encodeRegions(m.Regions)
	if err != nil {
		return nil, err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO monitors (id, account_id, listing_type, regions, price_min, price_max, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.AccountID, string(m.Type), regions, m.PriceMin, m.PriceMax, m.IsActive)
	if err != nil {
		return nil, fmt.Errorf("error creating monitor: %w", err)
	}
	return c.GetMonitor(ctx, m.ID)
}

func (c *Connection) UpdateMonitor(ctx context.Context, m models.Monitor) (*models.Monitor, error) {
	regions, err := encodeRegions(m.Regions)
	if err != nil {
		return nil, err
	}

	result, err := c.db.ExecContext(ctx, `
		UPDATE monitors SET listing_type = ?, regions = ?, price_min = ?, price_max = ?, is_active = ?
		WHERE id = ? AND account_id = ?
	`, string(m.Type), regions, m.PriceMin, m.PriceMax, m.IsActive, m.ID, m.AccountID)
	if err != nil {
		return nil, fmt.Errorf("error updating monitor: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return nil, err
	}
	return c.GetMonitor(ctx, m.ID)
}

func (c *Connection) DeleteMonitor(ctx context.Context, accountID, id string) error {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM monitors WHERE id = ? AND account_id = ?", id, accountID)
	if err != nil {
		return fmt.Errorf("error deleting monitor: %w", err)
	}
	return expectOneRow(result)
}
