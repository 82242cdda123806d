package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	created_by TEXT NOT NULL,
	status TEXT NOT NULL,
	version INTEGER NOT NULL,
	doc TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
CREATE INDEX IF NOT EXISTS idx_campaigns_created_by ON campaigns(created_by);
`

// SQLiteCampaignRepo is the embedded campaign store. Same contract as CampaignRepo.
type SQLiteCampaignRepo struct {
	db *sql.DB
}

func NewSQLiteCampaignRepo(ctx context.Context, db *sql.DB) (*SQLiteCampaignRepo, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteCampaignRepo{db: db}, nil
}

func (r *SQLiteCampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	c.Version = 1
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, created_by, status, version, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID.String(), c.CreatedBy, c.Status, c.Version, string(doc), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	return err
}

func (r *SQLiteCampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM campaigns WHERE id = ?`, id.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c models.Campaign
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, fmt.Errorf("decode campaign %s: %w", id, err)
	}
	return &c, nil
}

func (r *SQLiteCampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	expected := c.Version
	c.Version++
	doc, err := json.Marshal(c)
	if err != nil {
		c.Version = expected
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = ?, version = ?, doc = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, c.Status, c.Version, string(doc), c.UpdatedAt.UTC(), c.ID.String(), expected)
	if err != nil {
		c.Version = expected
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		c.Version = expected
		return err
	}
	if n == 0 {
		c.Version = expected
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM campaigns WHERE id = ?`, c.ID.String()).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *SQLiteCampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	query := `SELECT doc FROM campaigns`
	args := []any{}
	where := []string{}

	if f.CreatedBy != nil {
		where = append(where, "created_by = ?")
		args = append(args, *f.CreatedBy)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *f.Status)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.limit(), f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var c models.Campaign
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}
