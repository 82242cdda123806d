package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/outreach-hub/backend/internal/models"
)

// CampaignRepo stores each campaign as one JSONB document so a whole
// phase/target/action tree is written atomically.
type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	c.Version = 1
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO campaigns (id, created_by, status, version, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.CreatedBy, c.Status, c.Version, doc, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM campaigns WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c models.Campaign
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode campaign %s: %w", id, err)
	}
	return &c, nil
}

// Update writes c if the stored version still equals c.Version, then bumps it.
func (r *CampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	expected := c.Version
	c.Version++
	doc, err := json.Marshal(c)
	if err != nil {
		c.Version = expected
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $1, version = $2, doc = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`, c.Status, c.Version, doc, c.UpdatedAt, c.ID, expected)
	if err != nil {
		c.Version = expected
		return err
	}
	if tag.RowsAffected() == 0 {
		c.Version = expected
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

type CampaignFilter struct {
	CreatedBy *string
	Status    *string
	Limit     int
	Offset    int
}

func (f CampaignFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 100 {
		return 20
	}
	return f.Limit
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	query := `SELECT doc FROM campaigns`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.CreatedBy != nil {
		where = append(where, fmt.Sprintf("created_by = $%d", argIdx))
		args = append(args, *f.CreatedBy)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, f.limit(), f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var c models.Campaign
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}
