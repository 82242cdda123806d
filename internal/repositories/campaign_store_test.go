package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type campaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error)
}

func newSQLiteStore(t *testing.T) campaignStore {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	repo, err := NewSQLiteCampaignRepo(context.Background(), conn)
	require.NoError(t, err)
	return repo
}

func stores() map[string]func(t *testing.T) campaignStore {
	return map[string]func(t *testing.T) campaignStore{
		"memory": func(*testing.T) campaignStore { return NewMemoryCampaignRepo() },
		"sqlite": newSQLiteStore,
	}
}

func sampleCampaign(owner, status string, created time.Time) *models.Campaign {
	started := created.Add(time.Minute)
	return &models.Campaign{
		ID:        uuid.New(),
		Name:      "Q3 founders",
		CreatedBy: owner,
		Status:    status,
		Phases: []models.Phase{
			{
				Name:       "warm up",
				Platform:   models.PlatformLinkedIn,
				ActionKind: models.ActionViewProfile,
				Status:     models.PhaseStatusInProgress,
				StartedAt:  &started,
				Actions: []models.Action{{
					ID:          uuid.New(),
					Kind:        models.ActionViewProfile,
					Platform:    models.PlatformLinkedIn,
					TargetID:    "t1",
					TargetRef:   "in/ada",
					Status:      models.ActionStatusCompleted,
					Result:      map[string]any{"profile": "seen"},
					MaxRetries:  2,
					ScheduledAt: started,
				}},
				Stats: models.Stats{ActionsTotal: 1, ActionsCompleted: 1},
			},
			{
				Name:       "connect",
				Platform:   models.PlatformLinkedIn,
				ActionKind: models.ActionConnect,
				Template:   "Hi {{name}}",
				Condition:  "has_linkedin",
				Status:     models.PhaseStatusPending,
			},
		},
		Targets: []models.Target{{
			ID:         "t1",
			Name:       "Ada",
			Handles:    map[string]string{models.PlatformLinkedIn: "in/ada"},
			Attributes: map[string]string{"company": "Analytical"},
			Status:     models.TargetStatusInProgress,
		}},
		Schedule:  models.Schedule{Weekdays: []time.Weekday{time.Monday}, StartHour: 9, EndHour: 17, Timezone: "UTC"},
		Stats:     models.Stats{TargetsTotal: 1, ActionsTotal: 1, ActionsCompleted: 1},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCampaignStore_RoundTrip(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			c := sampleCampaign("u1", models.CampaignStatusRunning, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))

			require.NoError(t, store.Create(ctx, c))
			assert.EqualValues(t, 1, c.Version)

			got, err := store.GetByID(ctx, c.ID)
			require.NoError(t, err)
			if diff := cmp.Diff(c, got); diff != "" {
				t.Errorf("campaign mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCampaignStore_NotFound(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			_, err := store.GetByID(ctx, uuid.New())
			assert.ErrorIs(t, err, ErrNotFound)

			missing := sampleCampaign("u1", models.CampaignStatusDraft, time.Now().UTC())
			missing.Version = 1
			assert.ErrorIs(t, store.Update(ctx, missing), ErrNotFound)
		})
	}
}

func TestCampaignStore_OptimisticVersion(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			c := sampleCampaign("u1", models.CampaignStatusRunning, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
			require.NoError(t, store.Create(ctx, c))

			first, err := store.GetByID(ctx, c.ID)
			require.NoError(t, err)
			second, err := store.GetByID(ctx, c.ID)
			require.NoError(t, err)

			first.Status = models.CampaignStatusPaused
			require.NoError(t, store.Update(ctx, first))
			assert.EqualValues(t, 2, first.Version)

			second.Status = models.CampaignStatusCancelled
			assert.ErrorIs(t, store.Update(ctx, second), ErrVersionConflict)
			assert.EqualValues(t, 1, second.Version, "a rejected write leaves the caller's version alone")

			got, err := store.GetByID(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusPaused, got.Status)
			assert.EqualValues(t, 2, got.Version)
		})
	}
}

func TestCampaignStore_ListFilters(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()
			base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

			var ids []uuid.UUID
			for i, row := range []struct{ owner, status string }{
				{"u1", models.CampaignStatusRunning},
				{"u1", models.CampaignStatusDraft},
				{"u2", models.CampaignStatusRunning},
				{"u1", models.CampaignStatusRunning},
			} {
				c := sampleCampaign(row.owner, row.status, base.Add(time.Duration(i)*time.Hour))
				require.NoError(t, store.Create(ctx, c))
				ids = append(ids, c.ID)
			}

			running := models.CampaignStatusRunning
			owner := "u1"

			all, err := store.List(ctx, CampaignFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 4)
			assert.Equal(t, ids[3], all[0].ID, "newest first")

			byStatus, err := store.List(ctx, CampaignFilter{Status: &running})
			require.NoError(t, err)
			assert.Len(t, byStatus, 3)

			both, err := store.List(ctx, CampaignFilter{Status: &running, CreatedBy: &owner})
			require.NoError(t, err)
			require.Len(t, both, 2)
			assert.Equal(t, []uuid.UUID{ids[3], ids[0]}, []uuid.UUID{both[0].ID, both[1].ID})

			page, err := store.List(ctx, CampaignFilter{Limit: 2, Offset: 2})
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, ids[1], page[0].ID)

			empty, err := store.List(ctx, CampaignFilter{Offset: 10})
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}
