package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/outreach-hub/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type admissionStore interface {
	GetRecord(ctx context.Context, userID, platform string) (*models.AdmissionRecord, error)
	SaveRecord(ctx context.Context, rec *models.AdmissionRecord) error
	AppendHistory(ctx context.Context, entry models.ActionHistoryEntry, keep int) error
	History(ctx context.Context, userID, platform string, limit int) ([]models.ActionHistoryEntry, error)
	ListRecords(ctx context.Context, userID string) ([]models.AdmissionRecord, error)
	DeleteRecord(ctx context.Context, userID, platform string) error
}

func admissionStores(t *testing.T) map[string]admissionStore {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]admissionStore{
		"memory": NewMemoryAdmissionRepo(),
		"redis":  NewRedisAdmissionRepo(rdb),
	}
}

func TestAdmissionStore_Record(t *testing.T) {
	for name, store := range admissionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec, err := store.GetRecord(ctx, "u1", models.PlatformLinkedIn)
			require.NoError(t, err)
			assert.Nil(t, rec)

			now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
			until := now.Add(30 * time.Minute)
			in := models.NewAdmissionRecord("u1", models.PlatformLinkedIn, now)
			in.DailyCounts[models.ActionConnect] = 4
			in.HourlyCounts[models.ActionConnect] = 2
			in.Day = "2024-03-04"
			in.Hour = "2024-03-04T10"
			in.InCooldown = true
			in.CooldownUntil = &until
			require.NoError(t, store.SaveRecord(ctx, in))

			got, err := store.GetRecord(ctx, "u1", models.PlatformLinkedIn)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, 4, got.DailyCounts[models.ActionConnect])
			assert.Equal(t, 2, got.HourlyTotal())
			assert.True(t, got.InCooldown)
			assert.True(t, got.CooldownUntil.Equal(until))

			// Returned records are copies.
			got.DailyCounts[models.ActionConnect] = 99
			again, err := store.GetRecord(ctx, "u1", models.PlatformLinkedIn)
			require.NoError(t, err)
			assert.Equal(t, 4, again.DailyCounts[models.ActionConnect])

			other, err := store.GetRecord(ctx, "u1", models.PlatformTwitter)
			require.NoError(t, err)
			assert.Nil(t, other)
		})
	}
}

func TestAdmissionStore_ListAndDeleteRecords(t *testing.T) {
	for name, store := range admissionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

			recs, err := store.ListRecords(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, recs)

			for _, p := range []string{models.PlatformTwitter, models.PlatformLinkedIn} {
				require.NoError(t, store.SaveRecord(ctx, models.NewAdmissionRecord("u1", p, now)))
			}
			require.NoError(t, store.SaveRecord(ctx, models.NewAdmissionRecord("u2", models.PlatformEmail, now)))
			require.NoError(t, store.AppendHistory(ctx, models.ActionHistoryEntry{
				UserID: "u1", Platform: models.PlatformLinkedIn, ActionKind: models.ActionConnect, At: now,
			}, 10))

			recs, err = store.ListRecords(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, models.PlatformLinkedIn, recs[0].Platform)
			assert.Equal(t, models.PlatformTwitter, recs[1].Platform)

			require.NoError(t, store.DeleteRecord(ctx, "u1", models.PlatformLinkedIn))
			require.NoError(t, store.DeleteRecord(ctx, "u1", models.PlatformInstagram), "deleting nothing is fine")

			rec, err := store.GetRecord(ctx, "u1", models.PlatformLinkedIn)
			require.NoError(t, err)
			assert.Nil(t, rec)

			recs, err = store.ListRecords(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, models.PlatformTwitter, recs[0].Platform)

			hist, err := store.History(ctx, "u1", models.PlatformLinkedIn, 0)
			require.NoError(t, err)
			assert.Len(t, hist, 1, "history survives a record delete")

			other, err := store.ListRecords(ctx, "u2")
			require.NoError(t, err)
			assert.Len(t, other, 1)
		})
	}
}

func TestAdmissionStore_HistoryIsCappedNewestFirst(t *testing.T) {
	for name, store := range admissionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

			for i := 0; i < 5; i++ {
				require.NoError(t, store.AppendHistory(ctx, models.ActionHistoryEntry{
					UserID:     "u1",
					Platform:   models.PlatformLinkedIn,
					ActionKind: models.ActionConnect,
					Target:     string(rune('a' + i)),
					Success:    i%2 == 0,
					At:         base.Add(time.Duration(i) * time.Minute),
				}, 3))
			}

			all, err := store.History(ctx, "u1", models.PlatformLinkedIn, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"e", "d", "c"}, []string{all[0].Target, all[1].Target, all[2].Target})

			two, err := store.History(ctx, "u1", models.PlatformLinkedIn, 2)
			require.NoError(t, err)
			assert.Len(t, two, 2)

			none, err := store.History(ctx, "u2", models.PlatformLinkedIn, 10)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestRedisAdmissionRepo_RecordExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisAdmissionRepo(rdb)
	ctx := context.Background()

	require.NoError(t, store.SaveRecord(ctx, models.NewAdmissionRecord("u1", models.PlatformEmail, time.Now())))
	mr.FastForward(admissionRecordTTL + time.Second)

	rec, err := store.GetRecord(ctx, "u1", models.PlatformEmail)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
