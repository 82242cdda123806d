package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/outreach-hub/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// Records idle for longer than this are dropped; every counter would have rolled over anyway.
const admissionRecordTTL = 48 * time.Hour

// RedisAdmissionRepo keeps admission records as JSON values and the action history as a
// capped list, newest first.
type RedisAdmissionRepo struct {
	client *redis.Client
}

func NewRedisAdmissionRepo(client *redis.Client) *RedisAdmissionRepo {
	return &RedisAdmissionRepo{client: client}
}

func recordRedisKey(userID, platform string) string {
	return fmt.Sprintf("adm:rec:%s:%s", userID, platform)
}

func historyRedisKey(userID, platform string) string {
	return fmt.Sprintf("adm:hist:%s:%s", userID, platform)
}

// platformsRedisKey indexes the platforms a user has a record on.
func platformsRedisKey(userID string) string {
	return "adm:plat:" + userID
}

func (r *RedisAdmissionRepo) GetRecord(ctx context.Context, userID, platform string) (*models.AdmissionRecord, error) {
	data, err := r.client.Get(ctx, recordRedisKey(userID, platform)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec models.AdmissionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RedisAdmissionRepo) SaveRecord(ctx context.Context, rec *models.AdmissionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	index := platformsRedisKey(rec.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordRedisKey(rec.UserID, rec.Platform), data, admissionRecordTTL)
		pipe.SAdd(ctx, index, rec.Platform)
		pipe.Expire(ctx, index, admissionRecordTTL)
		return nil
	})
	return err
}

// DeleteRecord drops the counters for one platform. History is kept.
func (r *RedisAdmissionRepo) DeleteRecord(ctx context.Context, userID, platform string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordRedisKey(userID, platform))
		pipe.SRem(ctx, platformsRedisKey(userID), platform)
		return nil
	})
	return err
}

// ListRecords returns every stored record of a user, sorted by platform.
func (r *RedisAdmissionRepo) ListRecords(ctx context.Context, userID string) ([]models.AdmissionRecord, error) {
	platforms, err := r.client.SMembers(ctx, platformsRedisKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		return []models.AdmissionRecord{}, nil
	}
	sort.Strings(platforms)

	keys := make([]string, len(platforms))
	for i, p := range platforms {
		keys[i] = recordRedisKey(userID, p)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.AdmissionRecord, 0, len(values))
	for _, v := range values {
		doc, ok := v.(string)
		if !ok {
			continue // expired since it was indexed
		}
		var rec models.AdmissionRecord
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisAdmissionRepo) AppendHistory(ctx context.Context, entry models.ActionHistoryEntry, keep int) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := historyRedisKey(entry.UserID, entry.Platform)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		if keep > 0 {
			pipe.LTrim(ctx, key, 0, int64(keep-1))
		}
		return nil
	})
	return err
}

func (r *RedisAdmissionRepo) History(ctx context.Context, userID, platform string, limit int) ([]models.ActionHistoryEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	items, err := r.client.LRange(ctx, historyRedisKey(userID, platform), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.ActionHistoryEntry, 0, len(items))
	for _, item := range items {
		var e models.ActionHistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
