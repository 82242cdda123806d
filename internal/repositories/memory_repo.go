package repositories

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/models"
)

// MemoryCampaignRepo keeps serialized campaigns in process. Used for dry runs and tests.
type MemoryCampaignRepo struct {
	mu   sync.RWMutex
	docs map[uuid.UUID][]byte
}

func NewMemoryCampaignRepo() *MemoryCampaignRepo {
	return &MemoryCampaignRepo{docs: make(map[uuid.UUID][]byte)}
}

func (r *MemoryCampaignRepo) Create(_ context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Version = 1
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	r.docs[c.ID] = doc
	return nil
}

func (r *MemoryCampaignRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	r.mu.RLock()
	doc, ok := r.docs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var c models.Campaign
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *MemoryCampaignRepo) Update(_ context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[c.ID]
	if !ok {
		return ErrNotFound
	}
	var stored struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(doc, &stored); err != nil {
		return err
	}
	if stored.Version != c.Version {
		return ErrVersionConflict
	}

	c.Version++
	next, err := json.Marshal(c)
	if err != nil {
		c.Version--
		return err
	}
	r.docs[c.ID] = next
	return nil
}

func (r *MemoryCampaignRepo) List(_ context.Context, f CampaignFilter) ([]models.Campaign, error) {
	r.mu.RLock()
	var all []models.Campaign
	for _, doc := range r.docs {
		var c models.Campaign
		if err := json.Unmarshal(doc, &c); err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		if f.CreatedBy != nil && c.CreatedBy != *f.CreatedBy {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		all = append(all, c)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if f.Offset >= len(all) {
		return nil, nil
	}
	end := f.Offset + f.limit()
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}

// MemoryAdmissionRepo is the in-process admission store.
type MemoryAdmissionRepo struct {
	mu      sync.Mutex
	records map[string][]byte
	history map[string][]models.ActionHistoryEntry // newest first
}

func NewMemoryAdmissionRepo() *MemoryAdmissionRepo {
	return &MemoryAdmissionRepo{
		records: make(map[string][]byte),
		history: make(map[string][]models.ActionHistoryEntry),
	}
}

func admissionKey(userID, platform string) string {
	return userID + ":" + platform
}

func (r *MemoryAdmissionRepo) GetRecord(_ context.Context, userID, platform string) (*models.AdmissionRecord, error) {
	r.mu.Lock()
	doc, ok := r.records[admissionKey(userID, platform)]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var rec models.AdmissionRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *MemoryAdmissionRepo) SaveRecord(_ context.Context, rec *models.AdmissionRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.records[admissionKey(rec.UserID, rec.Platform)] = doc
	r.mu.Unlock()
	return nil
}

func (r *MemoryAdmissionRepo) DeleteRecord(_ context.Context, userID, platform string) error {
	r.mu.Lock()
	delete(r.records, admissionKey(userID, platform))
	r.mu.Unlock()
	return nil
}

func (r *MemoryAdmissionRepo) ListRecords(_ context.Context, userID string) ([]models.AdmissionRecord, error) {
	r.mu.Lock()
	docs := make([][]byte, 0)
	for _, doc := range r.records {
		docs = append(docs, doc)
	}
	r.mu.Unlock()

	out := make([]models.AdmissionRecord, 0)
	for _, doc := range docs {
		var rec models.AdmissionRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, err
		}
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (r *MemoryAdmissionRepo) AppendHistory(_ context.Context, entry models.ActionHistoryEntry, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := admissionKey(entry.UserID, entry.Platform)
	list := append([]models.ActionHistoryEntry{entry}, r.history[key]...)
	if keep > 0 && len(list) > keep {
		list = list[:keep]
	}
	r.history[key] = list
	return nil
}

func (r *MemoryAdmissionRepo) History(_ context.Context, userID, platform string, limit int) ([]models.ActionHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.history[admissionKey(userID, platform)]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]models.ActionHistoryEntry, len(list))
	copy(out, list)
	return out, nil
}
