package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/events"
	"github.com/outreach-hub/backend/internal/lock"
	"github.com/outreach-hub/backend/internal/models"
	"github.com/outreach-hub/backend/internal/repositories"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	// Monday
	return &testClock{t: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, _ string, ev events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) ofType(eventType string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

var errDiskFull = errors.New("disk full")

// flakyStore fails the next failUpdates writes.
type flakyStore struct {
	*repositories.MemoryCampaignRepo

	mu          sync.Mutex
	failUpdates int
	updates     int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryCampaignRepo: repositories.NewMemoryCampaignRepo()}
}

func (s *flakyStore) failNext(n int) {
	s.mu.Lock()
	s.failUpdates = n
	s.mu.Unlock()
}

func (s *flakyStore) Update(ctx context.Context, c *models.Campaign) error {
	s.mu.Lock()
	s.updates++
	if s.failUpdates > 0 {
		s.failUpdates--
		s.mu.Unlock()
		return errDiskFull
	}
	s.mu.Unlock()
	return s.MemoryCampaignRepo.Update(ctx, c)
}

type fixture struct {
	svc    *CampaignService
	store  *flakyStore
	locks  *lock.KeyedMutex
	clock  *testClock
	events *eventRecorder
}

func newFixture(t *testing.T, opts CampaignOptions) *fixture {
	t.Helper()
	f := &fixture{
		store:  newFlakyStore(),
		locks:  lock.NewKeyedMutex(),
		clock:  newTestClock(),
		events: &eventRecorder{},
	}
	if opts.Now == nil {
		opts.Now = f.clock.Now
	}
	f.svc = NewCampaignService(f.store, f.locks, f.events, opts, zap.NewNop())
	return f
}

func outreachTargets() []models.Target {
	return []models.Target{
		{ID: "t1", Name: "Ada Lovelace", Handles: map[string]string{models.PlatformLinkedIn: "in/ada"}},
		{ID: "t2", Name: "Grace Hopper", Handles: map[string]string{models.PlatformLinkedIn: "in/grace"}},
		{ID: "t3", Name: "Alan Turing", Handles: map[string]string{models.PlatformEmail: "alan@example.com"}},
	}
}

// twoPhaseCampaign views every profile, then connects with targets that have a LinkedIn handle.
func twoPhaseCampaign() *models.Campaign {
	return &models.Campaign{
		Name: "founders",
		Phases: []models.Phase{
			{Name: "warm up", Platform: models.PlatformLinkedIn, ActionKind: models.ActionViewProfile},
			{
				Name:       "connect",
				Platform:   models.PlatformLinkedIn,
				ActionKind: models.ActionConnect,
				Template:   "Hi {{first_name}}",
				Condition:  CondHasLinkedIn,
			},
		},
		Targets: outreachTargets(),
	}
}

func (f *fixture) create(t *testing.T, c *models.Campaign) uuid.UUID {
	t.Helper()
	require.NoError(t, f.svc.Create(context.Background(), "u1", c))
	return c.ID
}

func (f *fixture) startCampaign(t *testing.T, c *models.Campaign) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := f.create(t, c)
	_, err := f.svc.Submit(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, id, "approver-1")
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, id)
	require.NoError(t, err)
	return id
}

// complete hands out, starts and settles the next action.
func (f *fixture) complete(t *testing.T, id uuid.UUID, success bool) *models.Action {
	t.Helper()
	ctx := context.Background()
	a, err := f.svc.GetNextAction(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, a)
	_, err = f.svc.MarkActionStarted(ctx, id, a.ID)
	require.NoError(t, err)
	errMsg := ""
	if !success {
		errMsg = "rate limited by platform"
	}
	rec, err := f.svc.RecordActionResult(ctx, id, a.ID, success, map[string]any{"ok": success}, errMsg)
	require.NoError(t, err)
	return rec
}

func (f *fixture) campaign(t *testing.T, id uuid.UUID) *models.Campaign {
	t.Helper()
	c, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}
