// Package bootstrap wires the storage, locking, eventing and admission stack shared by the
// API and worker binaries from a Config.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/outreach-hub/backend/internal/admission"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/db"
	"github.com/outreach-hub/backend/internal/discovery"
	"github.com/outreach-hub/backend/internal/dispatch"
	"github.com/outreach-hub/backend/internal/events"
	"github.com/outreach-hub/backend/internal/lock"
	"github.com/outreach-hub/backend/internal/models"
	"github.com/outreach-hub/backend/internal/repositories"
	"github.com/outreach-hub/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// NewLogger builds the production zap logger at LOG_LEVEL.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

type Stack struct {
	Redis      *redis.Client
	Campaigns  services.CampaignStore
	Admission  admission.Store
	Locks      lock.Locker
	Publisher  events.Publisher
	Subscriber events.Subscriber
	Profiles   *config.Profiles
	Watcher    *config.ProfileWatcher
	Controller *admission.Controller
	Registry   *dispatch.Registry
	Discoverer services.Discoverer

	closers []func()
}

// Close releases connections in reverse order of opening.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (s *Stack) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// Open connects every backing service cfg asks for. Redis is only dialled when something uses it.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Stack, error) {
	s := &Stack{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	if cfg.AdmissionDriver == DriverRedis || cfg.LockDriver == DriverRedis || cfg.EventsDriver == DriverRedis {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		s.Redis = rdb
		s.onClose(func() { _ = rdb.Close() })
	}

	if err := s.openCampaigns(ctx, cfg, log); err != nil {
		return nil, err
	}

	switch cfg.AdmissionDriver {
	case DriverRedis:
		s.Admission = repositories.NewRedisAdmissionRepo(s.Redis)
	case DriverMemory:
		s.Admission = repositories.NewMemoryAdmissionRepo()
	default:
		return nil, fmt.Errorf("unknown ADMISSION_DRIVER %q", cfg.AdmissionDriver)
	}

	switch cfg.LockDriver {
	case DriverRedis:
		// Leases outlive the slowest adapter call so a driver keeps its campaign mid-dispatch.
		s.Locks = lock.NewRedisLocker(s.Redis, cfg.ActionTimeout+cfg.LeaseGrace, log)
	default:
		s.Locks = lock.NewKeyedMutex()
	}

	switch cfg.EventsDriver {
	case DriverRedis:
		s.Publisher = events.NewRedisPublisher(s.Redis, log)
		s.Subscriber = events.NewRedisSubscriber(s.Redis, log)
	default:
		bus := events.NewMemoryBus()
		s.Publisher = bus
		s.Subscriber = bus
	}

	base := config.DefaultProfiles(cfg)
	set, err := config.LoadProfiles(cfg.LimitsFile, base)
	if err != nil {
		log.Warn("limits file unreadable, using built-in profiles", zap.String("path", cfg.LimitsFile), zap.Error(err))
	}
	s.Profiles = config.NewProfiles(set)
	s.Watcher = config.NewProfileWatcher(cfg.LimitsFile, base, s.Profiles, log)
	s.onClose(s.Watcher.Stop)

	s.Controller = admission.NewController(s.Admission, s.Profiles, log,
		admission.WithLocation(cfg.Location()),
		admission.WithLocker(s.Locks),
		admission.WithDefaultDelay(models.DelayRange{Min: cfg.DefaultMinDelay, Max: cfg.DefaultMaxDelay}),
	)

	s.Registry = dispatch.NewRegistry(cfg.ActionTimeout, log)
	if cfg.DryRun {
		s.Registry.SetFallback(dispatch.NewDryRunAdapter(log))
	} else {
		s.Registry.SetFallback(dispatch.NewHTTPAdapter(cfg.AdapterBaseURL, &http.Client{}, log))
	}

	if cfg.DiscoveryBaseURL != "" {
		s.Discoverer = discovery.NewHTTPDiscoverer(cfg.DiscoveryBaseURL, &http.Client{Timeout: cfg.ActionTimeout}, log)
	}

	ok = true
	return s, nil
}

func (s *Stack) openCampaigns(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	switch cfg.StoreDriver {
	case DriverPostgres:
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
		if err != nil {
			return err
		}
		s.onClose(pool.Close)
		if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		s.Campaigns = repositories.NewCampaignRepo(pool)
	case DriverSQLite:
		conn, err := db.NewSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return err
		}
		s.onClose(func() { _ = conn.Close() })
		repo, err := repositories.NewSQLiteCampaignRepo(ctx, conn)
		if err != nil {
			return err
		}
		s.Campaigns = repo
	case DriverMemory:
		log.Warn("campaigns are kept in memory and lost on restart")
		s.Campaigns = repositories.NewMemoryCampaignRepo()
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return nil
}

// CampaignService builds the orchestrator on top of the stack.
func (s *Stack) CampaignService(cfg *config.Config, log *zap.Logger) *services.CampaignService {
	return services.NewCampaignService(s.Campaigns, s.Locks, s.Publisher, services.CampaignOptions{
		MaxRetries:      cfg.ActionMaxRetries,
		ConditionPolicy: cfg.UnknownCondition,
		Discoverer:      s.Discoverer,
		DefaultSchedule: cfg.DefaultSchedule(),
	}, log)
}
