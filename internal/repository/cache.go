package repository

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/barberq/scheduling-core/internal/engine"
	"github.com/barberq/scheduling-core/internal/models"
)

// CatalogSnapshot is H3's immutable view of the Service/AddOn/Barber
// catalog. §5 requires readers never observe a partially-refreshed
// catalog; returning this by value (never a pointer into mutable
// shared state) is how that's enforced here.
type CatalogSnapshot struct {
	Services    map[string]models.Service
	AddOns      map[string]models.AddOn
	Barbers     map[string]models.Barber
	RefreshedAt time.Time
}

const catalogCacheKey = "scheduling:catalog:snapshot"

// CachingRepository wraps GormRepository with a Redis-backed,
// TTL-refreshed catalog cache in front of GetServices/GetAddOns/
// GetBarber/ListActiveBarbers, per H3. A nil redis client degrades
// gracefully to reading the in-process snapshot only, grounded on the
// teacher's nil-Redis-falls-through-to-Postgres pattern in
// internal/database/database.go's ConnectRedis caller.
type CachingRepository struct {
	*GormRepository
	redis *redis.Client
	ttl   time.Duration

	snapshot atomic.Pointer[CatalogSnapshot]
}

var _ engine.Repository = (*CachingRepository)(nil)

func NewCaching(inner *GormRepository, redisClient *redis.Client, ttl time.Duration) *CachingRepository {
	return &CachingRepository{GormRepository: inner, redis: redisClient, ttl: ttl}
}

// Refresh reloads the catalog from Postgres and republishes it to
// Redis so other instances can pick it up without hitting Postgres.
// Called on startup, by H6's catalog-refresh cron job, and whenever a
// catalog-change event arrives over NATS (internal/subscribers).
func (c *CachingRepository) Refresh(ctx context.Context) error {
	services, err := c.GormRepository.ListServices(ctx)
	if err != nil {
		return err
	}
	addons, err := c.GormRepository.ListAddOns(ctx)
	if err != nil {
		return err
	}
	barbers, err := c.GormRepository.ListAllBarbers(ctx)
	if err != nil {
		return err
	}

	snap := &CatalogSnapshot{
		Services:    make(map[string]models.Service, len(services)),
		AddOns:      make(map[string]models.AddOn, len(addons)),
		Barbers:     make(map[string]models.Barber, len(barbers)),
		RefreshedAt: time.Now(),
	}
	for _, s := range services {
		snap.Services[s.ID] = s
	}
	for _, a := range addons {
		snap.AddOns[a.ID] = a
	}
	for _, b := range barbers {
		snap.Barbers[b.ID] = b
	}
	c.snapshot.Store(snap)

	if c.redis != nil {
		if payload, err := json.Marshal(snap); err == nil {
			c.redis.Set(ctx, catalogCacheKey, payload, c.ttl)
		}
	}
	return nil
}

// load returns the in-process snapshot, pulling it from Redis first if
// this instance hasn't refreshed yet (e.g. just started).
func (c *CachingRepository) load(ctx context.Context) *CatalogSnapshot {
	if snap := c.snapshot.Load(); snap != nil {
		return snap
	}
	if c.redis != nil {
		if raw, err := c.redis.Get(ctx, catalogCacheKey).Bytes(); err == nil {
			var snap CatalogSnapshot
			if json.Unmarshal(raw, &snap) == nil {
				c.snapshot.Store(&snap)
				return &snap
			}
		}
	}
	return nil
}

func (c *CachingRepository) GetServices(ctx context.Context, ids []string) (map[string]models.Service, error) {
	if snap := c.load(ctx); snap != nil {
		out := make(map[string]models.Service, len(ids))
		missing := false
		for _, id := range ids {
			if svc, ok := snap.Services[id]; ok {
				out[id] = svc
			} else {
				missing = true
			}
		}
		if !missing {
			return out, nil
		}
	}
	return c.GormRepository.GetServices(ctx, ids)
}

func (c *CachingRepository) GetAddOns(ctx context.Context, ids []string) (map[string]models.AddOn, error) {
	if snap := c.load(ctx); snap != nil {
		out := make(map[string]models.AddOn, len(ids))
		missing := false
		for _, id := range ids {
			if add, ok := snap.AddOns[id]; ok {
				out[id] = add
			} else {
				missing = true
			}
		}
		if !missing {
			return out, nil
		}
	}
	return c.GormRepository.GetAddOns(ctx, ids)
}

func (c *CachingRepository) GetBarber(ctx context.Context, id string) (models.Barber, error) {
	if snap := c.load(ctx); snap != nil {
		if b, ok := snap.Barbers[id]; ok {
			return b, nil
		}
	}
	return c.GormRepository.GetBarber(ctx, id)
}

func (c *CachingRepository) ListActiveBarbers(ctx context.Context) ([]models.Barber, error) {
	if snap := c.load(ctx); snap != nil {
		out := make([]models.Barber, 0, len(snap.Barbers))
		for _, b := range snap.Barbers {
			if b.Status != models.BarberOffline {
				out = append(out, b)
			}
		}
		return out, nil
	}
	return c.GormRepository.ListActiveBarbers(ctx)
}
