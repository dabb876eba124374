// internal/locations/reconciler.go
package locations

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"d4d/internal/credentials"
	"d4d/pkg/platform"
)

// Sources for an install count.
const (
	SourceUpstream      = "upstream"
	SourceLocalFallback = "local-fallback"
)

// Status is the reconciled install state for an agency.
type Status struct {
	Count  int    `json:"installedCount"`
	Source string `json:"source"`
}

type tokenSource interface {
	GetValidAccessToken(ctx context.Context, scope credentials.ScopeType, scopeID string) (string, error)
}

type installedLister interface {
	InstalledLocations(ctx context.Context, accessToken, companyID, appID string) ([]platform.Location, error)
}

// countCache holds recent upstream install counts. Misses and backend
// failures both read as "not cached".
type countCache interface {
	get(ctx context.Context, key string) (int, bool)
	set(ctx context.Context, key string, n int, ttl time.Duration)
	del(ctx context.Context, key string)
}

// Reconciler answers "is this agency still installed" with the platform's
// installed-location list when reachable, falling back to the local store
// purely for availability. The upstream answer is authoritative: local state
// is ignored whenever the platform call succeeds.
type Reconciler struct {
	store    Store
	tokens   tokenSource
	api      installedLister
	appID    string
	cache    countCache // optional; nil disables caching
	cacheTTL time.Duration
	log      *zap.SugaredLogger
}

func NewReconciler(store Store, tokens tokenSource, api installedLister, appID string, cache *redis.Client, log *zap.SugaredLogger) *Reconciler {
	r := &Reconciler{
		store:    store,
		tokens:   tokens,
		api:      api,
		appID:    appID,
		cacheTTL: 60 * time.Second,
		log:      log,
	}
	if cache != nil {
		r.cache = &redisCache{cli: cache, log: log}
	}
	return r
}

// AgencyInstalled returns the current installed-location count for the
// agency and which source produced it, serving a recent cached upstream
// count when one exists. The upstream query requires both a configured app
// id and an obtainable agency token; any failure along that path degrades
// to the local count.
func (r *Reconciler) AgencyInstalled(ctx context.Context, agencyID string) (Status, error) {
	return r.agencyInstalled(ctx, agencyID, false)
}

// AgencyInstalledFresh bypasses the cache. Destructive decisions (menu
// removal) must see live state: a cached count can lag an install for the
// full TTL, and acting on it could delete a menu a live tenant still needs.
func (r *Reconciler) AgencyInstalledFresh(ctx context.Context, agencyID string) (Status, error) {
	return r.agencyInstalled(ctx, agencyID, true)
}

func (r *Reconciler) agencyInstalled(ctx context.Context, agencyID string, fresh bool) (Status, error) {
	if r.appID != "" {
		if !fresh {
			if n, ok := r.cachedCount(ctx, agencyID); ok {
				return Status{Count: n, Source: SourceUpstream}, nil
			}
		}
		if st, ok := r.upstreamCount(ctx, agencyID); ok {
			r.storeCount(ctx, agencyID, st.Count)
			return st, nil
		}
	}
	n, err := r.store.CountInstalled(ctx, agencyID)
	if err != nil {
		return Status{}, err
	}
	return Status{Count: n, Source: SourceLocalFallback}, nil
}

// InvalidateCache drops the agency's cached count. Called when install
// state changes locally (e.g. a fresh install) so readers do not serve the
// pre-install count for the rest of the TTL.
func (r *Reconciler) InvalidateCache(ctx context.Context, agencyID string) {
	if r.cache == nil {
		return
	}
	r.cache.del(ctx, cacheKey(agencyID))
}

func (r *Reconciler) upstreamCount(ctx context.Context, agencyID string) (Status, bool) {
	token, err := r.tokens.GetValidAccessToken(ctx, credentials.ScopeAgency, agencyID)
	if err != nil {
		r.log.Debugw("no agency token for installed query", "agencyId", agencyID, "err", err)
		return Status{}, false
	}
	locs, err := r.api.InstalledLocations(ctx, token, agencyID, r.appID)
	if err != nil {
		r.log.Warnw("installed-locations query failed, falling back to local store", "agencyId", agencyID, "err", err)
		return Status{}, false
	}
	n := 0
	for _, l := range locs {
		if l.IsInstalled {
			n++
		}
	}
	return Status{Count: n, Source: SourceUpstream}, true
}

func cacheKey(agencyID string) string { return "d4d:installed:" + agencyID }

func (r *Reconciler) cachedCount(ctx context.Context, agencyID string) (int, bool) {
	if r.cache == nil {
		return 0, false
	}
	return r.cache.get(ctx, cacheKey(agencyID))
}

func (r *Reconciler) storeCount(ctx context.Context, agencyID string, n int) {
	if r.cache == nil {
		return
	}
	r.cache.set(ctx, cacheKey(agencyID), n, r.cacheTTL)
}

// redisCache backs countCache with redis.
type redisCache struct {
	cli *redis.Client
	log *zap.SugaredLogger
}

func (c *redisCache) get(ctx context.Context, key string) (int, bool) {
	v, err := c.cli.Get(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *redisCache) set(ctx context.Context, key string, n int, ttl time.Duration) {
	if err := c.cli.Set(ctx, key, strconv.Itoa(n), ttl).Err(); err != nil {
		c.log.Debugw("installed-count cache write failed", "key", key, "err", err)
	}
}

func (c *redisCache) del(ctx context.Context, key string) {
	if err := c.cli.Del(ctx, key).Err(); err != nil {
		c.log.Debugw("installed-count cache invalidate failed", "key", key, "err", err)
	}
}
