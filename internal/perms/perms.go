// Package perms derives support-team permission tiers for users.
//
// Tiers only influence presentation (the relay phone prefix and the ops
// API role gates); they are not part of the call state machine.
package perms

import (
	"context"
	"sync"
)

type Level int

const (
	LevelNone Level = iota
	LevelDonator
	LevelContributor
	LevelCustomerSupport
	LevelManager
	LevelMaintainer
)

func (l Level) String() string {
	switch l {
	case LevelDonator:
		return "donator"
	case LevelContributor:
		return "contributor"
	case LevelCustomerSupport:
		return "customer_support"
	case LevelManager:
		return "manager"
	case LevelMaintainer:
		return "maintainer"
	default:
		return "none"
	}
}

// Resolver reports the permission tier for a user.
type Resolver interface {
	Level(ctx context.Context, userID string) (Level, error)
}

// RoleFetcher returns the role ids a user holds in the support guild.
// The membership lookup is remote and potentially slow, hence the cache.
type RoleFetcher func(ctx context.Context, userID string) ([]string, error)

// RoleMap binds support-guild role ids to tiers.
type RoleMap struct {
	Boss            string
	Manager         string
	CustomerSupport string
	Contributor     string
	Donator         string
}

// CachedResolver resolves tiers through a RoleFetcher with a bounded
// in-process cache. Entries are evicted oldest-first once the cap is hit;
// staleness is acceptable because tiers change rarely and only affect
// presentation.
type CachedResolver struct {
	fetch       RoleFetcher
	roles       RoleMap
	maintainers map[string]struct{}

	mu    sync.Mutex
	cache map[string]Level
	order []string
	cap   int
}

const defaultCacheCap = 200

func NewCachedResolver(fetch RoleFetcher, roles RoleMap, maintainers []string) *CachedResolver {
	m := make(map[string]struct{}, len(maintainers))
	for _, id := range maintainers {
		m[id] = struct{}{}
	}
	return &CachedResolver{
		fetch:       fetch,
		roles:       roles,
		maintainers: m,
		cache:       map[string]Level{},
		cap:         defaultCacheCap,
	}
}

func (r *CachedResolver) Level(ctx context.Context, userID string) (Level, error) {
	if _, ok := r.maintainers[userID]; ok {
		return LevelMaintainer, nil
	}

	r.mu.Lock()
	if lvl, ok := r.cache[userID]; ok {
		r.mu.Unlock()
		return lvl, nil
	}
	r.mu.Unlock()

	roleIDs, err := r.fetch(ctx, userID)
	if err != nil {
		// Degrade to the lowest tier rather than blocking a relay.
		return LevelNone, err
	}

	lvl := r.classify(roleIDs)

	r.mu.Lock()
	if _, ok := r.cache[userID]; !ok {
		for len(r.order) >= r.cap {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.cache, oldest)
		}
		r.order = append(r.order, userID)
	}
	r.cache[userID] = lvl
	r.mu.Unlock()

	return lvl, nil
}

func (r *CachedResolver) classify(roleIDs []string) Level {
	has := func(id string) bool {
		if id == "" {
			return false
		}
		for _, rid := range roleIDs {
			if rid == id {
				return true
			}
		}
		return false
	}
	switch {
	case has(r.roles.Boss):
		return LevelMaintainer
	case has(r.roles.Manager):
		return LevelManager
	case has(r.roles.CustomerSupport):
		return LevelCustomerSupport
	case has(r.roles.Contributor):
		return LevelContributor
	case has(r.roles.Donator):
		return LevelDonator
	default:
		return LevelNone
	}
}

// Forget drops a user from the cache (used when roles change).
func (r *CachedResolver) Forget(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// StaticResolver returns a fixed tier per user; useful for tests.
type StaticResolver map[string]Level

func (s StaticResolver) Level(_ context.Context, userID string) (Level, error) {
	return s[userID], nil
}
