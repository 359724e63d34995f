package identity

import (
	"context"
	"errors"
	"fmt"

	"glassmind-quiz-service/internal/domain"

	"github.com/google/uuid"
)

// DeviceKey is the storage key holding the locally generated player id. The
// suffix is bumped whenever the id format changes so stale ids are discarded.
const DeviceKey = "glassmind_user_id_v4"

// ErrNoHostContext means the app runs outside the host; callers fall back to a local id.
var ErrNoHostContext = errors.New("no host context")

// Resolver yields the identity of the current player.
type Resolver interface {
	Resolve(ctx context.Context) (domain.Identity, error)
}

// Storage is a small string key/value store that survives between sessions.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// HostResolver reads the player from Telegram WebApp init data.
type HostResolver struct {
	initData string
}

func NewHostResolver(initData string) *HostResolver {
	return &HostResolver{initData: initData}
}

func (r *HostResolver) Resolve(context.Context) (domain.Identity, error) {
	user, err := ParseInitData(r.initData)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{PlayerID: fmt.Sprintf("%d", user.ID), Host: &user}, nil
}

// LocalResolver keeps an anonymous UUID in Storage, generating one on first use.
type LocalResolver struct {
	storage Storage
	newID   func() string
}

func NewLocalResolver(storage Storage) *LocalResolver {
	return &LocalResolver{storage: storage, newID: uuid.NewString}
}

// NewLocalResolverWithGenerator is used by tests that need predictable ids.
func NewLocalResolverWithGenerator(storage Storage, newID func() string) *LocalResolver {
	return &LocalResolver{storage: storage, newID: newID}
}

func (r *LocalResolver) Resolve(context.Context) (domain.Identity, error) {
	// An unreadable store is treated like an empty one.
	if cached, ok, err := r.storage.Get(DeviceKey); err == nil && ok && ValidDeviceID(cached) {
		return domain.Identity{PlayerID: cached}, nil
	}

	id := r.newID()
	if err := r.storage.Set(DeviceKey, id); err != nil {
		return domain.Identity{}, fmt.Errorf("persist device id: %w", err)
	}
	return domain.Identity{PlayerID: id}, nil
}

// ValidDeviceID reports whether id has the canonical 36 character UUID form.
func ValidDeviceID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Chain tries each resolver in order, moving on when one reports ErrNoHostContext.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context) (domain.Identity, error) {
	for _, r := range c {
		id, err := r.Resolve(ctx)
		if errors.Is(err, ErrNoHostContext) {
			continue
		}
		return id, err
	}
	return domain.Identity{}, ErrNoHostContext
}
