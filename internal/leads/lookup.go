package leads

import (
	"context"
	"fmt"
	"strconv"

	"amocrm-leads/internal/common/cache"
	"amocrm-leads/internal/common/errors"
	"amocrm-leads/internal/common/logging"
)

type entry[T any] struct {
	id    int
	value T
}

// lookup is a lazily filled cache of one remote entity type.
// A miss reloads the whole remote list and merges only IDs not yet cached,
// so a cached record never changes for the lifetime of the cache.
type lookup[T any] struct {
	resource string
	prefix   string
	store    cache.Cache
	load     func(ctx context.Context) ([]entry[T], error)
	logger   logging.Logger
}

func newLookup[T any](resource string, store cache.Cache, logger logging.Logger,
	load func(ctx context.Context) ([]entry[T], error)) *lookup[T] {
	return &lookup[T]{
		resource: resource,
		prefix:   resource + ":",
		store:    store,
		load:     load,
		logger:   logger,
	}
}

func (l *lookup[T]) key(id int) string {
	return l.prefix + strconv.Itoa(id)
}

// get reads a cached record without touching the network
func (l *lookup[T]) get(ctx context.Context, id int) (T, bool, error) {
	var zero T

	value, found := l.store.Get(ctx, l.key(id))
	if !found {
		return zero, false, nil
	}

	if v, ok := value.(T); ok {
		return v, true, nil
	}

	var out T
	if err := cache.Decode(value, &out); err != nil {
		return zero, false, errors.DataIntegrityError(fmt.Sprintf("cached %s %d is unreadable", l.resource, id), err)
	}
	return out, true, nil
}

// ensureLoaded returns the record for id, reloading the remote list on a miss.
// found is false when the id is still unknown after the reload.
func (l *lookup[T]) ensureLoaded(ctx context.Context, id int) (value T, found bool, err error) {
	if value, found, err = l.get(ctx, id); err != nil || found {
		return value, found, err
	}

	if err := l.reload(ctx); err != nil {
		return value, false, err
	}

	return l.get(ctx, id)
}

func (l *lookup[T]) reload(ctx context.Context) error {
	entries, err := l.load(ctx)
	if errors.IsEmpty(err) {
		l.logger.Debug("Lookup source is empty", logging.Field{Key: "resource", Value: l.resource})
		return nil
	}
	if err != nil {
		return err
	}

	merged := 0
	for _, e := range entries {
		stored, err := l.store.SetNX(ctx, l.key(e.id), e.value, 0)
		if err != nil {
			return errors.InternalError(fmt.Sprintf("failed to cache %s %d", l.resource, e.id), err)
		}
		if stored {
			merged++
		}
	}

	l.logger.Debug("Lookup cache reloaded",
		logging.Field{Key: "resource", Value: l.resource},
		logging.Field{Key: "fetched", Value: len(entries)},
		logging.Field{Key: "merged", Value: merged},
	)
	return nil
}
