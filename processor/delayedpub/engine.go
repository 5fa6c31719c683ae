package delayedpub

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/message"
	"github.com/c360/embargo/natsclient"
	"github.com/c360/embargo/storage"
)

// LookupReader is the read-only slice of the lookup store the engine needs
// at scan time. Satisfied by natsclient.KVStore.
type LookupReader interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
}

// Actions taken by the engine for one change event, reported for metrics
// and logging.
const (
	actionNone       = "none"
	actionCancel     = "cancel"
	actionRegister   = "register"
	actionReregister = "reregister"
)

// Engine is the deadline state machine of the delayed publisher. It owns
// two persistent indexes:
//
//	keys:  record-key -> deadline (at most one active deadline per key)
//	times: deadline   -> record keys sharing it, in registration order
//
// Change events update the indexes; the periodic scan walks due deadlines
// in ascending order and republishes the stored record bodies back into
// the input stream.
//
// Event handling and the scan are mutually exclusive on the engine mutex:
// within a partition they behave like a single cooperative task.
type Engine struct {
	mu        sync.Mutex
	keys      storage.Store
	times     storage.OrderedStore
	lookup    LookupReader
	republish func(ctx context.Context, key string, value []byte) error
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine creates a deadline engine over the given indexes.
func NewEngine(
	keys storage.Store,
	times storage.OrderedStore,
	lookup LookupReader,
	republish func(ctx context.Context, key string, value []byte) error,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		keys:      keys,
		times:     times,
		lookup:    lookup,
		republish: republish,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the engine's wall-clock source. Tests drive time
// explicitly; production code keeps time.Now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HandleChange applies one change event to the deadline indexes.
//
// The decision table, with now = wall clock at processing:
//
//	not private, or no parseable until    -> cancel any active deadline
//	until <= now                          -> cancel (already past due;
//	                                         the emitter re-evaluates on
//	                                         the next event or scan)
//	until > now, no active deadline       -> register
//	until > now, same active deadline     -> no-op
//	until > now, different active one     -> re-register
//
// A tombstone value reads as "no policy" and therefore cancels.
func (e *Engine) HandleChange(ctx context.Context, rec *message.Record) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	policy := message.PolicyOf(rec.Value)

	var newT int64
	if policy.Private {
		newT = policy.Deadline()
	}
	now := e.now().UnixMilli()

	old, hasOld, err := e.activeDeadline(ctx, rec.Key)
	if err != nil {
		return actionNone, err
	}

	switch {
	case newT == 0 || newT <= now:
		if !hasOld {
			return actionNone, nil
		}
		if err := e.cancel(ctx, rec.Key, old); err != nil {
			return actionCancel, err
		}
		e.logger.Debug("Deadline cancelled",
			"key", rec.Key,
			"deadline_ms", old)
		return actionCancel, nil

	case hasOld && old == newT:
		return actionNone, nil

	case hasOld:
		if err := e.removeFromBucket(ctx, old, rec.Key); err != nil {
			return actionReregister, err
		}
		if err := e.register(ctx, rec.Key, newT); err != nil {
			return actionReregister, err
		}
		e.logger.Debug("Deadline superseded",
			"key", rec.Key,
			"old_deadline_ms", old,
			"new_deadline_ms", newT)
		return actionReregister, nil

	default:
		if err := e.register(ctx, rec.Key, newT); err != nil {
			return actionRegister, err
		}
		e.logger.Debug("Deadline registered",
			"key", rec.Key,
			"deadline_ms", newT)
		return actionRegister, nil
	}
}

// Scan walks the time index in ascending deadline order, republishing
// every record whose deadline has passed, and removes the spent index
// entries. It stops at the first future deadline. Returns the number of
// records republished; zero when nothing is due.
func (e *Engine) Scan(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UnixMilli()

	type dueBucket struct {
		storeKey string
		members  []string
	}

	// Collect due buckets first; index writes happen after iteration so
	// the backend iterator never observes its own mutations.
	var due []dueBucket
	err := e.times.Ascend(ctx, func(key string, value []byte) (bool, error) {
		t, err := decodeDeadline(key)
		if err != nil {
			// Corrupt key: skip it rather than wedge the scan
			e.logger.Error("Skipping corrupt time-index key", "store_key", key, "error", err)
			return true, nil
		}
		if t > now {
			return false, nil
		}

		members, err := decodeBucket(value)
		if err != nil {
			e.logger.Error("Skipping corrupt time-index bucket", "store_key", key, "error", err)
			return true, nil
		}

		due = append(due, dueBucket{storeKey: key, members: members})
		return true, nil
	})
	if err != nil {
		return 0, errors.WrapFatal(err, "DelayedPublisher", "Scan", "iterate time index")
	}

	republished := 0
	for _, bucket := range due {
		for _, k := range bucket.members {
			entry, err := e.lookup.Get(ctx, k)
			switch {
			case err == nil:
				if err := e.republish(ctx, k, entry.Value); err != nil {
					return republished, errors.WrapTransient(err, "DelayedPublisher", "Scan",
						fmt.Sprintf("republish %s", k))
				}
				republished++
			case natsclient.IsKVNotFoundError(err):
				// The record vanished between registration and now; drop it
				e.logger.Warn("No lookup entry for due key; dropping", "key", k)
			default:
				return republished, errors.WrapFatal(err, "DelayedPublisher", "Scan",
					fmt.Sprintf("read lookup for %s", k))
			}

			if err := e.keys.Delete(ctx, k); err != nil {
				return republished, errors.WrapFatal(err, "DelayedPublisher", "Scan",
					fmt.Sprintf("clear key index for %s", k))
			}
		}

		if err := e.times.Delete(ctx, bucket.storeKey); err != nil {
			return republished, errors.WrapFatal(err, "DelayedPublisher", "Scan",
				fmt.Sprintf("clear time bucket %s", bucket.storeKey))
		}
	}

	return republished, nil
}

// activeDeadline reads the current deadline for key from the key index.
func (e *Engine) activeDeadline(ctx context.Context, key string) (int64, bool, error) {
	value, err := e.keys.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, errors.ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, errors.WrapFatal(err, "DelayedPublisher", "activeDeadline",
			fmt.Sprintf("read key index for %s", key))
	}

	t, err := decodeKeyDeadline(value)
	if err != nil {
		return 0, false, errors.WrapFatal(err, "DelayedPublisher", "activeDeadline", "decode deadline")
	}
	return t, true, nil
}

// register records a future deadline for key in both indexes.
func (e *Engine) register(ctx context.Context, key string, t int64) error {
	storeKey := encodeDeadline(t)

	var members []string
	existing, err := e.times.Get(ctx, storeKey)
	switch {
	case err == nil:
		members, err = decodeBucket(existing)
		if err != nil {
			return errors.WrapFatal(err, "DelayedPublisher", "register", "decode bucket")
		}
	case stderrors.Is(err, errors.ErrKeyNotFound):
		// New bucket
	default:
		return errors.WrapFatal(err, "DelayedPublisher", "register", "read time bucket")
	}

	members = append(members, key)
	encoded, err := encodeBucket(members)
	if err != nil {
		return errors.WrapFatal(err, "DelayedPublisher", "register", "encode bucket")
	}

	if err := e.times.Put(ctx, storeKey, encoded); err != nil {
		return errors.WrapFatal(err, "DelayedPublisher", "register", "write time bucket")
	}
	if err := e.keys.Put(ctx, key, encodeKeyDeadline(t)); err != nil {
		return errors.WrapFatal(err, "DelayedPublisher", "register", "write key index")
	}
	return nil
}

// cancel removes key's deadline from both indexes.
func (e *Engine) cancel(ctx context.Context, key string, t int64) error {
	if err := e.removeFromBucket(ctx, t, key); err != nil {
		return err
	}
	if err := e.keys.Delete(ctx, key); err != nil {
		return errors.WrapFatal(err, "DelayedPublisher", "cancel", "clear key index")
	}
	return nil
}

// removeFromBucket takes key out of the bucket at deadline t, deleting the
// bucket when it empties. Empty buckets are never stored.
func (e *Engine) removeFromBucket(ctx context.Context, t int64, key string) error {
	storeKey := encodeDeadline(t)

	existing, err := e.times.Get(ctx, storeKey)
	if err != nil {
		if stderrors.Is(err, errors.ErrKeyNotFound) {
			return nil
		}
		return errors.WrapFatal(err, "DelayedPublisher", "removeFromBucket", "read time bucket")
	}

	members, err := decodeBucket(existing)
	if err != nil {
		return errors.WrapFatal(err, "DelayedPublisher", "removeFromBucket", "decode bucket")
	}

	filtered := members[:0]
	for _, m := range members {
		if m != key {
			filtered = append(filtered, m)
		}
	}

	if len(filtered) == 0 {
		if err := e.times.Delete(ctx, storeKey); err != nil {
			return errors.WrapFatal(err, "DelayedPublisher", "removeFromBucket", "delete empty bucket")
		}
		return nil
	}

	encoded, err := encodeBucket(filtered)
	if err != nil {
		return errors.WrapFatal(err, "DelayedPublisher", "removeFromBucket", "encode bucket")
	}
	if err := e.times.Put(ctx, storeKey, encoded); err != nil {
		return errors.WrapFatal(err, "DelayedPublisher", "removeFromBucket", "write time bucket")
	}
	return nil
}
