package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/digest"
	"github.com/foxhunt72/bscp/internal/logging"
)

// Checkpoint is the persisted resume state.
type Checkpoint struct {
	Digests  digest.Vector
	Position uint64
	Index    uint64
}

// Backend stores opaque payloads by key.
type Backend interface {
	// Get returns common.ErrorNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes objects in order.
	Put(ctx context.Context, objects ...Object) error
	Close() error
}

type Object struct {
	Key  string
	Data []byte
}

type Store struct {
	backend Backend
	logger  logging.Logger
}

func NewStore(backend Backend, logger logging.Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// Load returns the newest readable checkpoint stored under name, or nil.
func (s *Store) Load(ctx context.Context, name string) *Checkpoint {
	for _, sc := range schemas {
		key := sc.key(name)

		data, err := s.backend.Get(ctx, key)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn(ctx, "checkpoint unreadable", "key", key, "error", err)
			continue
		}

		cp, err := sc.decode(data)
		if err != nil {
			s.logger.Warn(ctx, "checkpoint corrupt", "key", key, "version", sc.version, "error", err)
			continue
		}

		s.logger.Debug(ctx, "checkpoint loaded", "key", key, "version", sc.version,
			"blocks", len(cp.Digests), "position", cp.Position, "index", cp.Index)
		return cp
	}
	return nil
}

// Save writes every schema generation of cp under name.
func (s *Store) Save(ctx context.Context, name string, cp *Checkpoint) error {
	objects := make([]Object, 0, len(schemas))

	// oldest generation first so the preferred one lands last
	for i := len(schemas) - 1; i >= 0; i-- {
		sc := schemas[i]
		data, err := sc.encode(cp)
		if err != nil {
			return fmt.Errorf("encode checkpoint v%d: %w", sc.version, err)
		}
		objects = append(objects, Object{Key: sc.key(name), Data: data})
	}

	if err := s.backend.Put(ctx, objects...); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", name, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
