package redis

import (
	"context"

	"github.com/timtro-cloud/timtro/internal/db"
)

// HMGet returns the values of the given hash fields. Missing fields yield
// empty strings at their positions, keeping the result aligned with fields.
func (s *Store) HMGet(ctx context.Context, key string, fields ...string) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	cmd := s.b().Hmget().Key(key).Field(fields...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpHMGet, Err: err}
	}

	out := make([]string, len(fields))
	for i := range raw {
		if i >= len(out) {
			break
		}
		if v, err := raw[i].ToString(); err == nil {
			out[i] = v
		}
	}
	return out, nil
}

// HIncrBy atomically increments a hash field by delta.
func (s *Store) HIncrBy(ctx context.Context, key, field string, delta int64) error {
	cmd := s.b().Hincrby().Key(key).Field(field).Increment(delta).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpHIncrBy, Err: err}
	}
	return nil
}
