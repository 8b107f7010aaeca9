package memcache

import (
	"context"
	"encoding/json"
	"time"
)

// GetJSON reads key and decodes it into v. It reports false on a miss and
// when the stored value is not valid JSON for v.
func GetJSON(ctx context.Context, s *Storage, key string, v any) bool {
	data, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		CodecErrors.WithLabelValues("decode").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to decode memcache value")
		return false
	}
	return true
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, s *Storage, key string, v any, expiration time.Duration) bool {
	data, err := json.Marshal(v)
	if err != nil {
		CodecErrors.WithLabelValues("encode").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode memcache value")
		return false
	}
	return s.Set(ctx, key, data, expiration)
}
