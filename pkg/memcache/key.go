package memcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxKeyLength is the longest key memcached accepts.
const MaxKeyLength = 250

// Key builds a namespaced key from parts.
// Format: prefix:part1:part2
//
// Keys memcached would reject (longer than MaxKeyLength, or containing
// whitespace or control characters) are replaced by the prefix and the
// SHA-256 of the full key, so distinct inputs stay distinct. A prefix that
// cannot appear in a key itself is folded into the hash.
//
// Example:
//
//	site1:page:/node/1?page=2
func (s *Storage) Key(parts ...string) string {
	return buildKey(s.keyPrefix, parts...)
}

func buildKey(prefix string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if prefix != "" {
		segments = append(segments, prefix)
	}
	segments = append(segments, parts...)
	key := strings.Join(segments, ":")

	if validKey(key) {
		return key
	}

	sum := sha256.Sum256([]byte(key))
	hashed := hex.EncodeToString(sum[:])
	if prefix != "" && validKey(prefix) && len(prefix)+1+len(hashed) <= MaxKeyLength {
		hashed = prefix + ":" + hashed
	}
	return hashed
}

func validKey(key string) bool {
	if key == "" || len(key) > MaxKeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		if c := key[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}
