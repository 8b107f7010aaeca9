// Package settings loads the process-wide settings the storage and the page
// cache annotator are configured from. Settings are read once at startup
// from a YAML file, overridden from the environment, validated, and then
// handed to the components that need them.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the root of the settings file.
type Settings struct {
	// Memcache is nil when the file has no memcache section, which is the
	// normal state for environments without a cache cluster.
	Memcache *Memcache `yaml:"memcache"`

	Performance Performance `yaml:"performance"`

	Logging Logging `yaml:"logging"`
}

// Memcache is the cache cluster configuration.
type Memcache struct {
	// Servers maps "host:port" to a status. Status values are reserved and
	// not interpreted; numbers and bin names ("default") are both accepted.
	Servers map[string]any `yaml:"servers" validate:"omitempty,dive,keys,server_addr,endkeys"`

	// KeyPrefix namespaces every key this application stores. It must be
	// usable inside a memcache key: no whitespace or control characters.
	KeyPrefix string `yaml:"key_prefix" validate:"omitempty,max=128,key_prefix"`

	// Driver is the registered driver name. Empty means "memcached".
	Driver string `yaml:"driver" validate:"omitempty,max=64"`

	// PersistentID shares one driver handle between storages opened with
	// the same id.
	PersistentID string `yaml:"persistent_id" validate:"omitempty,max=64"`
}

// DriverName returns the configured driver, defaulting to "memcached".
func (m *Memcache) DriverName() string {
	if m == nil || m.Driver == "" {
		return "memcached"
	}
	return m.Driver
}

// Performance holds page cache settings.
type Performance struct {
	Cache CacheSettings `yaml:"cache"`
}

// CacheSettings groups the cache.* performance settings.
type CacheSettings struct {
	Page PageCache `yaml:"page"`
}

// PageCache holds the cache.page.* settings.
type PageCache struct {
	// MaxAge is the maximum page cache age in seconds. Zero disables
	// proxy caching of pages.
	MaxAge int `yaml:"max_age" validate:"gte=0"`
}

// PageMaxAge returns cache.page.max_age as a duration.
func (p Performance) PageMaxAge() time.Duration {
	return time.Duration(p.Cache.Page.MaxAge) * time.Second
}

// Logging configures the zerolog setup.
type Logging struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads settings from path, applies environment overrides and
// validates the result. An empty path yields settings built from the
// environment alone.
func Load(path string) (*Settings, error) {
	s := &Settings{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	if err := s.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := Validate(s); err != nil {
		return nil, err
	}

	return s, nil
}

// ApplyEnv overrides settings from environment variables:
//
//	MEMCACHE_SERVERS        comma separated host:port list (status 1)
//	MEMCACHE_KEY_PREFIX     key prefix
//	MEMCACHE_DRIVER         driver name
//	MEMCACHE_PERSISTENT_ID  shared handle id
//	PAGE_CACHE_MAX_AGE      cache.page.max_age in seconds
//	LOG_LEVEL               debug, info, warn or error
//	LOG_PRETTY              true for console output
//
// Any MEMCACHE_* variable creates the memcache section if it is missing.
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	if v := getenv("MEMCACHE_SERVERS"); v != "" {
		servers := make(map[string]any)
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				servers[addr] = 1
			}
		}
		s.memcache().Servers = servers
	}
	if v := getenv("MEMCACHE_KEY_PREFIX"); v != "" {
		s.memcache().KeyPrefix = v
	}
	if v := getenv("MEMCACHE_DRIVER"); v != "" {
		s.memcache().Driver = v
	}
	if v := getenv("MEMCACHE_PERSISTENT_ID"); v != "" {
		s.memcache().PersistentID = v
	}

	if v := getenv("PAGE_CACHE_MAX_AGE"); v != "" {
		maxAge, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PAGE_CACHE_MAX_AGE: %w", err)
		}
		s.Performance.Cache.Page.MaxAge = maxAge
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		s.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse LOG_PRETTY: %w", err)
		}
		s.Logging.Pretty = pretty
	}

	return nil
}

func (s *Settings) memcache() *Memcache {
	if s.Memcache == nil {
		s.Memcache = &Memcache{}
	}
	return s.Memcache
}

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid settings")
