package config

import "time"

// CacheConfig defines settings for the item read cache.  Only the three item
// reads (list, search, get) are ever cached; writes bump a generation counter
// stored under Prefix so every earlier entry stops being served.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads the CACHE_* variables.  The cache stays off unless
// CACHE_ENABLED is set and a Redis client is available.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", false),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
