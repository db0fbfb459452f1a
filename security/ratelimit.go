package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts is the default number of attempts allowed per key per window
	DefaultMaxAttempts = 5

	// DefaultAttemptWindow is the default time window for rate limiting
	DefaultAttemptWindow = 15 * time.Minute

	// DefaultRateLimitCleanupInterval is how often the cleanup goroutine runs
	DefaultRateLimitCleanupInterval = 15 * time.Minute

	// DefaultMaxRateLimitEntries is the maximum number of keys to track
	DefaultMaxRateLimitEntries = 10000
)

// attemptEntry tracks the fixed attempt window for one key
type attemptEntry struct {
	key         string
	count       int       // attempts observed in the current window
	windowStart time.Time // start of the current window
	lastAccess  time.Time // last time this entry was accessed
}

// RateLimiter provides fixed-window attempt limiting keyed by arbitrary
// strings (e.g. "login:<email>"). The call that pushes a key over its
// limit is itself counted and refused, so callers must not grant the
// action that tripped the limit.
//
// Check-and-increment is a single critical section per limiter, so the
// same key checked concurrently from two goroutines cannot double-spend
// an attempt.
type RateLimiter struct {
	entries         map[string]*list.Element // key -> list element
	lruList         *list.List               // LRU list of *attemptEntry
	mu              sync.RWMutex
	maxAttempts     int           // maximum attempts per window
	window          time.Duration // fixed window duration
	maxEntries      int           // maximum number of keys to track
	logger          *slog.Logger
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	// Statistics
	totalBlocked   int64 // total attempts refused
	totalAllowed   int64 // total attempts allowed
	totalEvictions int64 // total LRU evictions
	totalCleanups  int64 // total cleanup operations
}

// NewRateLimiter creates a rate limiter with default settings
func NewRateLimiter(logger *slog.Logger) *RateLimiter {
	return NewRateLimiterWithConfig(DefaultMaxAttempts, DefaultAttemptWindow, DefaultMaxRateLimitEntries, logger)
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration
func NewRateLimiterWithConfig(maxAttempts int, window time.Duration, maxEntries int, logger *slog.Logger) *RateLimiter {
	return newRateLimiterWithCleanupInterval(maxAttempts, window, maxEntries, DefaultRateLimitCleanupInterval, logger)
}

// newRateLimiterWithCleanupInterval creates a rate limiter with custom cleanup interval (for testing)
func newRateLimiterWithCleanupInterval(maxAttempts int, window time.Duration, maxEntries int, cleanupInterval time.Duration, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
		logger.Warn("Invalid maxAttempts, using default", "maxAttempts", maxAttempts)
	}
	if window <= 0 {
		window = DefaultAttemptWindow
		logger.Warn("Invalid window, using default", "window", window)
	}
	if maxEntries < 0 {
		maxEntries = DefaultMaxRateLimitEntries
		logger.Warn("Invalid maxEntries, using default", "maxEntries", maxEntries)
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultRateLimitCleanupInterval
		logger.Warn("Invalid cleanupInterval, using default", "cleanupInterval", cleanupInterval)
	}

	rl := &RateLimiter{
		entries:         make(map[string]*list.Element),
		lruList:         list.New(),
		maxAttempts:     maxAttempts,
		window:          window,
		maxEntries:      maxEntries,
		logger:          logger,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	// Start background cleanup goroutine
	go rl.cleanupLoop()

	logger.Info("Rate limiter initialized",
		"max_attempts", maxAttempts,
		"window", window,
		"max_entries", maxEntries)

	return rl
}

// Allow records an attempt for the key against the limiter's configured
// limit and window. Returns true if the attempt is allowed, false if the
// rate limit is exceeded.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.AllowWithLimit(key, rl.maxAttempts, rl.window)
}

// AllowWithLimit records an attempt for the key against an explicit
// limit and window, overriding the limiter's defaults. The fixed window
// starts at the first attempt and is not slid by later ones; once
// elapsed, the next attempt restarts it with a count of 1.
func (rl *RateLimiter) AllowWithLimit(key string, maxAttempts int, window time.Duration) bool {
	if maxAttempts < 1 {
		maxAttempts = rl.maxAttempts
	}
	if window <= 0 {
		window = rl.window
	}
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, exists := rl.entries[key]; exists {
		// Move to front (most recently used)
		rl.lruList.MoveToFront(elem)
		entry := elem.Value.(*attemptEntry)
		entry.lastAccess = now

		// Window still open: count this attempt and check the limit
		if now.Sub(entry.windowStart) <= window {
			entry.count++
			if entry.count > maxAttempts {
				rl.totalBlocked++
				rl.logger.Warn("Rate limit exceeded",
					"key_hash", HashForLogging(key),
					"attempts_in_window", entry.count,
					"max_attempts", maxAttempts,
					"window", window,
					"total_blocked", rl.totalBlocked)
				return false
			}
			rl.totalAllowed++
			return true
		}

		// Window elapsed: restart it with this attempt
		entry.count = 1
		entry.windowStart = now
		rl.totalAllowed++
		return true
	}

	// Need to create new entry - check if we're at capacity
	if rl.maxEntries > 0 && len(rl.entries) >= rl.maxEntries {
		// Evict least recently used entry
		rl.evictLRU()
	}

	entry := &attemptEntry{
		key:         key,
		count:       1,
		windowStart: now,
		lastAccess:  now,
	}

	// Add to front of LRU list (most recently used)
	elem := rl.lruList.PushFront(entry)
	rl.entries[key] = elem

	rl.totalAllowed++
	rl.logger.Debug("New key tracked for rate limiting",
		"key_hash", HashForLogging(key),
		"total_tracked_keys", len(rl.entries))
	return true
}

// Reset clears the attempt window for a key, e.g. after a successful
// login clears prior failed attempts. Unknown keys are a no-op.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, exists := rl.entries[key]; exists {
		entry := elem.Value.(*attemptEntry)
		delete(rl.entries, entry.key)
		rl.lruList.Remove(elem)
	}
}

// evictLRU removes the least recently used entry from the cache
// Must be called with mutex locked
func (rl *RateLimiter) evictLRU() {
	if rl.lruList.Len() == 0 {
		return
	}

	// Remove from back (least recently used)
	elem := rl.lruList.Back()
	if elem != nil {
		entry := elem.Value.(*attemptEntry)
		delete(rl.entries, entry.key)
		rl.lruList.Remove(elem)
		rl.totalEvictions++

		rl.logger.Debug("Rate limiter LRU eviction",
			"key_hash", HashForLogging(entry.key),
			"total_evictions", rl.totalEvictions,
			"current_entries", len(rl.entries))
	}
}

// cleanupLoop periodically removes inactive entries to prevent memory leaks
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// Cleanup removes entries that haven't been accessed recently
// Entries are considered stale if their last access is older than 2x the window
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	maxIdleTime := rl.window * 2
	removed := 0

	var next *list.Element
	for elem := rl.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*attemptEntry)

		if now.Sub(entry.lastAccess) > maxIdleTime {
			delete(rl.entries, entry.key)
			rl.lruList.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		rl.totalCleanups++
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.entries),
			"total_cleanups", rl.totalCleanups)
	}
}

// Stop gracefully stops the cleanup goroutine
// Safe to call multiple times concurrently
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
		rl.logger.Debug("Rate limiter stopped")
	})
}

// RateLimitStats holds rate limiter statistics for monitoring
type RateLimitStats struct {
	CurrentEntries int     // Current number of tracked keys
	MaxEntries     int     // Maximum allowed entries (0 = unlimited)
	TotalBlocked   int64   // Total attempts refused
	TotalAllowed   int64   // Total attempts allowed
	TotalEvictions int64   // Total number of LRU evictions
	TotalCleanups  int64   // Total number of cleanup operations
	MaxAttempts    int     // Maximum attempts per window
	Window         string  // Window duration
	MemoryPressure float64 // Percentage of max capacity used (0-100)
}

// GetStats returns current rate limiter statistics for monitoring and alerting
func (rl *RateLimiter) GetStats() RateLimitStats {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	stats := RateLimitStats{
		CurrentEntries: len(rl.entries),
		MaxEntries:     rl.maxEntries,
		TotalBlocked:   rl.totalBlocked,
		TotalAllowed:   rl.totalAllowed,
		TotalEvictions: rl.totalEvictions,
		TotalCleanups:  rl.totalCleanups,
		MaxAttempts:    rl.maxAttempts,
		Window:         rl.window.String(),
	}

	if rl.maxEntries > 0 {
		stats.MemoryPressure = float64(stats.CurrentEntries) / float64(rl.maxEntries) * 100.0
	}

	return stats
}
