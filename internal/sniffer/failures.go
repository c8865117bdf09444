package sniffer

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/sniff/internal/log"
)

// failureLog logs the first decode failure of each kind per window at debug
// level and counts the repeats. The count is logged when the window expires.
type failureLog struct {
	seen       *cache.Cache
	suppressed func(kind string, n int)
}

// newFailureLog opens windows of the given length; sweep is how often the
// cache janitor evicts expired windows.
func newFailureLog(window, sweep time.Duration) *failureLog {
	f := &failureLog{seen: cache.New(window, sweep), suppressed: logSuppressed}
	f.seen.OnEvicted(func(key string, v interface{}) {
		if n, ok := v.(int); ok && n > 0 {
			f.suppressed(key, n)
		}
	})
	return f
}

func logSuppressed(kind string, n int) {
	log.GetLogger().WithFields(map[string]interface{}{
		"kind":       kind,
		"suppressed": n,
	}).Debug("repeated decode failures suppressed")
}

// allow reports whether err is the first of its kind in the current window.
func (f *failureLog) allow(err error) bool {
	key := failureKey(err)
	if _, ierr := f.seen.IncrementInt(key, 1); ierr == nil {
		return false
	}

	// No live window. An expired one the janitor has not swept yet would be
	// overwritten by Add without eviction, so flush it first.
	f.seen.DeleteExpired()
	if f.seen.Add(key, 0, cache.DefaultExpiration) == nil {
		return true
	}
	_, _ = f.seen.IncrementInt(key, 1)
	return false
}

func (f *failureLog) report(err error) {
	logger := log.GetLogger()
	if !logger.IsDebugEnabled() || !f.allow(err) {
		return
	}
	logger.WithFields(errorFields(err)).WithError(err).Debug("decode failed")
}

func failureKey(err error) string {
	fields := errorFields(err)
	return fmt.Sprintf("%s/%v/%v", Outcome(err), fields["layer"], fields["code"])
}
