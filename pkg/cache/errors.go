package cache

import "errors"

// ErrCacheMiss is returned by Get when the key is absent or expired. It is
// an expected condition, not a failure.
var ErrCacheMiss = errors.New("cache miss")
