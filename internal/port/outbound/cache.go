package outbound

import "errors"

// ErrCacheMiss is returned by cache ports when the key is absent.
var ErrCacheMiss = errors.New("cache miss")
