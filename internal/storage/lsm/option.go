package lsm

import "github.com/cockroachdb/pebble"

type Option func(*options)

type options struct {
	cacheSize    int64
	memTableSize uint64
	bytesPerSync int
}

func defaultOptions() *options {
	return &options{
		cacheSize:    32 << 20,
		memTableSize: 16 << 20,
		bytesPerSync: 1 << 20,
	}
}

func WithCache(size int64) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

func WithMemTableSize(size uint64) Option {
	return func(o *options) {
		o.memTableSize = size
	}
}

func WithBytesPerSync(bytes int) Option {
	return func(o *options) {
		o.bytesPerSync = bytes
	}
}

// pebbleOptions returns the options and the cache reference the caller must
// release once the DB is open.
func (o *options) pebbleOptions() (*pebble.Options, *pebble.Cache) {
	cache := pebble.NewCache(o.cacheSize)
	return &pebble.Options{
		Cache:        cache,
		MemTableSize: o.memTableSize,
		BytesPerSync: o.bytesPerSync,
	}, cache
}
