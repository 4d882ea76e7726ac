package redisstate

import (
	"context"
	"sync"
	"time"
)

// FakeStore is an in-memory Store for tests: a single sync.Mutex guards the
// value, expiry and list maps, with expiry evaluated lazily on read.
type FakeStore struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
	lists   map[string][]string
	now     func() time.Time
}

// NewFakeStore returns an empty fake store using the real wall clock.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
		lists:   make(map[string][]string),
		now:     time.Now,
	}
}

// SetClockForTest overrides the clock used to evaluate TTL expiry.
func (f *FakeStore) SetClockForTest(now func() time.Time) {
	f.now = now
}

func (f *FakeStore) expired(key string) bool {
	deadline, ok := f.expires[key]
	if !ok {
		return false
	}
	return f.now().After(deadline)
}

func (f *FakeStore) IncrWithTTLOnFirst(_ context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.expired(key) {
		delete(f.values, key)
		delete(f.expires, key)
	}

	raw, existed := f.values[key]
	var count int64
	if existed {
		count = parseInt(raw)
	}
	count++
	f.values[key] = formatInt(count)
	if count == 1 && ttl > 0 {
		f.expires[key] = f.now().Add(ttl)
	}
	return count, nil
}

func (f *FakeStore) SetSticky(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	delete(f.expires, key)
	return nil
}

func (f *FakeStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired(key) {
		delete(f.values, key)
		delete(f.expires, key)
		return "", false, nil
	}
	val, ok := f.values[key]
	return val, ok, nil
}

func (f *FakeStore) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	if ttl > 0 {
		f.expires[key] = f.now().Add(ttl)
	} else {
		delete(f.expires, key)
	}
	return nil
}

func (f *FakeStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
		delete(f.expires, key)
	}
	return nil
}

func (f *FakeStore) RPush(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], value)
	return nil
}

// QueueForTest exposes the pushed values of a list key for assertions.
func (f *FakeStore) QueueForTest(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lists[key]))
	copy(out, f.lists[key])
	return out
}

func parseInt(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}
