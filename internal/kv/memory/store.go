// Package memory provides an in-process kv.Store.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

// Store keeps strings and lists in maps guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	lists  map[string][]string
	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		values: make(map[string][]byte),
		lists:  make(map[string][]string),
	}
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	if _, isList := s.lists[key]; isList {
		return nil, false, wrongType(key)
	}
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set implements kv.Store.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	delete(s.lists, key)
	s.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var removed int64
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			removed++
			continue
		}
		if _, ok := s.lists[key]; ok {
			delete(s.lists, key)
			removed++
		}
	}
	return removed, nil
}

// PushEnd implements kv.Store.
func (s *Store) PushEnd(_ context.Context, key string, items ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.listForWrite(key)
	if err != nil {
		return 0, err
	}
	list = append(list, items...)
	s.lists[key] = list
	return int64(len(list)), nil
}

// PushStart implements kv.Store. Items are inserted one at a time, so the
// last item ends up at the head, matching LPUSH.
func (s *Store) PushStart(_ context.Context, key string, items ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.listForWrite(key)
	if err != nil {
		return 0, err
	}
	head := make([]string, 0, len(items)+len(list))
	for i := len(items) - 1; i >= 0; i-- {
		head = append(head, items[i])
	}
	list = append(head, list...)
	s.lists[key] = list
	return int64(len(list)), nil
}

// PopStart implements kv.Store.
func (s *Store) PopStart(_ context.Context, key string, count int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.listForWrite(key)
	if err != nil {
		return nil, err
	}
	n := min(max(count, 0), len(list))
	out := append([]string(nil), list[:n]...)
	s.storeList(key, list[n:])
	return out, nil
}

// PopEnd implements kv.Store. Items come back tail first, matching RPOP.
func (s *Store) PopEnd(_ context.Context, key string, count int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.listForWrite(key)
	if err != nil {
		return nil, err
	}
	n := min(max(count, 0), len(list))
	out := make([]string, 0, n)
	for i := len(list) - 1; i >= len(list)-n; i-- {
		out = append(out, list[i])
	}
	s.storeList(key, list[:len(list)-n])
	return out, nil
}

// Range implements kv.Store.
func (s *Store) Range(_ context.Context, key string, start, end int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if _, isValue := s.values[key]; isValue {
		return nil, wrongType(key)
	}
	list := s.lists[key]
	size := int64(len(list))
	if start < 0 {
		start = max(size+start, 0)
	}
	if end < 0 {
		end = size + end
	}
	end = min(end, size-1)
	if start > end || start >= size {
		return []string{}, nil
	}
	return append([]string(nil), list[start:end+1]...), nil
}

// Length implements kv.Store.
func (s *Store) Length(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if _, isValue := s.values[key]; isValue {
		return 0, wrongType(key)
	}
	return int64(len(s.lists[key])), nil
}

// ScanKeys implements kv.Store. Keys are returned sorted.
func (s *Store) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	keys := make([]string, 0)
	collect := func(key string) {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	for key := range s.values {
		collect(key)
	}
	for key := range s.lists {
		collect(key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close marks the store unusable; later calls fail with ErrStoreUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memory store closed: %w", audit.ErrStoreUnavailable)
	}
	return nil
}

func (s *Store) listForWrite(key string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if _, isValue := s.values[key]; isValue {
		return nil, wrongType(key)
	}
	return s.lists[key], nil
}

// storeList drops empty lists so Length and ScanKeys match Redis.
func (s *Store) storeList(key string, list []string) {
	if len(list) == 0 {
		delete(s.lists, key)
		return
	}
	s.lists[key] = list
}

func wrongType(key string) error {
	return fmt.Errorf("key %q holds the wrong kind of value", key)
}
