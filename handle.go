package cvcweb

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// StoreHandle lazily opens the store on first use and hands the same *Store
// to every later caller. Concurrent first callers share one in-flight open.
// A failed open is not remembered, so the next Get tries again.
type StoreHandle struct {
	open  func() (*Store, error)
	group singleflight.Group

	mu    sync.Mutex
	store *Store
}

// NewStoreHandle returns a handle that calls open when the store is first needed.
func NewStoreHandle(open func() (*Store, error)) *StoreHandle {
	return &StoreHandle{open: open}
}

func (h *StoreHandle) cached() *Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store
}

// Get returns the store, opening it if needed.
func (h *StoreHandle) Get(ctx context.Context) (*Store, error) {
	if s := h.cached(); s != nil {
		return s, nil
	}
	ch := h.group.DoChan("store", func() (any, error) {
		if s := h.cached(); s != nil {
			return s, nil
		}
		s, err := h.open()
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.store = s
		h.mu.Unlock()
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	}
}

// Close closes the store if it was opened.
func (h *StoreHandle) Close() error {
	h.mu.Lock()
	s := h.store
	h.store = nil
	h.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
