package session

import (
	"container/list"
	"sync"

	"ai-painter/internal/persist"
)

type Status int

const (
	// StatusLive: created this process lifetime, full context in memory.
	StatusLive Status = iota
	// StatusRestored: reloaded from a snapshot after a restart.
	StatusRestored
	// StatusUnrecoverable: a restoration attempt failed; terminal.
	StatusUnrecoverable
)

// Component is the in-memory side of one interactive message.
type Component struct {
	Status Status
	State  *persist.InteractionState
}

// Registry is a bounded LRU cache of live components keyed by
// interaction id. The store remains the source of truth; eviction only
// forces the next event on that interaction through restoration again.
type Registry struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	items map[string]*list.Element
}

type regEntry struct {
	id   string
	comp *Component
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 256
	}
	return &Registry{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

func (r *Registry) Put(id string, c *Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.items[id]; ok {
		el.Value.(*regEntry).comp = c
		r.ll.MoveToFront(el)
		return
	}
	r.items[id] = r.ll.PushFront(&regEntry{id: id, comp: c})
	if r.ll.Len() > r.cap {
		oldest := r.ll.Back()
		r.ll.Remove(oldest)
		delete(r.items, oldest.Value.(*regEntry).id)
	}
}

func (r *Registry) Get(id string) (*Component, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.items[id]
	if !ok {
		return nil, false
	}
	r.ll.MoveToFront(el)
	return el.Value.(*regEntry).comp, true
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.items[id]; ok {
		r.ll.Remove(el)
		delete(r.items, id)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ll.Len()
}
