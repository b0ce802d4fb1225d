package session

import (
	"errors"
	"fmt"
	"log"

	"ai-painter/internal/persist"
)

// ErrUnrecoverable marks a component that cannot be restored. The
// upgrade is one-way: once unrecoverable, every later event on the
// same component gets the same answer without touching the store.
var ErrUnrecoverable = errors.New("session unrecoverable")

// Restorer lazily rehydrates cold components from the store on the
// first event that reaches them after a restart.
type Restorer struct {
	store *persist.Store
	reg   *Registry
}

func NewRestorer(store *persist.Store, reg *Registry) *Restorer {
	return &Restorer{store: store, reg: reg}
}

// Track registers a component created this process lifetime.
func (r *Restorer) Track(st *persist.InteractionState) {
	r.reg.Put(st.ID, &Component{Status: StatusLive, State: st})
}

// ResolveFromMessage extracts the embedded identifier from message
// text and resolves the component. Parse failure is unrecoverable.
func (r *Restorer) ResolveFromMessage(text string) (*Component, error) {
	id, ok := ExtractID(text)
	if !ok {
		return nil, fmt.Errorf("%w: no session identifier in message", ErrUnrecoverable)
	}
	return r.Resolve(id)
}

// Resolve returns the live component for id, loading the snapshot when
// the component is cold. A failed load is cached as unrecoverable.
func (r *Restorer) Resolve(id string) (*Component, error) {
	if c, ok := r.reg.Get(id); ok {
		if c.Status == StatusUnrecoverable {
			return nil, fmt.Errorf("%w: %s", ErrUnrecoverable, id)
		}
		return c, nil
	}
	st, err := r.store.Load(id)
	if err != nil {
		if !errors.Is(err, persist.ErrNotFound) {
			log.Printf("session: failed to restore %s: %v", id, err)
		}
		r.reg.Put(id, &Component{Status: StatusUnrecoverable})
		return nil, fmt.Errorf("%w: %s", ErrUnrecoverable, id)
	}
	c := &Component{Status: StatusRestored, State: st}
	r.reg.Put(id, c)
	log.Printf("session: restored interaction %s (kind=%s, outputs=%d)", id, st.Kind, len(st.Outputs))
	return c, nil
}
