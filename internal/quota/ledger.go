package quota

import (
	"log"
	"sync"
	"time"
)

// UsageStats accumulates reporting counters per user. They are never
// consulted by admission; the rolling slots alone decide that.
type UsageStats struct {
	Username     string    `json:"username,omitempty"`
	PromptTokens int       `json:"total_prompt_tokens"`
	OutputTokens int       `json:"total_output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	Images       int       `json:"images_generated"`
	Requests     int       `json:"requests_count"`
	FirstUse     time.Time `json:"first_use,omitempty"`
	LastUse      time.Time `json:"last_use,omitempty"`
}

// Entry is the persisted per-user ledger record.
type Entry struct {
	Tier    Tier        `json:"tier,omitempty"`
	Charges []time.Time `json:"charge_timestamps,omitempty"`
	Usage   UsageStats  `json:"usage"`
}

// Repository persists ledger snapshots. Implementations must be safe
// for concurrent use.
type Repository interface {
	Load() (map[int64]Entry, error)
	Save(map[int64]Entry) error
}

// Ledger tracks rolling charge slots and usage per user. Every read
// takes an explicit now so tests can simulate time passage. A user is
// admitted while fewer than their tier's capacity of charges are
// younger than SlotExpiry; this is a soft quota — Admit and Charge are
// deliberately not atomic against each other.
type Ledger struct {
	mu    sync.Mutex
	users map[int64]Entry
	repo  Repository
}

// NewLedger preloads state from repo when one is provided. A missing
// or unreadable snapshot starts the ledger fresh.
func NewLedger(repo Repository) *Ledger {
	l := &Ledger{users: make(map[int64]Entry), repo: repo}
	if repo != nil {
		users, err := repo.Load()
		if err != nil {
			log.Printf("quota: failed to load ledger, starting fresh: %v", err)
		} else if users != nil {
			l.users = users
		}
	}
	return l
}

// TierOf returns the user's tier; absent users are TierStandard.
func (l *Ledger) TierOf(userID int64) Tier {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.users[userID].tierOrDefault()
}

// Admit reports whether the user has a free charge slot at now.
func (l *Ledger) Admit(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.users[userID]
	capacity, ok := e.tierOrDefault().Capacity()
	if !ok {
		return true
	}
	return countActive(e.Charges, now) < capacity
}

// Charge records a use at now. Call only after a successful Admit.
// Expired timestamps are compacted here; reads never mutate.
func (l *Ledger) Charge(userID int64, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.users[userID]
	e.Charges = append(pruneExpired(e.Charges, now), now)
	l.users[userID] = e
	l.persistLocked()
}

// Active counts charges still occupying a slot at now.
func (l *Ledger) Active(userID int64, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return countActive(l.users[userID].Charges, now)
}

// AvailableAt returns the earliest time the next slot frees up.
// ok is false when a slot is already free (or the tier is unlimited).
func (l *Ledger) AvailableAt(userID int64, now time.Time) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.users[userID]
	capacity, capped := e.tierOrDefault().Capacity()
	if !capped {
		return time.Time{}, false
	}
	var active []time.Time
	for _, ts := range e.Charges {
		if !ts.Before(now.Add(-SlotExpiry)) {
			active = append(active, ts)
		}
	}
	if len(active) < capacity {
		return time.Time{}, false
	}
	earliest := active[0]
	for _, ts := range active[1:] {
		if ts.Before(earliest) {
			earliest = ts
		}
	}
	return earliest.Add(SlotExpiry), true
}

// SetTier overrides the user's tier. Existing charge timestamps are
// kept; only future capacity changes.
func (l *Ledger) SetTier(userID int64, tier Tier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.users[userID]
	e.Tier = tier
	l.users[userID] = e
	l.persistLocked()
}

// Reset clears all charge timestamps for the user.
func (l *Ledger) Reset(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.users[userID]
	e.Charges = nil
	l.users[userID] = e
	l.persistLocked()
}

// RecordUsage accumulates reporting counters for one request.
func (l *Ledger) RecordUsage(userID int64, username string, promptTokens, outputTokens, images int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	e := l.users[userID]
	if e.Usage.FirstUse.IsZero() {
		e.Usage.FirstUse = now
	}
	if username != "" {
		e.Usage.Username = username
	}
	e.Usage.PromptTokens += promptTokens
	e.Usage.OutputTokens += outputTokens
	e.Usage.TotalTokens += promptTokens + outputTokens
	e.Usage.Images += images
	e.Usage.Requests++
	e.Usage.LastUse = now
	l.users[userID] = e
	l.persistLocked()
}

// Usage returns the accumulated stats for one user.
func (l *Ledger) Usage(userID int64) (UsageStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.users[userID]
	return e.Usage, ok
}

// TotalUsage sums stats across all users.
func (l *Ledger) TotalUsage() (total UsageStats, users int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.users {
		total.PromptTokens += e.Usage.PromptTokens
		total.OutputTokens += e.Usage.OutputTokens
		total.TotalTokens += e.Usage.TotalTokens
		total.Images += e.Usage.Images
		total.Requests += e.Usage.Requests
	}
	return total, len(l.users)
}

func (l *Ledger) persistLocked() {
	if l.repo == nil {
		return
	}
	snapshot := make(map[int64]Entry, len(l.users))
	for id, e := range l.users {
		snapshot[id] = e
	}
	if err := l.repo.Save(snapshot); err != nil {
		log.Printf("quota: failed to persist ledger: %v", err)
	}
}

func (e Entry) tierOrDefault() Tier {
	if e.Tier == "" {
		return TierStandard
	}
	return e.Tier
}

func countActive(charges []time.Time, now time.Time) int {
	cutoff := now.Add(-SlotExpiry)
	n := 0
	for _, ts := range charges {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneExpired drops timestamps outside the expiry window. Anything
// still inside the window is always kept.
func pruneExpired(charges []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-SlotExpiry)
	out := charges[:0]
	for _, ts := range charges {
		if !ts.Before(cutoff) {
			out = append(out, ts)
		}
	}
	return out
}
