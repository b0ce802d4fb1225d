package quota

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestLedger_RollingAdmission(t *testing.T) {
	l := NewLedger(nil)
	user := int64(1)
	l.SetTier(user, TierLimited) // capacity 2

	if !l.Admit(user, t0) {
		t.Fatalf("fresh user should be admitted")
	}
	l.Charge(user, t0)
	if !l.Admit(user, t0.Add(time.Hour)) {
		t.Fatalf("one slot free, should be admitted")
	}
	l.Charge(user, t0.Add(time.Hour))

	if l.Admit(user, t0.Add(2*time.Hour)) {
		t.Fatalf("both slots occupied, should be denied")
	}
	// First charge expires 8h after t0.
	if !l.Admit(user, t0.Add(8*time.Hour+time.Minute)) {
		t.Fatalf("first slot expired, should be admitted")
	}
}

func TestLedger_AvailableAt(t *testing.T) {
	l := NewLedger(nil)
	user := int64(2)
	l.SetTier(user, TierLimited)

	if _, busy := l.AvailableAt(user, t0); busy {
		t.Fatalf("fresh user should have a free slot")
	}
	l.Charge(user, t0)
	l.Charge(user, t0.Add(time.Hour))

	at, busy := l.AvailableAt(user, t0.Add(2*time.Hour))
	if !busy {
		t.Fatalf("all slots occupied, expected a wait time")
	}
	if want := t0.Add(SlotExpiry); !at.Equal(want) {
		t.Fatalf("want %v, got %v", want, at)
	}
}

func TestLedger_UnlimitedAlwaysAdmits(t *testing.T) {
	l := NewLedger(nil)
	user := int64(3)
	l.SetTier(user, TierUnlimited)
	for i := 0; i < 20; i++ {
		if !l.Admit(user, t0.Add(time.Duration(i)*time.Minute)) {
			t.Fatalf("unlimited tier denied at charge %d", i)
		}
		l.Charge(user, t0.Add(time.Duration(i)*time.Minute))
	}
	if _, busy := l.AvailableAt(user, t0.Add(time.Hour)); busy {
		t.Fatalf("unlimited tier should never report a wait time")
	}
}

func TestLedger_TierChangePreservesCharges(t *testing.T) {
	l := NewLedger(nil)
	user := int64(4)
	// Default tier is standard (capacity 3).
	l.Charge(user, t0)
	l.Charge(user, t0.Add(time.Minute))

	l.SetTier(user, TierStrict) // capacity 1
	if l.Admit(user, t0.Add(time.Hour)) {
		t.Fatalf("existing charges exceed new capacity, should be denied")
	}
	if !l.Admit(user, t0.Add(8*time.Hour+2*time.Minute)) {
		t.Fatalf("both charges expired, should be admitted under strict")
	}
}

func TestLedger_Reset(t *testing.T) {
	l := NewLedger(nil)
	user := int64(5)
	l.SetTier(user, TierStrict)
	l.Charge(user, t0)
	if l.Admit(user, t0.Add(time.Minute)) {
		t.Fatalf("slot occupied, should be denied")
	}
	l.Reset(user)
	if !l.Admit(user, t0.Add(time.Minute)) {
		t.Fatalf("reset should free all slots")
	}
	if l.TierOf(user) != TierStrict {
		t.Fatalf("reset must not change the tier")
	}
}

func TestLedger_DefaultTier(t *testing.T) {
	l := NewLedger(nil)
	if l.TierOf(99) != TierStandard {
		t.Fatalf("absent user should default to standard")
	}
	// Standard capacity is 3.
	for i := 0; i < 3; i++ {
		if !l.Admit(99, t0) {
			t.Fatalf("charge %d denied under standard", i)
		}
		l.Charge(99, t0)
	}
	if l.Admit(99, t0.Add(time.Minute)) {
		t.Fatalf("fourth charge should be denied under standard")
	}
}

func TestLedger_UsageAccumulation(t *testing.T) {
	l := NewLedger(nil)
	l.RecordUsage(7, "alice", 10, 20, 1)
	l.RecordUsage(7, "alice", 5, 5, 0)

	stats, ok := l.Usage(7)
	if !ok {
		t.Fatalf("usage not recorded")
	}
	if stats.PromptTokens != 15 || stats.OutputTokens != 25 || stats.TotalTokens != 40 {
		t.Fatalf("token totals wrong: %+v", stats)
	}
	if stats.Images != 1 || stats.Requests != 2 {
		t.Fatalf("counters wrong: %+v", stats)
	}
	if stats.FirstUse.IsZero() || stats.LastUse.Before(stats.FirstUse) {
		t.Fatalf("use timestamps wrong: %+v", stats)
	}

	total, users := l.TotalUsage()
	if users != 1 || total.Requests != 2 {
		t.Fatalf("totals wrong: users=%d %+v", users, total)
	}
}

func TestLedger_PersistsAcrossRestart(t *testing.T) {
	p := filepath.Join(t.TempDir(), "usage_stats.json")
	repo, err := NewFileRepository(p)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}

	l := NewLedger(repo)
	l.SetTier(8, TierStrict)
	l.Charge(8, t0)
	l.RecordUsage(8, "bob", 1, 2, 1)

	l2 := NewLedger(repo)
	if l2.TierOf(8) != TierStrict {
		t.Fatalf("tier lost across restart")
	}
	if l2.Admit(8, t0.Add(time.Minute)) {
		t.Fatalf("charge lost across restart")
	}
	stats, ok := l2.Usage(8)
	if !ok || stats.Images != 1 || stats.Username != "bob" {
		t.Fatalf("usage lost across restart: %+v", stats)
	}
}

func TestFileRepository_MalformedStartsFresh(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "usage_stats.json")
	repo, err := NewFileRepository(p)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	users, err := repo.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("malformed file should start fresh, got %+v", users)
	}
}

func TestParseTier(t *testing.T) {
	if tier, err := ParseTier(" Unlimited "); err != nil || tier != TierUnlimited {
		t.Fatalf("parse unlimited: %v %v", tier, err)
	}
	if tier, err := ParseTier("extra"); err != nil || tier != TierExtra {
		t.Fatalf("parse extra: %v %v", tier, err)
	}
	if _, err := ParseTier("gold"); err == nil {
		t.Fatalf("unknown tier should fail")
	}
}
