package quota

import (
	"fmt"
	"strings"
	"time"
)

// SlotExpiry is how long one charge occupies a slot.
const SlotExpiry = 8 * time.Hour

type Tier string

const (
	TierStandard  Tier = "standard"
	TierLimited   Tier = "limited"
	TierStrict    Tier = "strict"
	TierExtra     Tier = "extra"
	TierUnlimited Tier = "unlimited"
)

// slot capacity per tier; TierUnlimited bypasses admission entirely.
var tierCapacity = map[Tier]int{
	TierStandard: 3,
	TierLimited:  2,
	TierStrict:   1,
	TierExtra:    5,
}

// Capacity returns the slot count for the tier. ok is false for
// TierUnlimited, which has no capacity check.
func (t Tier) Capacity() (n int, ok bool) {
	n, ok = tierCapacity[t]
	return n, ok
}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t == TierUnlimited {
		return t, nil
	}
	if _, ok := tierCapacity[t]; !ok {
		return "", fmt.Errorf("unknown tier: %q", s)
	}
	return t, nil
}
