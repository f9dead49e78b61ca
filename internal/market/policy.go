package market

import "math/rand"

// CrashPolicy decides whether a cooldown-eligible tick crashes the market.
// The engine enforces the cooldown gate before consulting the policy, so an
// aggressive policy can never fire two crashes inside the window.
type CrashPolicy interface {
	Crash() bool
}

// randomCrash crashes with a fixed percent chance per eligible tick.
type randomCrash struct {
	chancePercent int
}

func NewRandomCrash(chancePercent int) CrashPolicy {
	if chancePercent < 0 {
		chancePercent = 0
	}
	if chancePercent > 100 {
		chancePercent = 100
	}
	return randomCrash{chancePercent: chancePercent}
}

func (p randomCrash) Crash() bool {
	return rand.Intn(100) < p.chancePercent
}

// NeverCrash disables crashes entirely.
type NeverCrash struct{}

func (NeverCrash) Crash() bool { return false }

// AlwaysCrash fires on every eligible tick. Only useful in tests.
type AlwaysCrash struct{}

func (AlwaysCrash) Crash() bool { return true }
