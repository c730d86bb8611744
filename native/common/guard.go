package common

import (
	"errors"
	"sync/atomic"
)

var ErrReentrantCall = errors.New("reentrant call")

// ReentrancyGuard rejects nested entry into guarded sections. The zero value
// is ready to use.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// Enter marks the guard busy and returns the function that releases it. A
// second Enter before release fails with ErrReentrantCall.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if !g.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.entered.Store(false) }, nil
}

// Busy reports whether a guarded section is executing.
func (g *ReentrancyGuard) Busy() bool {
	return g.entered.Load()
}
