package coordinator

import "sync/atomic"

// Provider names used for breakers, logs and status reporting.
const (
	ProviderNews   = "news"
	ProviderMarket = "market"
)

// Breaker is a one-way enabled flag. Once tripped it stays open for the
// lifetime of its Coordinator.
type Breaker struct {
	name    string
	enabled atomic.Bool
	onTrip  func(name, reason string)
}

func newBreaker(name string, enabled bool, onTrip func(name, reason string)) *Breaker {
	b := &Breaker{name: name, onTrip: onTrip}
	b.enabled.Store(enabled)
	return b
}

// Name of the guarded provider.
func (b *Breaker) Name() string { return b.name }

// Enabled reports whether calls may still go out.
func (b *Breaker) Enabled() bool { return b.enabled.Load() }

// Trip disables the provider. Only the call that flips the flag returns true
// and fires the trip callback.
func (b *Breaker) Trip(reason string) bool {
	if !b.enabled.CompareAndSwap(true, false) {
		return false
	}
	if b.onTrip != nil {
		b.onTrip(b.name, reason)
	}
	return true
}
