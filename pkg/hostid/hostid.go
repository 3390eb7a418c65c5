// Package hostid derives a stable, app-scoped identifier for this machine.
package hostid

import (
	"sync"

	"github.com/denisbrodbeck/machineid"
)

// AppID scopes the hashed machine id so it cannot be correlated with other apps.
const AppID = "advisor-core"

var (
	once   sync.Once
	cached string
	err    error
)

// ID returns the HMAC of the machine id keyed by AppID. The lookup runs once.
func ID() (string, error) {
	once.Do(func() {
		cached, err = machineid.ProtectedID(AppID)
	})
	return cached, err
}

// Short returns the first 12 characters of ID, or "unknown" when unavailable.
func Short() string {
	id, err := ID()
	if err != nil || id == "" {
		return "unknown"
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
