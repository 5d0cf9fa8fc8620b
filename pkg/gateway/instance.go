package gateway

import (
	"github.com/shmkit/itsgate/pkg/directory/store"
	"github.com/shmkit/itsgate/pkg/gateway/wire"
)

// Instance bundles one monitoring backend: the directory store the gateway
// queries and the time-series connection parameters it hands out to
// authorized clients.
type Instance struct {
	Directory  *store.Store
	TimeSeries wire.ConnectionInfo
}

// Instances maps the selector clients send in the login request to the
// backend serving them.
type Instances map[string]*Instance

// Get returns the instance for the given selector.
func (m Instances) Get(selector string) (*Instance, bool) {
	inst, ok := m[selector]
	return inst, ok
}
