package device

import (
	"sync"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// Registry holds the devices the bridge manages, keyed by address.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byAddr  map[insteon.Address]*Device
	ordered []*Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byAddr: make(map[insteon.Address]*Device)}
}

// Add registers a device. A device already registered at the address
// is replaced.
func (r *Registry) Add(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byAddr[d.Addr()]; ok {
		for i, existing := range r.ordered {
			if existing == old {
				r.ordered[i] = d
				break
			}
		}
	} else {
		r.ordered = append(r.ordered, d)
	}
	r.byAddr[d.Addr()] = d
}

// Get returns the device at addr, or false.
func (r *Registry) Get(addr insteon.Address) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byAddr[addr]
	return d, ok
}

// All returns the devices in registration order.
func (r *Registry) All() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
