package navigation

import (
	"errors"
	"sort"
	"sync"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
)

// Directory holds the services of one application by id. Proxy navigators
// resolve their service through it on every call, so a service can be
// registered after the navigators that target it were built.
type Directory struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{services: make(map[string]*Service)}
}

// Register adds svc under svc.ID().
func (d *Directory) Register(svc *Service) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.services[svc.ID()]; exists {
		return wayfinder.NewDuplicateIDError("service", svc.ID())
	}
	d.services[svc.ID()] = svc
	return nil
}

// Unregister removes the service with the given id. It does not close it.
func (d *Directory) Unregister(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.services[id]; !exists {
		return false
	}
	delete(d.services, id)
	return true
}

// Lookup returns the service with the given id.
func (d *Directory) Lookup(id string) (*Service, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	svc, ok := d.services[id]
	return svc, ok
}

// Resolve is Lookup with a NotFoundError for unknown ids.
func (d *Directory) Resolve(id string) (*Service, error) {
	if svc, ok := d.Lookup(id); ok {
		return svc, nil
	}
	return nil, wayfinder.NewNotFoundError("service", id, d.IDs())
}

// IDs returns the registered service ids in sorted order.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.services))
	for id := range d.services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes and removes every service.
func (d *Directory) Close() error {
	d.mu.Lock()
	services := d.services
	d.services = make(map[string]*Service)
	d.mu.Unlock()

	var errs []error
	for _, svc := range services {
		errs = append(errs, svc.Close())
	}
	return errors.Join(errs...)
}
