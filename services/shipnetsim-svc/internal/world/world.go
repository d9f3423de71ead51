// Package world bundles one named simulation — its network, simulator, and
// ship index — behind a dedicated worker goroutine, and provides a
// thread-safe registry mapping world names to those bundles.
//
// Grounded on the reader-preferring RWMutex idiom of the in-memory cache
// backend this service's stack already uses elsewhere, generalized from a
// byte-value cache to a named-world registry.
package world

import (
	"fmt"
	"sync"

	"shipnetsim/services/shipnetsim-svc/internal/network"
	"shipnetsim/services/shipnetsim-svc/internal/ship"
	"shipnetsim/services/shipnetsim-svc/internal/simulator"
)

// task is a unit of work queued onto a World's dedicated worker goroutine.
type task func()

// World bundles one named simulation and its single-goroutine execution
// context. Every call into Simulator, Network, or the ship index happens on
// World's own worker, so callers never race the simulation loop.
type World struct {
	name      string
	net       network.Network
	sim       *simulator.Simulator
	shipIndex map[string]ship.Ship

	mu   sync.Mutex
	busy bool

	tasks  chan task
	stopCh chan struct{}
}

// New creates a World for name, wired to net, with its worker goroutine
// already running.
func New(name string, net network.Network) *World {
	w := &World{
		name:      name,
		net:       net,
		shipIndex: make(map[string]ship.Ship),
		tasks:     make(chan task, 64),
		stopCh:    make(chan struct{}),
	}
	go w.workerLoop()
	return w
}

func (w *World) workerLoop() {
	for {
		select {
		case t := <-w.tasks:
			t()
		case <-w.stopCh:
			return
		}
	}
}

// Invoke posts fn onto the World's worker and blocks until it has run. This
// is the "post then await" pattern every cross-goroutine call into a World
// uses, so simulator state is only ever touched from its own goroutine.
func (w *World) Invoke(fn func()) {
	done := make(chan struct{})
	w.tasks <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// Stop terminates the worker goroutine. A task already running completes;
// tasks still queued may not run, and tasks submitted after Stop never run.
func (w *World) Stop() {
	close(w.stopCh)
}

// Name returns the world's name.
func (w *World) Name() string { return w.name }

// Network returns the world's network instance.
func (w *World) Network() network.Network { return w.net }

// SetSimulator installs sim as this world's simulator, called once from
// create_environment after construction on the worker.
func (w *World) SetSimulator(sim *simulator.Simulator) {
	w.sim = sim
}

// Simulator returns the world's simulator, or nil if none has been created
// yet.
func (w *World) Simulator() *simulator.Simulator { return w.sim }

// AddShip registers sh in the ship index under its own ID.
func (w *World) AddShip(sh ship.Ship) {
	w.shipIndex[sh.ID()] = sh
}

// ShipByID looks up a ship previously registered with AddShip.
func (w *World) ShipByID(id string) (ship.Ship, bool) {
	sh, ok := w.shipIndex[id]
	return sh, ok
}

// Ships returns every ship registered in this world's index.
func (w *World) Ships() []ship.Ship {
	out := make([]ship.Ship, 0, len(w.shipIndex))
	for _, sh := range w.shipIndex {
		out = append(out, sh)
	}
	return out
}

// IsBusy reports whether the world is mid-command. Only the Registry should
// call SetBusy; callers read this to decide whether to queue or reject a new
// command.
func (w *World) IsBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// SetBusy updates the busy flag.
func (w *World) SetBusy(busy bool) {
	w.mu.Lock()
	w.busy = busy
	w.mu.Unlock()
}

// Registry is a thread-safe map of world name to *World, guarded by a single
// reader-preferring lock. Its critical sections never call into Simulator or
// Network code: every accessor returns a copy of the pointer bundle (a
// *World, itself safe for concurrent use via Invoke) and releases the lock
// before the caller does anything with it.
type Registry struct {
	mu     sync.RWMutex
	worlds map[string]*World
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{worlds: make(map[string]*World)}
}

// AddOrUpdate inserts or replaces the world stored under name.
func (r *Registry) AddOrUpdate(name string, w *World) {
	r.mu.Lock()
	r.worlds[name] = w
	r.mu.Unlock()
}

// Remove deletes the world stored under name, if any, stopping its worker.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	w, ok := r.worlds[name]
	delete(r.worlds, name)
	r.mu.Unlock()

	if ok {
		w.Stop()
	}
}

// Get returns the world stored under name, or false if absent.
func (r *Registry) Get(name string) (*World, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.worlds[name]
	return w, ok
}

// Contains reports whether a world is registered under name.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.worlds[name]
	return ok
}

// ListNames returns every registered world name, in no particular order.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.worlds))
	for n := range r.worlds {
		names = append(names, n)
	}
	return names
}

// SetBusy updates the busy flag of the world stored under name. It is a
// no-op if the world does not exist.
func (r *Registry) SetBusy(name string, busy bool) {
	r.mu.RLock()
	w, ok := r.worlds[name]
	r.mu.RUnlock()
	if ok {
		w.SetBusy(busy)
	}
}

// IsBusy reports the busy flag of the world stored under name.
func (r *Registry) IsBusy(name string) (bool, error) {
	r.mu.RLock()
	w, ok := r.worlds[name]
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("world: no such world %q", name)
	}
	return w.IsBusy(), nil
}

// GetShipByID looks up a ship by ID within the world stored under name.
func (r *Registry) GetShipByID(name, id string) (ship.Ship, bool, error) {
	r.mu.RLock()
	w, ok := r.worlds[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false, fmt.Errorf("world: no such world %q", name)
	}
	sh, found := w.ShipByID(id)
	return sh, found, nil
}

// ListShips returns every ship registered in the world stored under name.
func (r *Registry) ListShips(name string) ([]ship.Ship, error) {
	r.mu.RLock()
	w, ok := r.worlds[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("world: no such world %q", name)
	}
	return w.Ships(), nil
}

// AddShip registers sh in the world stored under name.
func (r *Registry) AddShip(name string, sh ship.Ship) error {
	r.mu.RLock()
	w, ok := r.worlds[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("world: no such world %q", name)
	}
	w.AddShip(sh)
	return nil
}
