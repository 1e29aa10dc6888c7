package provider

import "sync"

// Registry caches live provider instances per worker id. It is not
// durable: a worker whose provider is missing is rehydrated by the
// caller from its stored record via GetOrCreate. Mutations on one
// worker never block another.
type Registry struct {
	mu        sync.Mutex
	providers map[string]Provider
	locks     map[string]*sync.Mutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-worker mutex, creating it on first use.
func (r *Registry) lockFor(workerID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[workerID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[workerID] = l
	}
	return l
}

// Get returns the cached provider for workerID.
func (r *Registry) Get(workerID string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[workerID]
	return p, ok
}

// Put registers a provider for workerID, replacing any previous one.
func (r *Registry) Put(workerID string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[workerID] = p
}

// GetOrCreate returns the cached provider or builds, caches, and
// returns a new one. Concurrent calls for the same worker run create
// at most once.
func (r *Registry) GetOrCreate(workerID string, create func() (Provider, error)) (Provider, error) {
	lock := r.lockFor(workerID)
	lock.Lock()
	defer lock.Unlock()

	if p, ok := r.Get(workerID); ok {
		return p, nil
	}
	p, err := create()
	if err != nil {
		return nil, err
	}
	r.Put(workerID, p)
	return p, nil
}

// Remove drops the provider for workerID after running its Cleanup.
func (r *Registry) Remove(workerID string) {
	lock := r.lockFor(workerID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	p, ok := r.providers[workerID]
	delete(r.providers, workerID)
	delete(r.locks, workerID)
	r.mu.Unlock()

	if ok {
		p.Cleanup()
	}
}

// Len reports how many providers are cached.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}
