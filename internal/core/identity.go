package core

import "sync"

// IdentityProvider yields the signed-in identity, "" when signed out.
type IdentityProvider interface {
	CurrentIdentity() string
	// OnIdentityChange registers fn for every later change and returns a
	// function that removes it.
	OnIdentityChange(fn func(identity string)) (cancel func())
}

// IdentitySource is a settable IdentityProvider.
type IdentitySource struct {
	notifyMu  sync.Mutex // serializes Set so listeners see changes in order
	mu        sync.Mutex
	identity  string
	listeners map[int]func(string)
	nextID    int
}

// NewIdentitySource starts with the given identity.
func NewIdentitySource(initial string) *IdentitySource {
	return &IdentitySource{identity: initial, listeners: make(map[int]func(string))}
}

func (s *IdentitySource) CurrentIdentity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *IdentitySource) OnIdentityChange(fn func(identity string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Set changes the identity and notifies listeners when it differs.
// Listeners must not call Set.
func (s *IdentitySource) Set(identity string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.identity == identity {
		s.mu.Unlock()
		return
	}
	s.identity = identity
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
