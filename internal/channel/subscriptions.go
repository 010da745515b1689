package channel

import "sync"

// SubscriptionSet collects disposers acquired by one component so a
// lifecycle boundary (presence toggle, logout) releases every one of them.
// Leaked listeners are a defect: the channel outlives presence toggles.
type SubscriptionSet struct {
	mu  sync.Mutex
	fns []func()
}

func (s *SubscriptionSet) Add(dispose func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, dispose)
}

// Release invokes and forgets every held disposer. Safe to call multiple
// times and while empty.
func (s *SubscriptionSet) Release() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Len reports held disposers, for tests.
func (s *SubscriptionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
