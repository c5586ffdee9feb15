package risk

import (
	"sort"
	"sync"
)

// SafeMode is a set of active degradation reasons. A non-empty set means no
// live orders go out. It is owned by the cycle driver and passed by handle,
// so multiple causes can overlap without one recovery masking another.
type SafeMode struct {
	mu      sync.Mutex
	reasons map[string]struct{}
}

func NewSafeMode() *SafeMode {
	return &SafeMode{reasons: make(map[string]struct{})}
}

// Enter activates a reason. It reports whether the reason was newly added;
// re-entering an active reason is a no-op.
func (s *SafeMode) Enter(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reasons[reason]; ok {
		return false
	}
	s.reasons[reason] = struct{}{}
	return true
}

// Exit clears a reason. It reports whether the reason was active; exiting
// an inactive reason is a no-op.
func (s *SafeMode) Exit(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reasons[reason]; !ok {
		return false
	}
	delete(s.reasons, reason)
	return true
}

// Active reports whether any reason is currently set.
func (s *SafeMode) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reasons) > 0
}

// Reasons returns the active reasons in stable order, for logging.
func (s *SafeMode) Reasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.reasons))
	for reason := range s.reasons {
		out = append(out, reason)
	}
	sort.Strings(out)
	return out
}
