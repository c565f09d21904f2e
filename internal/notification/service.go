package notification

import "sync"

// Notifier is the port handed to callers that need to surface
// user-facing notices (import drop counts, broken Rate-As references).
// The validation core itself never notifies; it returns structured
// results and the HTTP layer pushes through this interface.
type Notifier interface {
	Notify(message string)
}

// Service is the in-memory Notifier used by the costing service; the
// frontend drains it via the gateway.
type Service struct {
	mu            sync.Mutex
	notifications []string
}

func NewService() *Service {
	return &Service{notifications: make([]string, 0)}
}

func (s *Service) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, message)
}

func (s *Service) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notifications
	s.notifications = make([]string, 0)
	return out
}
