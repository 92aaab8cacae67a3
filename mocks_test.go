package session_test

import (
	"context"
	"sync"
	"time"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/mock"
)

type testIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// MockBackend implements session.Backend[testIdentity]
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ResolveIdentity(ctx context.Context) (testIdentity, error) {
	args := m.Called(ctx)
	identity, _ := args.Get(0).(testIdentity)
	return identity, args.Error(1)
}

func (m *MockBackend) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) Login(ctx context.Context, payload session.LoginPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockBackend) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockLoginPayload implements session.LoginPayload
type MockLoginPayload struct {
	Identifier      string
	Password        string
	ExtendedSession bool
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

func (m MockLoginPayload) GetExtendedSession() bool {
	return m.ExtendedSession
}

type recordingSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event session.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []session.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.ActivityEventType, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.EventType)
	}
	return out
}

func (s *recordingSink) count(eventType session.ActivityEventType) int {
	total := 0
	for _, t := range s.types() {
		if t == eventType {
			total++
		}
	}
	return total
}

type recordingMetrics struct {
	mu          sync.Mutex
	started     int
	finished    int
	failed      int
	joined      int
	transitions []string
	bootstraps  []session.Status
}

func (m *recordingMetrics) RefreshStarted(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) RefreshFinished(_ string, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished++
	if err != nil {
		m.failed++
	}
}

func (m *recordingMetrics) WaiterJoined(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined++
}

func (m *recordingMetrics) StateChanged(_ string, from, to session.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
}

func (m *recordingMetrics) BootstrapFinished(_ string, status session.Status, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bootstraps = append(m.bootstraps, status)
}

// stateRecorder collects every state delivered to a subscriber.
type stateRecorder struct {
	mu     sync.Mutex
	states []session.State[testIdentity]
}

func (r *stateRecorder) observe(state session.State[testIdentity]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) statuses() []session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Status, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st.Status)
	}
	return out
}
