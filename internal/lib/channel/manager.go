package channel

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mealdash/ordersync/internal/config"
)

// TokenSource supplies the bearer credential carried in the realtime
// handshake. Defined here so the channel layer does not depend on any
// particular session store.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Manager opens and tracks subscriptions. It is an explicitly owned
// object: the connection configuration lives here, not in package-level
// state, so lifecycle and test isolation are explicit.
//
// The transport mode is decided once per Manager from configuration.
// Individual realtime subscriptions may still degrade to polling for
// their own lifetime when their transport fails.
type Manager struct {
	cfg         *config.SyncConfig
	realtimeURL string
	dialer      Dialer
	tokens      TokenSource

	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewManager creates a subscription manager. dialer may be nil when
// realtime transport is disabled.
func NewManager(cfg *config.SyncConfig, realtimeURL string, dialer Dialer, tokens TokenSource) *Manager {
	return &Manager{
		cfg:         cfg,
		realtimeURL: realtimeURL,
		dialer:      dialer,
		tokens:      tokens,
		subs:        make(map[string]*Subscription),
	}
}

// Open creates a subscription for the given resource and topic. If a
// subscription already exists for the topic it is disposed first: at most
// one subscription is active per topic at any time.
//
// poll is the REST read equivalent of the topic, used when realtime
// transport is disabled or unavailable. h receives updates and classified
// errors; after the returned subscription's Close, neither is invoked
// again.
func (m *Manager) Open(resourceID, topic string, poll PollFunc, h Handler) *Subscription {
	if h == nil {
		h = HandlerFuncs{}
	}

	m.mu.Lock()
	prev := m.subs[topic]
	delete(m.subs, topic)
	m.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sub := &Subscription{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		Topic:      topic,
		cfg:        m.cfg,
		dialer:     m.dialer,
		url:        m.realtimeURL,
		tokens:     m.tokens,
		handler:    h,
		poll:       poll,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	if m.cfg.RealtimeEnabled && m.dialer != nil {
		sub.mode = Realtime
		sub.status = StatusConnecting
	} else {
		sub.mode = Polling
		sub.status = StatusPolling
	}

	sub.onClose = func() { m.remove(topic, sub) }

	m.mu.Lock()
	m.subs[topic] = sub
	m.mu.Unlock()

	go sub.run()

	return sub
}

// remove deregisters a subscription if it is still the one tracked for
// the topic.
func (m *Manager) remove(topic string, sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[topic] == sub {
		delete(m.subs, topic)
	}
}

// Len returns the number of active subscriptions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// CloseAll disposes every active subscription.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subs = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
