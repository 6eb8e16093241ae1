package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mealdash/ordersync/internal/config"
)

// Subscription is a live binding between a consumer and a topic. It owns
// the transport resources needed to receive updates and is destroyed with
// Close. At most one subscription exists per topic within a Manager.
type Subscription struct {
	ID         string
	ResourceID string
	Topic      string

	cfg    *config.SyncConfig
	dialer Dialer
	url    string
	tokens TokenSource

	handler Handler
	poll    PollFunc
	onClose func()

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	closed atomic.Bool
	done   chan struct{}

	mu     sync.Mutex
	status Status
	mode   TransportMode
	conn   Conn
}

// Status returns the current lifecycle state.
func (s *Subscription) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Mode returns the transport currently in use. A realtime subscription
// that degraded reports Polling.
func (s *Subscription) Mode() TransportMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Done is closed when the subscription's internal loops have fully exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close disposes the subscription: it stops any interval timer, tears down
// the connection, aborts in-flight polls, and renders pending callbacks
// inert. Close is idempotent and safe to call from within a handler
// callback.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()

		s.mu.Lock()
		conn := s.conn
		s.conn = nil
		s.status = StatusClosed
		s.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// run drives the subscription until Close. Realtime subscriptions that
// fail their initial handshake, or exhaust the reconnect budget, degrade
// to polling for the remainder of their lifetime.
func (s *Subscription) run() {
	defer close(s.done)

	if s.mode == Realtime {
		fellBack := s.realtimeLoop()
		if !fellBack || s.ctx.Err() != nil {
			return
		}
		log.Printf("Subscription %s: realtime transport unavailable, falling back to polling", s.Topic)
		s.mu.Lock()
		s.mode = Polling
		s.mu.Unlock()
	}

	s.setStatus(StatusPolling)
	s.pollLoop()
}

// realtimeLoop maintains the persistent connection. It returns true when
// the subscription should degrade to polling and false when it was closed.
func (s *Subscription) realtimeLoop() bool {
	attempts := 0
	connectedOnce := false

	for {
		if s.ctx.Err() != nil {
			return false
		}

		if connectedOnce {
			s.setStatus(StatusReconnecting)
		} else {
			s.setStatus(StatusConnecting)
		}

		conn, err := s.connect()
		if err != nil {
			if s.ctx.Err() != nil {
				return false
			}
			s.emitError(ErrTransport, err)

			// A failed handshake before the first successful connect
			// degrades this subscription to polling.
			if !connectedOnce {
				return true
			}

			attempts++
			if s.cfg.MaxReconnectAttempts > 0 && attempts >= s.cfg.MaxReconnectAttempts {
				log.Printf("Subscription %s: %d consecutive reconnect failures", s.Topic, attempts)
				return true
			}
			if !s.sleep(s.backoff()) {
				return false
			}
			continue
		}

		connectedOnce = true
		attempts = 0

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			conn.Close()
			return false
		}
		s.conn = conn
		s.status = StatusConnected
		s.mu.Unlock()

		s.readLoop(conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()

		if s.ctx.Err() != nil {
			return false
		}
		if !s.sleep(s.backoff()) {
			return false
		}
	}
}

// connect dials the broker and binds the socket to the topic.
func (s *Subscription) connect() (Conn, error) {
	token := ""
	if s.tokens != nil {
		t, err := s.tokens.Token(s.ctx)
		if err != nil {
			// Dial without a credential and let the broker reject it.
			log.Printf("Subscription %s: token lookup failed: %v", s.Topic, err)
		} else {
			token = t
		}
	}

	conn, err := s.dialer.Dial(s.ctx, s.url, token)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(subscribeFrame{Action: "subscribe", Topic: s.Topic}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.Topic, err)
	}

	return conn, nil
}

// readLoop forwards inbound messages until the connection fails or the
// subscription closes. Malformed payloads are logged and dropped without
// terminating the subscription.
func (s *Subscription) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				s.emitError(ErrTransport, err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || len(env.Data) == 0 {
			log.Printf("Subscription %s: dropping malformed message", s.Topic)
			s.emitError(ErrMalformedPayload, fmt.Errorf("malformed message on %s", s.Topic))
			continue
		}
		if env.Topic != "" && env.Topic != s.Topic {
			log.Printf("Subscription %s: dropping message for unexpected topic %s", s.Topic, env.Topic)
			continue
		}

		s.deliver(env.Data)
	}
}

// pollLoop issues an immediate read and then repeats on the configured
// interval until closed.
func (s *Subscription) pollLoop() {
	if s.poll == nil {
		log.Printf("Subscription %s: no poll endpoint configured", s.Topic)
		<-s.ctx.Done()
		return
	}

	s.pollOnce()

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

// pollOnce performs a single bounded read of the resource.
func (s *Subscription) pollOnce() {
	timeout := s.cfg.PollTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	payload, err := s.poll(ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.emitError(ErrPollFailed, err)
		return
	}

	s.deliver(payload)
}

// deliver forwards an update unless the subscription has been closed.
func (s *Subscription) deliver(payload json.RawMessage) {
	if s.closed.Load() {
		return
	}
	s.handler.HandleUpdate(Update{
		ResourceID: s.ResourceID,
		Topic:      s.Topic,
		Payload:    payload,
		ReceivedAt: time.Now(),
	})
}

// emitError surfaces a classified error unless the subscription has been
// closed.
func (s *Subscription) emitError(kind ErrKind, err error) {
	if s.closed.Load() {
		return
	}
	s.handler.HandleError(kind, err)
}

func (s *Subscription) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusClosed {
		return
	}
	s.status = status
}

func (s *Subscription) backoff() time.Duration {
	if s.cfg.ReconnectBackoff > 0 {
		return s.cfg.ReconnectBackoff
	}
	return 3 * time.Second
}

func (s *Subscription) pollInterval() time.Duration {
	if s.cfg.PollInterval > 0 {
		return s.cfg.PollInterval
	}
	return 5 * time.Second
}

// sleep waits for d or until the subscription closes. It returns false if
// the subscription closed while waiting.
func (s *Subscription) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
