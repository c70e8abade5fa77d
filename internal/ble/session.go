package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/cloudctl/internal/ble/protocol"
)

// Session owns one connection to a cloud and its command characteristic.
// Writes are fire-and-forget: nothing is queued, acknowledged or retried.
type Session struct {
	id string

	mu        sync.Mutex
	conn      Connection
	char      Characteristic
	connected bool
	onLost    func(id string)
}

// Connect opens a session to p: it connects and discovers the command
// characteristic. A single attempt is made; on failure nothing is retried.
func Connect(ctx context.Context, adapter Adapter, p Peripheral) (*Session, error) {
	conn, err := adapter.Connect(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("ble: connect to %s: %w: %w", p.ID, ErrConnectionFailed, err)
	}

	char, err := conn.DiscoverCharacteristic(ServiceUUID, CharacteristicUUID)
	if err != nil {
		_ = conn.Disconnect()
		return nil, fmt.Errorf("ble: discover characteristic on %s: %w: %w", p.ID, ErrConnectionFailed, err)
	}

	s := &Session{
		id:        p.ID,
		conn:      conn,
		char:      char,
		connected: true,
	}
	conn.OnDisconnect(s.linkLost)

	slog.Info("[BLE] connected", "id", p.ID, "name", p.Name)
	return s, nil
}

// ID returns the peripheral id this session is bound to.
func (s *Session) ID() string {
	return s.id
}

// Connected reports whether the link is still up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// OnLost registers a callback for links dropped by the peripheral or the OS.
// It is not called for Disconnect.
func (s *Session) OnLost(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLost = fn
}

// Subscribe installs a standing notification subscription. Each payload is
// handed to onMessage as text.
func (s *Session) Subscribe(onMessage func(text string)) error {
	s.mu.Lock()
	char := s.char
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return fmt.Errorf("ble: subscribe %s: %w", s.id, ErrNotConnected)
	}
	err := char.Subscribe(func(data []byte) {
		onMessage(string(data))
	})
	if err != nil {
		return fmt.Errorf("ble: subscribe %s: %w", s.id, err)
	}
	return nil
}

// Write sends a raw token without response.
func (s *Session) Write(token string) error {
	s.mu.Lock()
	char := s.char
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return fmt.Errorf("ble: write %q to %s: %w", token, s.id, ErrNotConnected)
	}
	if err := char.Write([]byte(token)); err != nil {
		return fmt.Errorf("ble: write %q to %s: %w: %w", token, s.id, ErrWriteFailed, err)
	}
	slog.Debug("[BLE] sent", "id", s.id, "command", token)
	return nil
}

// Send encodes and writes a command.
func (s *Session) Send(cmd protocol.Command) error {
	return s.Write(protocol.Encode(cmd))
}

// RequestCurrentState asks the cloud to report its state.
func (s *Session) RequestCurrentState() error {
	return s.Send(protocol.GetState{})
}

// Disconnect cancels the connection. Disconnecting a closed session is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.connected = false
	conn := s.conn
	s.mu.Unlock()

	if err := conn.Disconnect(); err != nil {
		return fmt.Errorf("ble: disconnect %s: %w: %w", s.id, ErrDisconnectFailed, err)
	}
	slog.Info("[BLE] disconnected", "id", s.id)
	return nil
}

// linkLost is the transport's disconnect callback.
func (s *Session) linkLost() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	fn := s.onLost
	s.mu.Unlock()

	slog.Warn("[BLE] link lost", "id", s.id)
	if fn != nil {
		fn(s.id)
	}
}
