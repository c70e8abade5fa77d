// Package bletest provides an in-memory BLE transport for tests.
package bletest

import (
	"context"
	"fmt"
	"sync"

	"github.com/chaz8081/cloudctl/internal/ble"
)

// Characteristic records writes and allows subscribing.
type Characteristic struct {
	mu           sync.Mutex
	writes       []string
	callback     func([]byte)
	WriteErr     error
	SubscribeErr error
}

func (c *Characteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *Characteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}
	c.callback = cb
	return nil
}

// Writes returns a copy of every token written so far.
func (c *Characteristic) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	copy(out, c.writes)
	return out
}

// Reset forgets recorded writes.
func (c *Characteristic) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
}

// SetWriteErr makes subsequent writes fail with err (nil restores them).
func (c *Characteristic) SetWriteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WriteErr = err
}

// Notify delivers a notification to the subscriber, if any.
func (c *Characteristic) Notify(text string) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb([]byte(text))
	}
}

// Subscribed reports whether a notification callback is installed.
func (c *Characteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback != nil
}

// Conn simulates a BLE connection.
type Conn struct {
	Char          *Characteristic
	DiscoverErr   error
	DisconnectErr error

	// DropOnWatch makes the link drop as soon as a disconnect callback is
	// installed, before the caller can do anything else with the connection.
	DropOnWatch bool

	mu           sync.Mutex
	disconnectCb func()
	disconnected bool
}

// NewConn returns a connection exposing the cloud characteristic.
func NewConn() *Conn {
	return &Conn{Char: &Characteristic{}}
}

func (c *Conn) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	if c.DiscoverErr != nil {
		return nil, c.DiscoverErr
	}
	if serviceUUID != ble.ServiceUUID || charUUID != ble.CharacteristicUUID {
		return nil, fmt.Errorf("bletest: unknown characteristic %s/%s", serviceUUID, charUUID)
	}
	return c.Char, nil
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return c.DisconnectErr
}

func (c *Conn) OnDisconnect(cb func()) {
	c.mu.Lock()
	c.disconnectCb = cb
	drop := c.DropOnWatch
	c.mu.Unlock()
	if drop && cb != nil {
		cb()
	}
}

// Disconnected reports whether Disconnect was called.
func (c *Conn) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// SimulateDisconnect fires the link-loss callback as a transport would.
func (c *Conn) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Adapter simulates the BLE adapter. Advertised peripherals are reported on
// every scan, after which Scan blocks until its context ends.
type Adapter struct {
	mu          sync.Mutex
	state       ble.AdapterState
	stateErr    error
	stateCb     func(ble.AdapterState)
	advertised  []ble.Peripheral
	osConnected []ble.Peripheral
	scanErr     error
	connectErr  map[string]error
	discoverErr map[string]error
	dropOnWatch map[string]bool
	conns       map[string]*Conn
	scans       int
	connects    int
	scanning    int
}

// NewAdapter returns a powered-on adapter advertising the given peripherals.
func NewAdapter(advertised ...ble.Peripheral) *Adapter {
	return &Adapter{
		state:       ble.StatePoweredOn,
		advertised:  advertised,
		connectErr:  make(map[string]error),
		discoverErr: make(map[string]error),
		dropOnWatch: make(map[string]bool),
		conns:       make(map[string]*Conn),
	}
}

func (a *Adapter) State(_ context.Context) (ble.AdapterState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, a.stateErr
}

func (a *Adapter) OnStateChange(cb func(ble.AdapterState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateCb = cb
}

func (a *Adapter) Scan(ctx context.Context, serviceUUID string, found func(ble.Peripheral)) error {
	a.mu.Lock()
	a.scans++
	a.scanning++
	adv := append([]ble.Peripheral(nil), a.advertised...)
	scanErr := a.scanErr
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.scanning--
		a.mu.Unlock()
	}()

	for _, p := range adv {
		found(p)
	}
	if scanErr != nil {
		return scanErr
	}
	<-ctx.Done()
	return nil
}

func (a *Adapter) ConnectedPeripherals(_ context.Context) ([]ble.Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ble.Peripheral(nil), a.osConnected...), nil
}

func (a *Adapter) Connect(_ context.Context, id string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects++
	if err := a.connectErr[id]; err != nil {
		return nil, err
	}
	conn := NewConn()
	conn.DiscoverErr = a.discoverErr[id]
	conn.DropOnWatch = a.dropOnWatch[id]
	a.conns[id] = conn
	return conn, nil
}

// SetState changes the adapter state and notifies the observer.
func (a *Adapter) SetState(s ble.AdapterState) {
	a.mu.Lock()
	a.state = s
	cb := a.stateCb
	a.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// SetStateErr makes State fail, as for a missing adapter.
func (a *Adapter) SetStateErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateErr = err
}

// SetScanErr makes every scan fail after reporting advertised peripherals.
func (a *Adapter) SetScanErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanErr = err
}

// SetOSConnected sets the peripherals the OS already holds links to.
func (a *Adapter) SetOSConnected(ps ...ble.Peripheral) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.osConnected = ps
}

// FailConnect makes connecting to id fail with err.
func (a *Adapter) FailConnect(id string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr[id] = err
}

// FailDiscover makes characteristic discovery on id fail with err.
func (a *Adapter) FailDiscover(id string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discoverErr[id] = err
}

// DropAfterConnect makes the next connections to id lose their link right
// after the transport's disconnect hook is armed. Pass false to stop.
func (a *Adapter) DropAfterConnect(id string, drop bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropOnWatch[id] = drop
}

// Conn returns the most recent connection made to id.
func (a *Adapter) Conn(id string) *Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[id]
}

// Scans returns how many scans were started.
func (a *Adapter) Scans() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scans
}

// Scanning returns how many scans are still running.
func (a *Adapter) Scanning() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

// Connects returns how many connect attempts were made.
func (a *Adapter) Connects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

// Compile-time checks.
var (
	_ ble.Adapter        = (*Adapter)(nil)
	_ ble.Connection     = (*Conn)(nil)
	_ ble.Characteristic = (*Characteristic)(nil)
)
