// Package engine implements the protocol state logic that reacts to
// decoded MAX!/Moritz frames, replies where the protocol calls for a
// reply, and maintains the latest per-device snapshot other parts of
// the system read from.
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/moritzcube/cubed/internal/codec"
	"github.com/moritzcube/cubed/internal/eventbus"
	"github.com/moritzcube/cubed/internal/registry"
)

// Transport is the subset of transport.Session the engine depends on.
// Declaring it as an interface here (rather than importing the
// transport package directly) keeps the engine testable against a
// fake without a real serial port.
type Transport interface {
	Send(line string)
	Receive(timeout time.Duration) (line string, ok bool)
}

// Command is one pending outbound message awaiting encode and
// transmission, submitted through CommandQueue. Message must already
// carry a fully populated payload (built via one of the codec
// package's Encode functions); the engine only encodes the header and
// transmits, it does not construct payloads itself.
type Command struct {
	Message *codec.Message
}

// CommandQueue is the external-to-engine command channel: any number
// of producers, a single consumer (the engine loop).
type CommandQueue chan Command

// Config configures one Engine instance.
type Config struct {
	// CubeID is this host's own device id, used as sender_id on every
	// message the engine originates and as the receiver_id a re-pair
	// PairPing must target.
	CubeID uint32

	// ActAsCube, ActAsWallThermostat and ActAsShutterContact are the
	// pairing-role flags. With none set, broadcast PairPings are
	// ignored; a re-pair PairPing addressed to CubeID is answered
	// regardless of these flags.
	ActAsCube           bool
	ActAsWallThermostat bool
	ActAsShutterContact bool

	// PollInterval is the per-iteration period. The source runs this
	// loop at roughly 300 ms.
	PollInterval time.Duration

	// ReceiveTimeout and CommandTimeout bound the two queue pops each
	// iteration performs.
	ReceiveTimeout time.Duration
	CommandTimeout time.Duration

	// PairBudgetThresholdMs is the minimum transport budget required
	// before the engine will send a PairPong.
	PairBudgetThresholdMs int
}

// DefaultConfig returns the configuration the source uses absent
// overrides.
func DefaultConfig() Config {
	return Config{
		CubeID:                0x123456,
		ActAsCube:             true,
		PollInterval:          300 * time.Millisecond,
		ReceiveTimeout:        50 * time.Millisecond,
		CommandTimeout:        50 * time.Millisecond,
		PairBudgetThresholdMs: 2000,
	}
}

// BudgetProbe reports whether the transport currently has at least
// the given airtime budget. The engine never inspects the transport's
// budget directly (it is transport-owned state); it only asks this
// yes/no question before deciding to enqueue a gated send.
type BudgetProbe func(minMs int) bool

// Engine runs the per-iteration receive/dispatch/command loop.
type Engine struct {
	cfg       Config
	transport Transport
	registry  *registry.Registry
	bus       *eventbus.Bus
	commands  CommandQueue
	budget    BudgetProbe

	counter uint8

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New constructs an Engine. budget may be nil, in which case
// budget-gated sends (PairPong) are always attempted. cmd/cubed
// passes nil, so the daemon sends every PairPong without a budget
// check; transport.Session exposes no budget probe.
func New(cfg Config, transport Transport, reg *registry.Registry, bus *eventbus.Bus, commands CommandQueue, budget BudgetProbe) *Engine {
	if budget == nil {
		budget = func(int) bool { return true }
	}
	return &Engine{
		cfg:       cfg,
		transport: transport,
		registry:  reg,
		bus:       bus,
		commands:  commands,
		budget:    budget,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the engine's loop goroutine.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.loop()
}

// Stop signals the loop to exit and waits for it.
func (e *Engine) Stop() {
	close(e.stopChan)
	e.wg.Wait()
}

func (e *Engine) loop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopChan:
			return
		default:
		}

		e.receiveOnce()
		e.commandOnce()

		time.Sleep(e.cfg.PollInterval)
	}
}

// receiveOnce pops and dispatches at most one inbound frame.
func (e *Engine) receiveOnce() {
	line, ok := e.transport.Receive(e.cfg.ReceiveTimeout)
	if !ok {
		return
	}

	line, rssi := splitSignalStrength(line)

	m, err := codec.Decode(line)
	if err != nil {
		log.Printf("engine: dropping unparseable frame %q: %v", line, err)
		return
	}
	m.SignalStrength = &rssi

	e.dispatch(m, rssi)
}

// commandOnce pops and transmits at most one queued command.
func (e *Engine) commandOnce() {
	select {
	case cmd := <-e.commands:
		line := codec.Encode(cmd.Message)
		e.transport.Send(line)
	case <-time.After(e.cfg.CommandTimeout):
	}
}

func (e *Engine) dispatch(m *codec.Message, rssi uint8) {
	switch m.MsgType {
	case codec.MsgPairPing:
		e.handlePairPing(m)
	case codec.MsgTimeInformation:
		e.handleTimeInformation(m)
	case codec.MsgThermostatState:
		e.handleThermostatState(m, rssi)
	case codec.MsgAck:
		e.handleAck(m, rssi)
	default:
		log.Printf("engine: dropping unhandled variant %s from %06X", m.MsgType, m.SenderID)
	}
}

func (e *Engine) handlePairPing(m *codec.Message) {
	e.bus.Publish(eventbus.TopicDevicePairRequest, m)

	anyRole := e.cfg.ActAsCube || e.cfg.ActAsWallThermostat || e.cfg.ActAsShutterContact

	switch {
	case m.IsBroadcast():
		if !anyRole {
			return
		}
	case m.ReceiverID == e.cfg.CubeID:
		// re-pair after battery change, addressed to us
	default:
		// addressed to a different cube entirely
		return
	}

	if !e.budget(e.cfg.PairBudgetThresholdMs) {
		return
	}

	resp := codec.NewMessage(codec.MsgPairPong, e.cfg.CubeID, m.SenderID, m.GroupID)
	resp.Counter = 1
	codec.EncodePairPong(resp, codec.DeviceCube)

	e.transport.Send(codec.Encode(resp))
	e.bus.Publish(eventbus.TopicDevicePairAccepted, resp)
}

func (e *Engine) handleTimeInformation(m *codec.Message) {
	if len(m.Payload) != 0 || m.ReceiverID != e.cfg.CubeID {
		return
	}

	resp := codec.NewMessage(codec.MsgTimeInformation, e.cfg.CubeID, m.SenderID, m.GroupID)
	resp.Counter = e.nextCounter()
	now := time.Now()
	codec.EncodeTimeInformation(resp, &now)

	// Not budget-gated: the source does not gate this reply, unlike
	// PairPong.
	e.transport.Send(codec.Encode(resp))
}

func (e *Engine) handleThermostatState(m *codec.Message, rssi uint8) {
	status, err := decodeThermostatStatePayload(m)
	if err != nil {
		log.Printf("engine: malformed ThermostatState from %06X: %v", m.SenderID, err)
		return
	}

	e.registry.MergeThermostatStatus(m.SenderID, status, rssi, time.Now())
	e.bus.Publish(eventbus.TopicThermostatStateRecv, m)
}

func (e *Engine) handleAck(m *codec.Message, rssi uint8) {
	if m.ReceiverID != e.cfg.CubeID {
		return
	}

	payload, err := m.DecodedPayload()
	if err != nil {
		log.Printf("engine: malformed Ack from %06X: %v", m.SenderID, err)
		return
	}
	info := payload.(codec.AckInfo)
	if info.State != "ok" {
		return
	}

	e.bus.Publish(eventbus.TopicThermostatStateRecv, m)

	if info.ThermostatStatus != nil {
		e.registry.MergeThermostatStatus(m.SenderID, *info.ThermostatStatus, rssi, time.Now())
	}
}

func (e *Engine) nextCounter() uint8 {
	e.counter++
	return e.counter
}

func decodeThermostatStatePayload(m *codec.Message) (codec.ThermostatStatus, error) {
	payload, err := m.DecodedPayload()
	if err != nil {
		return codec.ThermostatStatus{}, err
	}
	return payload.(codec.ThermostatStatus), nil
}

// splitSignalStrength separates the trailing RSSI byte the
// transceiver appends to every received frame from the frame itself.
// If line is too short to carry a tail, rssi is reported as 0.
func splitSignalStrength(line string) (frame string, rssi uint8) {
	if len(line) < 2 {
		return line, 0
	}
	tail := line[len(line)-2:]
	body := line[:len(line)-2]

	var v uint64
	for _, c := range tail {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint64(c - '0')
		case c >= 'A' && c <= 'F':
			v |= uint64(c-'A') + 10
		case c >= 'a' && c <= 'f':
			v |= uint64(c-'a') + 10
		default:
			return line, 0
		}
	}
	return body, uint8(v)
}
