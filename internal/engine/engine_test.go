package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/moritzcube/cubed/internal/codec"
	"github.com/moritzcube/cubed/internal/eventbus"
	"github.com/moritzcube/cubed/internal/registry"
)

// fakeTransport is an in-memory stand-in for transport.Session, good
// enough to drive the engine's dispatch logic without a real port.
type fakeTransport struct {
	mu      sync.Mutex
	inbound []string
	sent    []string
}

func (f *fakeTransport) Receive(timeout time.Duration) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return "", false
	}
	line := f.inbound[0]
	f.inbound = f.inbound[1:]
	return line, true
}

func (f *fakeTransport) Send(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, line)
}

func (f *fakeTransport) lastSent() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return "", false
	}
	return f.sent[len(f.sent)-1], true
}

func newTestEngine(tr *fakeTransport) (*Engine, *registry.Registry, *eventbus.Bus) {
	reg := registry.New()
	bus := eventbus.New()
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.ReceiveTimeout = time.Millisecond
	cfg.CommandTimeout = time.Millisecond
	e := New(cfg, tr, reg, bus, make(CommandQueue, 4), nil)
	return e, reg, bus
}

func TestSplitSignalStrength(t *testing.T) {
	frame, rssi := splitSignalStrength("Z0F61046008FFE90000000019002000CAA0")
	if frame != "Z0F61046008FFE90000000019002000CA" {
		t.Errorf("frame = %q", frame)
	}
	if rssi != 0xA0 {
		t.Errorf("rssi = %#x, want 0xA0", rssi)
	}
}

func TestHandleThermostatStateUpdatesRegistryAndPublishes(t *testing.T) {
	tr := &fakeTransport{inbound: []string{"Z0F61046008FFE90000000019002000CAA0"}}
	e, reg, bus := newTestEngine(tr)

	var published *codec.Message
	bus.Subscribe(eventbus.TopicThermostatStateRecv, func(p any) { published = p.(*codec.Message) })

	e.receiveOnce()

	snap, ok := reg.Snapshot(0x8FFE9)
	if !ok {
		t.Fatal("expected device 0x8FFE9 in registry")
	}
	if snap.DesiredTemperature != 16.0 {
		t.Errorf("DesiredTemperature = %v, want 16.0", snap.DesiredTemperature)
	}
	if snap.SignalStrength != 0xA0 {
		t.Errorf("SignalStrength = %#x, want 0xA0", snap.SignalStrength)
	}
	if published == nil {
		t.Error("expected thermostatstate_received to fire")
	}
}

func TestHandlePairPingBroadcastSendsPairPong(t *testing.T) {
	// PairPing, broadcast (receiver 000000), sender 0B3554, no
	// payload.
	tr := &fakeTransport{inbound: []string{"Z0A0004000B35540000000000"}}
	e, _, bus := newTestEngine(tr)

	var accepted bool
	bus.Subscribe(eventbus.TopicDevicePairAccepted, func(any) { accepted = true })

	e.receiveOnce()

	sent, ok := tr.lastSent()
	if !ok {
		t.Fatal("expected a PairPong to be sent")
	}
	m, err := codec.Decode(sent)
	if err != nil {
		t.Fatalf("Decode(%q): %v", sent, err)
	}
	if m.MsgType != codec.MsgPairPong {
		t.Errorf("MsgType = %v, want PairPong", m.MsgType)
	}
	if m.ReceiverID != 0x0B3554 {
		t.Errorf("ReceiverID = %#x, want 0x0B3554", m.ReceiverID)
	}
	if !accepted {
		t.Error("expected device_pair_accepted to fire")
	}
}

func TestHandlePairPingIgnoredWhenNoRoleFlags(t *testing.T) {
	tr := &fakeTransport{inbound: []string{"Z0A0004000B35540000000000"}}
	reg := registry.New()
	bus := eventbus.New()
	cfg := DefaultConfig()
	cfg.ActAsCube = false
	e := New(cfg, tr, reg, bus, make(CommandQueue, 4), nil)

	e.receiveOnce()

	if _, ok := tr.lastSent(); ok {
		t.Error("expected no PairPong when no pairing role is active")
	}
}

func TestHandlePairPingGatedByBudget(t *testing.T) {
	tr := &fakeTransport{inbound: []string{"Z0A0004000B35540000000000"}}
	reg := registry.New()
	bus := eventbus.New()
	cfg := DefaultConfig()
	e := New(cfg, tr, reg, bus, make(CommandQueue, 4), func(int) bool { return false })

	e.receiveOnce()

	if _, ok := tr.lastSent(); ok {
		t.Error("expected no PairPong when budget probe refuses")
	}
}

func TestHandleTimeInformationRequestReplies(t *testing.T) {
	// TimeInformation, empty payload, addressed to the default cube id.
	tr := &fakeTransport{inbound: []string{"Z0A0004031234561234560000"}}
	e, _, _ := newTestEngine(tr)

	e.receiveOnce()

	sent, ok := tr.lastSent()
	if !ok {
		t.Fatal("expected a TimeInformation reply")
	}
	m, err := codec.Decode(sent)
	if err != nil {
		t.Fatalf("Decode(%q): %v", sent, err)
	}
	if m.MsgType != codec.MsgTimeInformation {
		t.Errorf("MsgType = %v, want TimeInformation", m.MsgType)
	}
	if len(m.Payload) != 5 {
		t.Errorf("Payload len = %d, want 5", len(m.Payload))
	}
}

func TestHandleAckOkMergesThermostatStatus(t *testing.T) {
	tr := &fakeTransport{inbound: []string{"Z0EB902020B3554123456000119000BA0"}}
	e, reg, bus := newTestEngine(tr)

	var published bool
	bus.Subscribe(eventbus.TopicThermostatStateRecv, func(any) { published = true })

	e.receiveOnce()

	if !published {
		t.Error("expected thermostatstate_received to fire for ok-Ack")
	}
	snap, ok := reg.Snapshot(0x0B3554)
	if !ok {
		t.Fatal("expected sender registered from Ack tail")
	}
	if snap.DesiredTemperature != 5.5 {
		t.Errorf("DesiredTemperature = %v, want 5.5", snap.DesiredTemperature)
	}
}

func TestHandleOpaqueVariantDropped(t *testing.T) {
	// WakeUp (0x44), opaque, no structured payload.
	tr := &fakeTransport{inbound: []string{"Z0C0000440B355412345600AA0000"}}
	e, reg, _ := newTestEngine(tr)

	e.receiveOnce()

	if len(reg.All()) != 0 {
		t.Error("opaque variant must not populate the registry")
	}
}
