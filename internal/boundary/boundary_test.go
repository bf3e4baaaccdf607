package boundary

import (
	"testing"
	"time"

	"github.com/moritzcube/cubed/internal/codec"
	"github.com/moritzcube/cubed/internal/engine"
	"github.com/moritzcube/cubed/internal/eventbus"
	"github.com/moritzcube/cubed/internal/registry"
)

func TestCommandSubmitEnqueues(t *testing.T) {
	commands := make(engine.CommandQueue, 1)
	api := New(commands, registry.New(), eventbus.New(), 0x123456)

	m := codec.NewMessage(codec.MsgSetTemperature, 0x123456, 0x0B3554, 0)
	api.CommandSubmit(m)

	select {
	case cmd := <-commands:
		if cmd.Message != m {
			t.Error("enqueued command does not match submitted message")
		}
	case <-time.After(time.Second):
		t.Fatal("command was not enqueued")
	}
}

func TestStateQueryReflectsRegistry(t *testing.T) {
	reg := registry.New()
	reg.MergeThermostatStatus(0x8FFE9, codec.ThermostatStatus{DesiredTemperature: 16}, 200, time.Now())

	api := New(make(engine.CommandQueue, 1), reg, eventbus.New(), 0x123456)
	snapshot := api.StateQuery()

	if snap, ok := snapshot[0x8FFE9]; !ok || snap.DesiredTemperature != 16 {
		t.Errorf("snapshot = %+v", snapshot)
	}
}

func TestSubscribeEventDelivers(t *testing.T) {
	bus := eventbus.New()
	api := New(make(engine.CommandQueue, 1), registry.New(), bus, 0x123456)

	var got any
	api.SubscribeEvent(eventbus.TopicThermostatStateRecv, func(p any) { got = p })

	bus.Publish(eventbus.TopicThermostatStateRecv, "x")
	if got != "x" {
		t.Errorf("got = %v, want x", got)
	}
}

func TestSubmitSetTemperatureEnqueuesEncodedCommand(t *testing.T) {
	commands := make(engine.CommandQueue, 1)
	api := New(commands, registry.New(), eventbus.New(), 0x123456)

	if err := api.SubmitSetTemperature(0x0B3554, 0, 21.3, codec.ModeManual); err != nil {
		t.Fatalf("SubmitSetTemperature: %v", err)
	}

	cmd := <-commands
	if cmd.Message.MsgType != codec.MsgSetTemperature {
		t.Errorf("MsgType = %v, want SetTemperature", cmd.Message.MsgType)
	}
	if cmd.Message.SenderID != 0x123456 {
		t.Errorf("SenderID = %#x, want the cube id 0x123456", cmd.Message.SenderID)
	}
	if cmd.Message.ReceiverID != 0x0B3554 {
		t.Errorf("ReceiverID = %#x, want 0x0B3554", cmd.Message.ReceiverID)
	}
}
