// Package boundary exposes the in-process contract external
// collaborators (an HTTP surface, the SQL persistence layer) use to
// submit commands, query state, and subscribe to events without
// reaching into the engine or transport directly.
package boundary

import (
	"github.com/moritzcube/cubed/internal/codec"
	"github.com/moritzcube/cubed/internal/engine"
	"github.com/moritzcube/cubed/internal/eventbus"
	"github.com/moritzcube/cubed/internal/registry"
)

// API is the collaborator-facing surface described by the protocol
// core's contract: CommandSubmit, StateQuery, SubscribeEvent.
type API struct {
	commands engine.CommandQueue
	registry *registry.Registry
	bus      *eventbus.Bus
	cubeID   uint32
}

// New wires an API over the engine's command queue, the shared
// device registry, and the event bus. All three are owned by
// whatever assembled the engine; the API does not construct them.
// cubeID is the host's own device id, used as sender_id on every
// command this API originates.
func New(commands engine.CommandQueue, reg *registry.Registry, bus *eventbus.Bus, cubeID uint32) *API {
	return &API{commands: commands, registry: reg, bus: bus, cubeID: cubeID}
}

// CommandSubmit enqueues a prepared message for transmission. It
// returns immediately; there is no completion signal here; an
// acknowledgement, if the peer sends one, arrives later on the
// thermostatstate_received topic.
func (a *API) CommandSubmit(msg *codec.Message) {
	a.commands <- engine.Command{Message: msg}
}

// StateQuery returns a consistent snapshot of the whole device
// registry, borrowed under its lock for the duration of the copy.
func (a *API) StateQuery() map[uint32]registry.DeviceSnapshot {
	return a.registry.All()
}

// DeviceState returns a single device's latest snapshot. ok is false
// if the device has never been observed.
func (a *API) DeviceState(deviceID uint32) (registry.DeviceSnapshot, bool) {
	return a.registry.Snapshot(deviceID)
}

// SubscribeEvent registers fn for one of the three event-bus topics.
func (a *API) SubscribeEvent(topic eventbus.Topic, fn eventbus.Handler) {
	a.bus.Subscribe(topic, fn)
}

// SubmitSetTemperature is a convenience wrapper building and
// submitting a SetTemperature command, the most common collaborator
// request.
func (a *API) SubmitSetTemperature(deviceID uint32, groupID uint8, desired float64, mode codec.Mode) error {
	m := codec.NewMessage(codec.MsgSetTemperature, a.cubeID, deviceID, groupID)
	params := codec.SetTemperatureParams{DesiredTemperature: &desired, Mode: &mode}
	if err := codec.EncodeSetTemperature(m, params); err != nil {
		return err
	}
	a.CommandSubmit(m)
	return nil
}
