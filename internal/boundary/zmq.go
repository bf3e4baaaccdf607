package boundary

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/moritzcube/cubed/internal/codec"
	"github.com/moritzcube/cubed/internal/eventbus"
)

// ZMQConfig configures the ZeroMQ IPC adapter's two sockets: a PUB
// socket broadcasting events, and a PULL socket receiving commands
// from a sibling process (an HTTP surface running out of process).
type ZMQConfig struct {
	EventPubURL string // e.g. "ipc:///tmp/cubed_event"
	CommandURL  string // e.g. "ipc:///tmp/cubed_command"
}

// DefaultZMQConfig returns the adapter's default socket addresses.
func DefaultZMQConfig() ZMQConfig {
	return ZMQConfig{
		EventPubURL: "ipc:///tmp/cubed_event",
		CommandURL:  "ipc:///tmp/cubed_command",
	}
}

// zmqCommand is the wire shape of one command arriving on the PULL
// socket: a device id, group id, desired temperature and mode name,
// which the adapter turns into a SetTemperature command.
type zmqCommand struct {
	DeviceID           uint32  `json:"device_id"`
	GroupID            uint8   `json:"group_id"`
	DesiredTemperature float64 `json:"desired_temperature"`
	Mode               string  `json:"mode"`
}

// ZMQAdapter bridges the in-process API to ZeroMQ IPC sockets so a
// separate process (the HTTP surface, the persistence daemon) can
// submit commands and observe events without linking against the
// engine directly.
type ZMQAdapter struct {
	cfg ZMQConfig
	api *API

	pubSock  zmq4.Socket
	pullSock zmq4.Socket

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewZMQAdapter constructs an adapter bound to api. Start must be
// called before it does anything.
func NewZMQAdapter(cfg ZMQConfig, api *API) *ZMQAdapter {
	ctx, cancel := context.WithCancel(context.Background())
	return &ZMQAdapter{cfg: cfg, api: api, ctx: ctx, cancel: cancel}
}

// Start binds the PUB and PULL sockets, subscribes to
// the three event-bus topics for re-publication, and launches the
// command-receive loop.
func (a *ZMQAdapter) Start() error {
	a.pubSock = zmq4.NewPub(a.ctx)
	if err := a.pubSock.Listen(a.cfg.EventPubURL); err != nil {
		return err
	}

	a.pullSock = zmq4.NewPull(a.ctx)
	if err := a.pullSock.Listen(a.cfg.CommandURL); err != nil {
		a.pubSock.Close()
		return err
	}

	a.api.SubscribeEvent(eventbus.TopicDevicePairRequest, a.publisher("device_pair_request"))
	a.api.SubscribeEvent(eventbus.TopicDevicePairAccepted, a.publisher("device_pair_accepted"))
	a.api.SubscribeEvent(eventbus.TopicThermostatStateRecv, a.publisher("thermostatstate_received"))

	a.wg.Add(1)
	go a.commandLoop()

	log.Printf("boundary: zmq adapter listening event=%s command=%s", a.cfg.EventPubURL, a.cfg.CommandURL)
	return nil
}

// Stop cancels the adapter's context and waits for the command loop
// to exit.
func (a *ZMQAdapter) Stop() {
	a.cancel()
	a.wg.Wait()
	if a.pubSock != nil {
		a.pubSock.Close()
	}
	if a.pullSock != nil {
		a.pullSock.Close()
	}
}

func (a *ZMQAdapter) publisher(topic string) eventbus.Handler {
	return func(payload any) {
		m, ok := payload.(*codec.Message)
		if !ok {
			return
		}
		envelope := struct {
			Topic   string          `json:"topic"`
			Message json.RawMessage `json:"message"`
		}{Topic: topic}

		raw, err := json.Marshal(m)
		if err != nil {
			log.Printf("boundary: zmq publish marshal error: %v", err)
			return
		}
		envelope.Message = raw

		body, err := json.Marshal(envelope)
		if err != nil {
			log.Printf("boundary: zmq envelope marshal error: %v", err)
			return
		}
		if err := a.pubSock.Send(zmq4.NewMsg(body)); err != nil {
			log.Printf("boundary: zmq publish failed: %v", err)
		}
	}
}

func (a *ZMQAdapter) commandLoop() {
	defer a.wg.Done()
	for {
		msg, err := a.pullSock.Recv()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return
			default:
				log.Printf("boundary: zmq recv error: %v", err)
				continue
			}
		}

		var cmd zmqCommand
		if err := json.Unmarshal(msg.Bytes(), &cmd); err != nil {
			log.Printf("boundary: malformed zmq command: %v", err)
			continue
		}

		mode, ok := modeFromWireName(cmd.Mode)
		if !ok {
			log.Printf("boundary: unknown mode %q in zmq command", cmd.Mode)
			continue
		}
		if err := a.api.SubmitSetTemperature(cmd.DeviceID, cmd.GroupID, cmd.DesiredTemperature, mode); err != nil {
			log.Printf("boundary: zmq command rejected: %v", err)
		}
	}
}

func modeFromWireName(s string) (codec.Mode, bool) {
	switch s {
	case "auto":
		return codec.ModeAuto, true
	case "manual":
		return codec.ModeManual, true
	case "temporary":
		return codec.ModeTemporary, true
	case "boost":
		return codec.ModeBoost, true
	default:
		return 0, false
	}
}
