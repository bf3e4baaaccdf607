// cubed is the MAX!/Moritz bridge daemon: it owns the serial
// transceiver, runs the protocol engine, and exposes the command/
// event boundary over ZeroMQ IPC and WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/moritzcube/cubed/internal/boundary"
	"github.com/moritzcube/cubed/internal/codec"
	"github.com/moritzcube/cubed/internal/engine"
	"github.com/moritzcube/cubed/internal/eventbus"
	"github.com/moritzcube/cubed/internal/registry"
	"github.com/moritzcube/cubed/internal/storage"
	"github.com/moritzcube/cubed/internal/transport"
)

// Config represents the configuration file structure.
type Config struct {
	Transceiver struct {
		Device   string `yaml:"device"`
		BaudRate int    `yaml:"baud_rate"`
	} `yaml:"transceiver"`

	Cube struct {
		ID                  string `yaml:"id"`
		ActAsCube           bool   `yaml:"act_as_cube"`
		ActAsWallThermostat bool   `yaml:"act_as_wall_thermostat"`
		ActAsShutterContact bool   `yaml:"act_as_shutter_contact"`
	} `yaml:"cube"`

	Boundary struct {
		EventPubURL string `yaml:"event_pub_url"`
		CommandURL  string `yaml:"command_url"`
		HTTPAddr    string `yaml:"http_addr"`
	} `yaml:"boundary"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "cubed",
		Short: "MAX!/Moritz cube bridge daemon",
		Long:  "Bridges a host computer to a fleet of MAX!/Moritz thermostats over a CUL-class serial transceiver.",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the bridge daemon",
		RunE:  runDaemon,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("cubed v0.1.0")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/cubed/cubed.yaml", "Configuration file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, cfgErr := loadConfig(configFile)
	if cfgErr != nil {
		log.Printf("no config at %s, using defaults: %v", configFile, cfgErr)
		cfg = &Config{}
	}

	transportCfg := transport.DefaultConfig(firstNonEmpty(cfg.Transceiver.Device, "/dev/ttyACM0"))
	if cfg.Transceiver.BaudRate != 0 {
		transportCfg.BaudRate = cfg.Transceiver.BaudRate
	}

	engineCfg := engine.DefaultConfig()
	if id, ok := parseHexID(cfg.Cube.ID); ok {
		engineCfg.CubeID = id
	}
	if cfgErr == nil {
		// A loaded config file takes the role flags verbatim, including
		// an explicit false; absent a file the engine's own defaults
		// (act_as_cube = true) stand.
		engineCfg.ActAsCube = cfg.Cube.ActAsCube
	}
	engineCfg.ActAsWallThermostat = cfg.Cube.ActAsWallThermostat
	engineCfg.ActAsShutterContact = cfg.Cube.ActAsShutterContact

	dbPath := firstNonEmpty(cfg.Database.Path, "/var/lib/cubed/cubed.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sess := transport.New(transportCfg)
	if err := sess.Start(); err != nil {
		db.Close()
		return fmt.Errorf("failed to start transceiver session: %w", err)
	}

	reg := registry.New()
	bus := eventbus.New()
	commands := make(engine.CommandQueue, 64)

	eng := engine.New(engineCfg, sess, reg, bus, commands, nil)
	eng.Start()

	api := boundary.New(commands, reg, bus, engineCfg.CubeID)

	api.SubscribeEvent(eventbus.TopicDevicePairRequest, persistPairRequest(db))
	api.SubscribeEvent(eventbus.TopicDevicePairAccepted, persistPairAccepted(db))
	api.SubscribeEvent(eventbus.TopicThermostatStateRecv, persistStateRecord(db))

	zmqAdapter := boundary.NewZMQAdapter(boundary.ZMQConfig{
		EventPubURL: firstNonEmpty(cfg.Boundary.EventPubURL, "ipc:///tmp/cubed_event"),
		CommandURL:  firstNonEmpty(cfg.Boundary.CommandURL, "ipc:///tmp/cubed_command"),
	}, api)
	if err := zmqAdapter.Start(); err != nil {
		sess.Stop()
		eng.Stop()
		db.Close()
		return fmt.Errorf("failed to start zmq adapter: %w", err)
	}

	broadcaster := boundary.NewWebSocketBroadcaster(api)
	mux := http.NewServeMux()
	mux.Handle("/ws", broadcaster)
	httpAddr := firstNonEmpty(cfg.Boundary.HTTPAddr, ":8090")
	httpServer := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("cubed: websocket http server stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("cubed running, cube id %#x, device %s, websocket on %s", engineCfg.CubeID, transportCfg.Device, httpAddr)
	sig := <-sigChan
	log.Printf("received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("cubed: websocket http server shutdown: %v", err)
	}
	zmqAdapter.Stop()

	// Join order is transport first, then engine: stop accepting new
	// inbound frames before tearing down the side that dispatches them.
	sess.Stop()
	eng.Stop()

	db.Close()
	return nil
}

// persistPairRequest records a device's identity (its firmware
// version and serial) each time it sends a PairPing.
func persistPairRequest(db *storage.DB) eventbus.Handler {
	return func(payload any) {
		m, ok := payload.(*codec.Message)
		if !ok {
			return
		}
		decoded, err := m.DecodedPayload()
		if err != nil {
			return
		}
		info, ok := decoded.(codec.PairPingInfo)
		if !ok {
			return
		}

		now := time.Now()
		dev := &storage.Device{
			ID:         m.SenderID,
			Serial:     info.DeviceSerial,
			Firmware:   info.FirmwareVersion,
			DeviceType: uint8(info.DeviceType),
			FirstSeen:  now,
			UpdatedAt:  now,
		}
		if err := db.UpsertDevice(dev); err != nil {
			log.Printf("cubed: failed to persist device %06X: %v", m.SenderID, err)
		}
	}
}

// persistPairAccepted marks a device paired once the engine has sent
// it a PairPong.
func persistPairAccepted(db *storage.DB) eventbus.Handler {
	return func(payload any) {
		m, ok := payload.(*codec.Message)
		if !ok {
			return
		}

		now := time.Now()
		dev := &storage.Device{
			ID:        m.ReceiverID,
			Paired:    true,
			FirstSeen: now,
			UpdatedAt: now,
		}
		if err := db.UpsertDevice(dev); err != nil {
			log.Printf("cubed: failed to persist pairing for %06X: %v", m.ReceiverID, err)
		}
	}
}

// persistStateRecord appends one row to the state history for every
// ThermostatState report and every ok-Ack that carries a status tail.
func persistStateRecord(db *storage.DB) eventbus.Handler {
	return func(payload any) {
		m, ok := payload.(*codec.Message)
		if !ok {
			return
		}
		decoded, err := m.DecodedPayload()
		if err != nil {
			return
		}

		var status codec.ThermostatStatus
		switch v := decoded.(type) {
		case codec.ThermostatStatus:
			status = v
		case codec.AckInfo:
			if v.ThermostatStatus == nil {
				return
			}
			status = *v.ThermostatStatus
		default:
			return
		}

		var signal uint8
		if m.SignalStrength != nil {
			signal = *m.SignalStrength
		}

		rec := &storage.StateRecord{
			DeviceID:            m.SenderID,
			Timestamp:           time.Now(),
			Mode:                status.Mode.String(),
			DesiredTemperature:  status.DesiredTemperature,
			MeasuredTemperature: status.MeasuredTemperature,
			ValvePosition:       status.ValvePosition,
			SignalStrength:      signal,
			IsLocked:            status.IsLocked,
			RFError:             status.RFError,
			BatteryLow:          status.BatteryLow,
		}
		if _, err := db.InsertStateRecord(rec); err != nil {
			log.Printf("cubed: failed to persist state record for %06X: %v", m.SenderID, err)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseHexID(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	var v uint32
	if _, err := fmt.Sscanf(s, "0x%X", &v); err == nil {
		return v, true
	}
	if _, err := fmt.Sscanf(s, "%X", &v); err == nil {
		return v, true
	}
	return 0, false
}
