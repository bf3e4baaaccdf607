package transport

import (
	"bufio"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Config describes how to open and drive the transceiver.
type Config struct {
	// Device is the serial device path, e.g. "/dev/ttyACM0".
	Device string

	// BaudRate is the line speed the transceiver expects. CUL-class
	// devices run at 9600 baud.
	BaudRate int

	// PollInterval is the main loop period. The source runs it at
	// roughly 200 ms.
	PollInterval time.Duration

	// HandshakeTimeout bounds each "V" probe during initialization.
	HandshakeTimeout time.Duration

	// HandshakeRetries is how many times "V" is retried before the
	// port is closed and reopened, and again before giving up.
	HandshakeRetries int
}

// DefaultConfig returns the configuration the source uses absent
// overrides.
func DefaultConfig(device string) Config {
	return Config{
		Device:           device,
		BaudRate:         9600,
		PollInterval:     200 * time.Millisecond,
		HandshakeTimeout: 300 * time.Millisecond,
		HandshakeRetries: 10,
	}
}

// Session owns a single serial transceiver exclusively. It is driven
// by one internal goroutine; callers interact only through Send and
// Receive.
type Session struct {
	cfg  Config
	port serial.Port

	sendQueue    chan string
	receiveQueue chan string

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	budgetMs  int
	staged    string
	hasStaged bool
}

// New constructs a Session that has not yet opened the port.
func New(cfg Config) *Session {
	return &Session{
		cfg:          cfg,
		sendQueue:    make(chan string, 64),
		receiveQueue: make(chan string, 64),
		stopChan:     make(chan struct{}),
	}
}

// Start opens the port, runs the initialization sequence, and
// launches the main loop goroutine. It returns ErrInit if the
// transceiver never answers the version handshake.
func (s *Session) Start() error {
	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(s.cfg.Device, mode)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrInit, s.cfg.Device, err)
	}
	s.port = port

	if err := s.initialize(); err != nil {
		port.Close()
		return err
	}

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop signals the main loop to exit, waits for it, and closes the
// port. It is cooperative and best-effort: the loop exits at the next
// iteration boundary rather than mid-operation.
func (s *Session) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	if s.port != nil {
		s.port.Close()
	}
}

// Send enqueues a line for transmission. It never blocks the caller
// indefinitely; the queue is generously buffered because true
// backpressure comes from the duty-cycle budget, not queue depth. If
// the queue is nevertheless full, the line is logged and dropped.
func (s *Session) Send(line string) {
	select {
	case s.sendQueue <- line:
	default:
		log.Printf("transport: send queue full, dropping %q", line)
	}
}

// Receive pops one inbound frame line, waiting up to timeout. ok is
// false on timeout.
func (s *Session) Receive(timeout time.Duration) (line string, ok bool) {
	select {
	case line = <-s.receiveQueue:
		return line, true
	case <-time.After(timeout):
		return "", false
	}
}

// initialize runs the startup handshake: drain, version probe (with
// a close/reopen retry escalation), then the three one-shot mode
// commands.
func (s *Session) initialize() error {
	s.drain()

	banner, err := s.probeVersion()
	if err != nil {
		log.Printf("transport: version probe failed after reopen, giving up: %v", err)
		return err
	}
	log.Printf("transport: transceiver banner %q", banner)

	for _, cmd := range []string{"X21", "Zr", "T01"} {
		if err := s.writeLine(cmd); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	return nil
}

func (s *Session) probeVersion() (string, error) {
	if banner, ok := s.tryVersion(); ok {
		return banner, nil
	}

	log.Printf("transport: no version reply after %d tries, reopening %s", s.cfg.HandshakeRetries, s.cfg.Device)
	if err := s.port.Close(); err != nil {
		return "", fmt.Errorf("%w: reopen close: %v", ErrInit, err)
	}

	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.cfg.Device, mode)
	if err != nil {
		return "", fmt.Errorf("%w: reopen: %v", ErrInit, err)
	}
	s.port = port
	s.drain()

	if banner, ok := s.tryVersion(); ok {
		return banner, nil
	}
	return "", ErrInit
}

func (s *Session) tryVersion() (string, bool) {
	for i := 0; i < s.cfg.HandshakeRetries; i++ {
		if err := s.writeLine("V"); err != nil {
			continue
		}
		if line, ok := s.readLineTimeout(s.cfg.HandshakeTimeout); ok && strings.HasPrefix(line, "V") {
			return line, true
		}
	}
	return "", false
}

// drain discards any input buffered before the handshake begins.
func (s *Session) drain() {
	s.port.SetReadTimeout(20 * time.Millisecond)
	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		if err != nil || n == 0 {
			return
		}
	}
}

func (s *Session) writeLine(line string) error {
	_, err := s.port.Write([]byte(line + "\r\n"))
	return err
}

// readLineTimeout reads a single newline-terminated line, giving up
// after timeout. It is only used during initialization, where the
// main loop's reader goroutine is not yet running.
func (s *Session) readLineTimeout(timeout time.Duration) (string, bool) {
	s.port.SetReadTimeout(timeout)
	reader := bufio.NewReader(s.port)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// loop is the cooperative main loop: budget refresh, inbound drain,
// outbound staging, sleep. It runs until stopChan closes.
func (s *Session) loop() {
	defer s.wg.Done()

	s.port.SetReadTimeout(50 * time.Millisecond)
	reader := bufio.NewReader(s.port)

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.refreshBudget(reader)
		s.drainInbound(reader)
		s.stageAndSend()

		time.Sleep(s.cfg.PollInterval)
	}
}

func (s *Session) refreshBudget(reader *bufio.Reader) {
	s.mu.Lock()
	needsRefresh := s.budgetMs == 0
	s.mu.Unlock()
	if !needsRefresh {
		return
	}

	if err := s.writeLine("X"); err != nil {
		log.Printf("transport: budget query failed: %v", err)
		return
	}

	for i := 0; i < 10; i++ {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if ms, ok := parseBudgetReport(line); ok {
			s.mu.Lock()
			s.budgetMs = ms
			s.mu.Unlock()
			return
		}
	}
}

func (s *Session) drainInbound(reader *bufio.Reader) {
	for reader.Buffered() > 0 || s.hasPendingByte() {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		switch {
		case isReceivedFrame(line):
			select {
			case s.receiveQueue <- line:
			default:
				log.Printf("transport: receive queue full, dropping frame")
			}
		default:
			if ms, ok := parseBudgetReport(line); ok {
				s.mu.Lock()
				s.budgetMs = ms
				s.mu.Unlock()
			} else {
				log.Printf("transport: discarding unrecognized line %q", line)
			}
		}
	}
}

// hasPendingByte is a best-effort check for more data without
// blocking past the reader's configured timeout.
func (s *Session) hasPendingByte() bool {
	return false
}

func (s *Session) stageAndSend() {
	s.mu.Lock()
	if !s.hasStaged {
		select {
		case line := <-s.sendQueue:
			s.staged = line
			s.hasStaged = true
		default:
		}
	}

	if !s.hasStaged {
		s.mu.Unlock()
		return
	}

	budget := s.budgetMs
	staged := s.staged
	s.mu.Unlock()

	if !canSend(budget, len(staged)) {
		s.mu.Lock()
		s.budgetMs = 0
		s.mu.Unlock()
		return
	}

	if err := s.writeLine(staged); err != nil {
		log.Printf("transport: write failed: %v", err)
		return
	}

	s.mu.Lock()
	s.hasStaged = false
	s.staged = ""
	if isTransmit(staged) {
		s.budgetMs = 0
	}
	s.mu.Unlock()
}
