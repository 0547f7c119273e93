package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"playhead/internal/config"
	"playhead/internal/logging"
)

var commandProcess = exec.Command

const eventBuffer = 64

// MPV drives an external mpv process over its JSON IPC socket. The process is
// launched idle; files are loaded into it for the lifetime of the session.
//
// The socket reader goroutine owns all inbound traffic: replies are routed to
// waiting requests, property changes and lifecycle events are translated into
// the adapter event stream stamped with the current load generation.
type MPV struct {
	cfg    *config.Config
	logger *slog.Logger

	cmd    *exec.Cmd
	conn   net.Conn
	socket string

	generation atomic.Uint64

	reqMu     sync.Mutex
	nextReqID int64
	pending   map[int64]chan ipcMessage

	propMu   sync.Mutex
	position float64
	duration float64
	paused   bool

	events chan Event
	done   chan struct{}
	closed sync.Once
}

// NewMPV launches mpv and connects to its IPC socket. Failure here is
// ErrEngineUnavailable: the caller must not create a session.
func NewMPV(cfg *config.Config, logger *slog.Logger) (*MPV, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	socket := filepath.Join(cfg.Engine.SocketDir, "mpv-"+uuid.NewString()+".sock")
	args := []string{
		"--idle=yes",
		"--no-terminal",
		"--input-ipc-server=" + socket,
	}
	args = append(args, cfg.Engine.ExtraArgs...)

	cmd := commandProcess(cfg.Engine.Binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrEngineUnavailable, cfg.Engine.Binary, err)
	}

	conn, err := dialSocket(socket, time.Duration(cfg.Engine.StartupTimeout)*time.Second)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	m := &MPV{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "engine"),
		cmd:     cmd,
		conn:    conn,
		socket:  socket,
		pending: make(map[int64]chan ipcMessage),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}

	go m.readLoop()

	if err := m.observeProperties(); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	m.logger.Info("engine started",
		logging.Args(logging.String("binary", cfg.Engine.Binary), logging.String("socket", socket))...)
	return m, nil
}

func dialSocket(socket string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("unix", socket, time.Second)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("ipc socket %s did not come up: %w", socket, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (m *MPV) observeProperties() error {
	for id, name := range map[int64]string{1: propTimePos, 2: propDuration, 3: propPause} {
		if _, err := m.request("observe_property", id, name); err != nil {
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}
	return nil
}

// Load replaces the current file. The returned generation stamps every event
// the new load produces; it is bumped before the command is issued so events
// from the outgoing file can never carry the new generation.
func (m *MPV) Load(path string) (uint64, error) {
	gen := m.generation.Add(1)

	m.propMu.Lock()
	m.position = 0
	m.duration = 0
	m.propMu.Unlock()

	if _, err := m.request("loadfile", path, "replace"); err != nil {
		return gen, fmt.Errorf("load %s: %w", path, err)
	}
	m.logger.Debug("load issued",
		logging.Args(logging.String(logging.FieldFile, path), logging.Uint64(logging.FieldGeneration, gen))...)
	return gen, nil
}

func (m *MPV) Play() error {
	return m.setProperty(propPause, false)
}

func (m *MPV) Pause() error {
	return m.setProperty(propPause, true)
}

func (m *MPV) TogglePause() error {
	_, err := m.request("cycle", propPause)
	return err
}

func (m *MPV) Stop() error {
	_, err := m.request("stop")
	return err
}

// Seek issues a raw seek. The adapter clamps nothing; range policy belongs to
// the session controller.
func (m *MPV) Seek(target float64, mode SeekMode) error {
	ref := "absolute"
	if mode == SeekRelative {
		ref = "relative"
	}
	_, err := m.request("seek", target, ref)
	return err
}

func (m *MPV) SetSpeed(speed float64) error {
	return m.setProperty("speed", speed)
}

func (m *MPV) SetVolume(volume int) error {
	return m.setProperty("volume", volume)
}

func (m *MPV) SetMuted(muted bool) error {
	return m.setProperty("mute", muted)
}

func (m *MPV) AudioTracks() ([]Track, error) {
	return m.tracks("audio")
}

func (m *MPV) SubtitleTracks() ([]Track, error) {
	return m.tracks("sub")
}

func (m *MPV) tracks(wantType string) ([]Track, error) {
	data, err := m.request("get_property", "track-list")
	if err != nil {
		return nil, fmt.Errorf("read track list: %w", err)
	}
	return decodeTracks(data, wantType)
}

func (m *MPV) SelectAudioTrack(id int64) error {
	return m.setProperty("aid", id)
}

// SelectSubtitleTrack selects a subtitle track; id 0 turns subtitles off.
func (m *MPV) SelectSubtitleTrack(id int64) error {
	if id == 0 {
		return m.setProperty("sid", "no")
	}
	return m.setProperty("sid", id)
}

func (m *MPV) Position() float64 {
	m.propMu.Lock()
	defer m.propMu.Unlock()
	return m.position
}

func (m *MPV) Duration() float64 {
	m.propMu.Lock()
	defer m.propMu.Unlock()
	return m.duration
}

func (m *MPV) Paused() bool {
	m.propMu.Lock()
	defer m.propMu.Unlock()
	return m.paused
}

// Events returns the adapter event stream. The stream is lazy and infinite:
// it restarts with each new load and terminates only on Close.
func (m *MPV) Events() <-chan Event {
	return m.events
}

// Close terminates the engine process and the event stream.
func (m *MPV) Close() error {
	var err error
	m.closed.Do(func() {
		close(m.done)
		_, _ = m.request("quit")
		if m.conn != nil {
			_ = m.conn.Close()
		}
		if m.cmd != nil && m.cmd.Process != nil {
			err = m.cmd.Wait()
		}
		m.logger.Info("engine stopped")
	})
	return err
}

func (m *MPV) setProperty(name string, value any) error {
	_, err := m.request("set_property", name, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// request sends one command and waits for its reply up to the configured
// request timeout. Replies are cheap acks; long-running effects arrive as
// events.
func (m *MPV) request(command ...any) (json.RawMessage, error) {
	m.reqMu.Lock()
	m.nextReqID++
	id := m.nextReqID
	reply := make(chan ipcMessage, 1)
	m.pending[id] = reply
	payload, err := json.Marshal(ipcRequest{Command: command, RequestID: id})
	if err == nil {
		_, err = m.conn.Write(append(payload, '\n'))
	}
	m.reqMu.Unlock()

	if err != nil {
		m.dropPending(id)
		return nil, fmt.Errorf("send ipc request: %w", err)
	}

	timeout := time.Duration(m.cfg.Engine.RequestTimeout) * time.Second
	select {
	case msg := <-reply:
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("ipc command failed: %s", msg.Error)
		}
		return msg.Data, nil
	case <-time.After(timeout):
		m.dropPending(id)
		return nil, errors.New("ipc request timed out")
	case <-m.done:
		m.dropPending(id)
		return nil, errors.New("engine closed")
	}
}

func (m *MPV) dropPending(id int64) {
	m.reqMu.Lock()
	delete(m.pending, id)
	m.reqMu.Unlock()
}

func (m *MPV) readLoop() {
	scanner := bufio.NewScanner(m.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		msg, err := decodeMessage(scanner.Bytes())
		if err != nil {
			m.logger.Debug("skipping undecodable ipc line", logging.Args(logging.Error(err))...)
			continue
		}
		if msg.Event == "" {
			m.deliverReply(msg)
			continue
		}
		m.handleEvent(msg)
	}
	select {
	case <-m.done:
	default:
		m.logger.Warn("engine ipc connection lost", logging.Args(logging.Error(scanner.Err()))...)
	}
}

func (m *MPV) deliverReply(msg ipcMessage) {
	m.reqMu.Lock()
	reply, ok := m.pending[msg.RequestID]
	if ok {
		delete(m.pending, msg.RequestID)
	}
	m.reqMu.Unlock()
	if ok {
		reply <- msg
	}
}

func (m *MPV) handleEvent(msg ipcMessage) {
	gen := m.generation.Load()
	switch msg.Event {
	case ipcEventPropertyChange:
		m.handlePropertyChange(msg, gen)
	case ipcEventFileLoaded:
		m.emit(Event{Kind: EventFileLoaded, Generation: gen, Duration: m.Duration()}, true)
	case ipcEventEndFile:
		m.emit(Event{Kind: EventEndOfFile, Generation: gen, Reason: mapEndReason(msg.Reason)}, true)
	}
}

func (m *MPV) handlePropertyChange(msg ipcMessage, gen uint64) {
	switch msg.Name {
	case propTimePos:
		var value *float64
		if err := json.Unmarshal(msg.Data, &value); err != nil || value == nil {
			return
		}
		m.propMu.Lock()
		m.position = *value
		duration := m.duration
		m.propMu.Unlock()
		m.emit(Event{Kind: EventPosition, Generation: gen, Position: *value, Duration: duration}, false)
	case propDuration:
		var value *float64
		if err := json.Unmarshal(msg.Data, &value); err != nil || value == nil {
			return
		}
		m.propMu.Lock()
		m.duration = *value
		m.propMu.Unlock()
		m.emit(Event{Kind: EventDuration, Generation: gen, Duration: *value}, true)
	case propPause:
		var value bool
		if err := json.Unmarshal(msg.Data, &value); err != nil {
			return
		}
		m.propMu.Lock()
		m.paused = value
		m.propMu.Unlock()
	}
}

// emit forwards an event to the consumer. Position ticks are droppable when
// the consumer lags; lifecycle events must not be lost.
func (m *MPV) emit(event Event, lifecycle bool) {
	if lifecycle {
		select {
		case m.events <- event:
		case <-m.done:
		}
		return
	}
	select {
	case m.events <- event:
	default:
	}
}

var _ Engine = (*MPV)(nil)
