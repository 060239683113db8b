package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/smarthome-core/internal/device"
	"github.com/nerrad567/smarthome-core/internal/history"
	"github.com/nerrad567/smarthome-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/smarthome-core/internal/location"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultCommandTimeout = 5 * time.Second

	stateQoS = 1
)

var (
	// ErrNotSwitchable is returned when a switch targets a device that
	// is not an outlet.
	ErrNotSwitchable = errors.New("bridge: device cannot be switched")

	// ErrStopped is returned for operations on a stopped bridge.
	ErrStopped = errors.New("bridge: stopped")
)

// Publisher is the MQTT surface the bridge uses. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MetricsWriter receives telemetry. *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteDeviceState(room, device, kind string, state map[string]any, at time.Time)
	WriteReading(room, sensor string, value float32, at time.Time)
}

// HistoryRecorder persists state changes. *history.SQLiteStore satisfies it.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// switcher is implemented by devices that can be toggled.
type switcher interface {
	Switch(ctx context.Context) (bool, error)
}

// readingSource is implemented by devices that push readings.
type readingSource interface {
	SetOnReading(callback func(device.Reading))
}

// Options configures a Bridge. Only Home is required.
type Options struct {
	Home    *location.Home
	MQTT    Publisher
	Metrics MetricsWriter
	History HistoryRecorder
	Logger  Logger

	// PollInterval defaults to 10s; CommandTimeout to 5s.
	PollInterval   time.Duration
	CommandTimeout time.Duration
}

// Stats are the bridge's operational counters.
type Stats struct {
	Polls     uint64
	Published uint64
	Commands  uint64
	Failed    uint64
}

// Bridge polls the home and fans state changes out to the bus, telemetry,
// history and listeners. All methods are safe for concurrent use.
type Bridge struct {
	home           *location.Home
	mqtt           Publisher
	metrics        MetricsWriter
	history        HistoryRecorder
	logger         Logger
	pollInterval   time.Duration
	commandTimeout time.Duration

	// stateCache holds the last published fingerprint per device key.
	cacheMu    sync.Mutex
	stateCache map[string]string
	attached   map[string]readingSource

	listenersMu sync.RWMutex
	listeners   []func(StateEvent)

	statsMu sync.Mutex
	stats   Stats

	runMu     sync.Mutex
	stopped   bool
	started   bool
	wg        sync.WaitGroup
	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once
}

// New creates a bridge. Call Start to begin polling.
func New(opts Options) (*Bridge, error) {
	if opts.Home == nil {
		return nil, fmt.Errorf("home is required")
	}

	b := &Bridge{
		home:           opts.Home,
		mqtt:           opts.MQTT,
		metrics:        opts.Metrics,
		history:        opts.History,
		logger:         opts.Logger,
		pollInterval:   opts.PollInterval,
		commandTimeout: opts.CommandTimeout,
		stateCache:     make(map[string]string),
		attached:       make(map[string]readingSource),
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	if b.pollInterval <= 0 {
		b.pollInterval = defaultPollInterval
	}
	if b.commandTimeout <= 0 {
		b.commandTimeout = defaultCommandTimeout
	}
	b.ctx, b.ctxCancel = context.WithCancel(context.Background())

	return b, nil
}

// OnState registers a listener for state changes. Listeners run on the
// polling goroutine and must not block.
func (b *Bridge) OnState(listener func(StateEvent)) {
	b.listenersMu.Lock()
	b.listeners = append(b.listeners, listener)
	b.listenersMu.Unlock()
}

// Start subscribes to command topics, polls once, and then polls every
// PollInterval until ctx is cancelled or Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	b.runMu.Lock()
	if b.stopped {
		b.runMu.Unlock()
		return ErrStopped
	}
	if b.started {
		b.runMu.Unlock()
		return fmt.Errorf("bridge already started")
	}
	b.started = true
	b.runMu.Unlock()

	if b.mqtt != nil {
		topic := mqtt.Topics{}.AllDeviceCommands()
		if err := b.mqtt.Subscribe(topic, stateQoS, b.handleCommand); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.logger.Info("subscribed to commands", "topic", topic)
	}

	b.goTracked(func() { b.pollLoop(ctx) })

	b.logger.Info("bridge started", "poll_interval", b.pollInterval.String())
	return nil
}

// Stop cancels in-flight commands, waits for the poll loop and pending
// command handlers, and unsubscribes. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.runMu.Lock()
		b.stopped = true
		b.runMu.Unlock()

		b.ctxCancel()
		b.wg.Wait()

		if b.mqtt != nil {
			if err := b.mqtt.Unsubscribe(mqtt.Topics{}.AllDeviceCommands()); err != nil {
				b.logger.Debug("unsubscribe from commands", "error", err)
			}
		}

		b.cacheMu.Lock()
		for key, src := range b.attached {
			src.SetOnReading(nil)
			delete(b.attached, key)
		}
		b.cacheMu.Unlock()

		b.logger.Info("bridge stopped")
	})
}

// Stats returns a copy of the bridge counters.
func (b *Bridge) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}

// goTracked runs fn on a goroutine Stop waits for. It returns false once
// the bridge is stopped.
func (b *Bridge) goTracked(fn func()) bool {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.stopped {
		return false
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
	return true
}

func (b *Bridge) pollLoop(ctx context.Context) {
	ctx, cancel := mergeCancel(ctx, b.ctx)
	defer cancel()

	b.Poll(ctx)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Poll(ctx)
		}
	}
}

// Poll snapshots the home once and publishes every changed state.
func (b *Bridge) Poll(ctx context.Context) {
	snapshot := b.home.Snapshot(ctx)
	if ctx.Err() != nil {
		return
	}

	seen := make(map[string]bool)
	for _, rs := range snapshot {
		for _, ds := range rs.Devices {
			key := deviceKey(rs.Name, ds.Device.Name())
			seen[key] = true
			b.attachReadings(rs.Name, ds.Device)
			b.observe(ctx, rs.Name, ds.Device, ds.State, ds.Err, history.SourcePoll, false)
		}
	}
	b.forgetUnseen(seen)

	b.statsMu.Lock()
	b.stats.Polls++
	b.statsMu.Unlock()
}

// Switch toggles an outlet, publishes its new state and returns it.
// Returns location.ErrDeviceNotFound, ErrNotSwitchable, or the outlet's
// device.ErrTimeout / device.ErrDeviceIO.
func (b *Bridge) Switch(ctx context.Context, room, name, source string) (bool, error) {
	d, ok := b.home.FindDeviceByName(room, name)
	if !ok {
		return false, fmt.Errorf("%w: %q in room %q", location.ErrDeviceNotFound, name, room)
	}
	s, ok := d.(switcher)
	if !ok {
		return false, fmt.Errorf("%w: %q is a %s", ErrNotSwitchable, name, d.Kind())
	}

	on, err := s.Switch(ctx)
	if err != nil {
		return false, err
	}

	state, stateErr := d.State(ctx)
	b.observe(ctx, room, d, state, stateErr, source, true)
	return on, nil
}

// Refresh reads a device's state and publishes it even if unchanged.
func (b *Bridge) Refresh(ctx context.Context, room, name, source string) error {
	d, ok := b.home.FindDeviceByName(room, name)
	if !ok {
		return fmt.Errorf("%w: %q in room %q", location.ErrDeviceNotFound, name, room)
	}
	state, err := d.State(ctx)
	b.observe(ctx, room, d, state, err, source, true)
	return err
}

// Forget drops cached state for a removed device so a new device with the
// same name is published on its first poll.
func (b *Bridge) Forget(room, name string) {
	key := deviceKey(room, name)

	b.cacheMu.Lock()
	delete(b.stateCache, key)
	if src, ok := b.attached[key]; ok {
		src.SetOnReading(nil)
		delete(b.attached, key)
	}
	b.cacheMu.Unlock()
}

// observe publishes a device state if it changed, or unconditionally when
// force is set.
func (b *Bridge) observe(ctx context.Context, room string, d device.Device, state device.State, stateErr error, source string, force bool) {
	msg := StateMessage{
		Room:      room,
		Device:    d.Name(),
		Kind:      string(d.Kind()),
		Timestamp: time.Now().UTC(),
	}
	if stateErr != nil {
		msg.Error = stateErr.Error()
	} else {
		msg.State = state
	}

	fp, err := fingerprint(msg)
	if err != nil {
		b.logger.Warn("state not serialisable", "room", room, "device", msg.Device, "error", err)
		return
	}

	key := deviceKey(room, msg.Device)
	b.cacheMu.Lock()
	unchanged := b.stateCache[key] == fp
	b.stateCache[key] = fp
	b.cacheMu.Unlock()

	if unchanged && !force {
		return
	}

	b.publishState(msg)

	if stateErr == nil {
		if b.metrics != nil {
			b.metrics.WriteDeviceState(room, msg.Device, msg.Kind, state, msg.Timestamp)
		}
		if b.history != nil {
			err := b.history.Record(ctx, history.Entry{
				Room:      room,
				Device:    msg.Device,
				Kind:      msg.Kind,
				State:     state,
				Source:    source,
				CreatedAt: msg.Timestamp,
			})
			if err != nil && ctx.Err() == nil {
				b.logger.Warn("recording device history failed", "room", room, "device", msg.Device, "error", err)
			}
		}
	}

	b.notify(StateEvent{StateMessage: msg, Source: source})
}

func (b *Bridge) publishState(msg StateMessage) {
	if b.mqtt == nil {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal state", "error", err)
		return
	}

	topic := mqtt.Topics{}.DeviceState(msg.Room, msg.Device)
	if err := b.mqtt.Publish(topic, payload, stateQoS, true); err != nil {
		b.logger.Warn("failed to publish state", "topic", topic, "error", err)
		return
	}

	b.statsMu.Lock()
	b.stats.Published++
	b.statsMu.Unlock()
}

func (b *Bridge) notify(ev StateEvent) {
	b.listenersMu.RLock()
	listeners := b.listeners
	b.listenersMu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// attachReadings forwards every datagram from a push device to the metrics
// writer. Each device is attached once.
func (b *Bridge) attachReadings(room string, d device.Device) {
	if b.metrics == nil {
		return
	}
	src, ok := d.(readingSource)
	if !ok {
		return
	}

	key := deviceKey(room, d.Name())
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	if existing, ok := b.attached[key]; ok && existing == src {
		return
	}

	metrics := b.metrics
	src.SetOnReading(func(r device.Reading) {
		metrics.WriteReading(room, r.Sensor, r.Value, r.At)
	})
	b.attached[key] = src
}

func (b *Bridge) forgetUnseen(seen map[string]bool) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()

	for key := range b.stateCache {
		if !seen[key] {
			delete(b.stateCache, key)
		}
	}
	for key, src := range b.attached {
		if !seen[key] {
			src.SetOnReading(nil)
			delete(b.attached, key)
		}
	}
}

// handleCommand is the MQTT handler for command topics. The command runs on
// its own goroutine so a slow outlet does not stall the MQTT client.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	_, room, dev, err := mqtt.ParseDeviceTopic(topic)
	if err != nil {
		return err
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		cmd.ensureID()
		b.publishAck(NewAckError(cmd, room, dev, AckFailed, ErrCodeInvalidCommand, "malformed command payload"))
		return fmt.Errorf("parsing command: %w", err)
	}
	cmd.ensureID()
	if cmd.Source == "" {
		cmd.Source = history.SourceCommand
	}

	if !b.goTracked(func() { b.executeCommand(cmd, room, dev) }) {
		return ErrStopped
	}
	return nil
}

func (b *Bridge) executeCommand(cmd CommandMessage, room, dev string) {
	b.statsMu.Lock()
	b.stats.Commands++
	b.statsMu.Unlock()

	b.logger.Info("received command", "command_id", cmd.ID, "room", room, "device", dev, "command", cmd.Command)

	ctx, cancel := context.WithTimeout(b.ctx, b.commandTimeout)
	defer cancel()

	var ack AckMessage
	switch cmd.Command {
	case CommandSwitch:
		on, err := b.Switch(ctx, room, dev, cmd.Source)
		if err != nil {
			ack = b.errorAck(cmd, room, dev, err)
			break
		}
		ack = NewAckMessage(cmd, room, dev)
		ack.On = &on

	case CommandRefresh:
		if err := b.Refresh(ctx, room, dev, cmd.Source); err != nil {
			ack = b.errorAck(cmd, room, dev, err)
			break
		}
		ack = NewAckMessage(cmd, room, dev)

	default:
		ack = NewAckError(cmd, room, dev, AckFailed, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command %q", cmd.Command))
	}

	if ack.Status != AckAccepted {
		b.statsMu.Lock()
		b.stats.Failed++
		b.statsMu.Unlock()
		b.logger.Warn("command failed", "command_id", cmd.ID, "room", room, "device", dev, "error", ack.Error.Message)
	}
	b.publishAck(ack)
}

// errorAck maps a command error to an ack status and code.
func (b *Bridge) errorAck(cmd CommandMessage, room, dev string, err error) AckMessage {
	switch {
	case errors.Is(err, location.ErrDeviceNotFound):
		return NewAckError(cmd, room, dev, AckFailed, ErrCodeNotFound, err.Error())
	case errors.Is(err, ErrNotSwitchable):
		return NewAckError(cmd, room, dev, AckFailed, ErrCodeInvalidCommand, err.Error())
	case errors.Is(err, device.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return NewAckError(cmd, room, dev, AckTimeout, ErrCodeTimeout, err.Error())
	default:
		return NewAckError(cmd, room, dev, AckFailed, ErrCodeDeviceUnreachable, err.Error())
	}
}

func (b *Bridge) publishAck(ack AckMessage) {
	if b.mqtt == nil {
		return
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.DeviceAck(ack.Room, ack.Device), payload, stateQoS, false); err != nil {
		b.logger.Warn("failed to publish ack", "command_id", ack.CommandID, "error", err)
	}
}

// fingerprint identifies a state for change detection. The timestamp is
// excluded.
func fingerprint(msg StateMessage) (string, error) {
	msg.Timestamp = time.Time{}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func deviceKey(room, name string) string {
	return room + "\x00" + name
}

// mergeCancel returns a context derived from ctx that is also cancelled
// when other is done.
func mergeCancel(ctx, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
