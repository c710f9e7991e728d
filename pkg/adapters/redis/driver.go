package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/drivers"
	"github.com/aretw0/trialkit/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "trialkit:triggers"

// Message is the JSON document published for every event.
type Message struct {
	Kind         string         `json:"kind"`
	Name         string         `json:"name,omitempty"`
	Code         *int           `json:"code"`
	Payload      []byte         `json:"payload,omitempty"`
	PulseWidthMS *float64       `json:"pulse_width_ms,omitempty"`
	ResetCode    *int           `json:"reset_code,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	Driver       string         `json:"driver"`
	SentUTC      time.Time      `json:"t_sent_utc"`
}

// Driver publishes trigger events on a Redis channel so that networked
// recording equipment can subscribe to them.
type Driver struct {
	client    backend.UniversalClient
	ownClient bool
	channel   string
	name      string
	timeout   time.Duration
	locker    ports.Locker
	lockTTL   time.Duration
	unlock    ports.UnlockFunc
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the Driver.
type Option func(*Driver)

// WithName overrides the driver name, "redis" by default.
func WithName(name string) Option {
	return func(d *Driver) {
		d.name = name
	}
}

// WithTimeout bounds every Redis round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.timeout = timeout
	}
}

// WithExclusive makes Open take a lock on the channel so that two sessions
// never drive the same recording equipment.
func WithExclusive(ttl time.Duration) Option {
	return func(d *Driver) {
		d.lockTTL = ttl
	}
}

// WithLocker replaces the Redis locker used by WithExclusive.
func WithLocker(locker ports.Locker) Option {
	return func(d *Driver) {
		d.locker = locker
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithClock overrides the clock stamped into messages.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// New connects to addr and publishes on channel.
func New(addr, channel string, opts ...Option) *Driver {
	client := backend.NewClient(&backend.Options{Addr: addr})
	d := NewFromClient(client, channel, opts...)
	d.ownClient = true
	return d
}

// NewFromClient publishes through an existing client.
func NewFromClient(client backend.UniversalClient, channel string, opts ...Option) *Driver {
	if channel == "" {
		channel = DefaultChannel
	}
	d := &Driver{
		client:  client,
		channel: channel,
		name:    "redis",
		timeout: 2 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.locker == nil {
		d.locker = NewLocker(client, "trialkit:")
	}
	return d
}

// Factory builds a driver from a "redis" triggers.driver section.
func Factory(cfg drivers.Config) (ports.Driver, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis driver requires addr: %w", drivers.ErrUnsupportedDriver)
	}
	var opts []Option
	if cfg.Name != "" {
		opts = append(opts, WithName(cfg.Name))
	}
	if cfg.LockTTLS > 0 {
		opts = append(opts, WithExclusive(time.Duration(cfg.LockTTLS*float64(time.Second))))
	}
	return New(cfg.Addr, cfg.Channel, opts...), nil
}

func (d *Driver) Name() string { return d.name }

// Channel returns the publish channel.
func (d *Driver) Channel() string { return d.channel }

// Open checks connectivity and, when exclusive, acquires the channel lock.
func (d *Driver) Open() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if d.lockTTL > 0 && d.unlock == nil {
		unlock, err := d.locker.Lock(ctx, d.channel, d.lockTTL)
		if err != nil {
			return err
		}
		d.unlock = unlock
	}
	return nil
}

// Close releases the channel lock and the client it created.
func (d *Driver) Close() error {
	if d.unlock != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.unlock(ctx)
		cancel()
		d.unlock = nil
		if err != nil {
			d.logger.Warn("redis unlock failed", "channel", d.channel, "err", err)
		}
	}
	if d.ownClient {
		return d.client.Close()
	}
	return nil
}

func (d *Driver) Send(event domain.TriggerEvent, _ bool) error {
	return d.publish(d.message("event", event))
}

// SendPulse publishes the event with its pulse width for the receiver to honour.
func (d *Driver) SendPulse(event domain.TriggerEvent, _ bool) error {
	msg := d.message("pulse", event)
	if event.PulseWidth != nil {
		ms := float64(*event.PulseWidth) / float64(time.Millisecond)
		msg.PulseWidthMS = &ms
	}
	return d.publish(msg)
}

// Reset publishes a reset message carrying code.
func (d *Driver) Reset(code int) error {
	return d.publish(Message{Kind: "reset", Code: &code, Driver: d.name, SentUTC: d.now().UTC()})
}

func (d *Driver) message(kind string, event domain.TriggerEvent) Message {
	return Message{
		Kind:      kind,
		Name:      event.Name,
		Code:      event.Code,
		Payload:   event.Payload,
		ResetCode: event.ResetCode,
		Meta:      event.Meta,
		Driver:    d.name,
		SentUTC:   d.now().UTC(),
	}
}

func (d *Driver) publish(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger message: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.client.Publish(ctx, d.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", d.channel, err)
	}
	return nil
}
