package serialtap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

// Config captures the runtime details of the line-framed sensor stream.
type Config struct {
	Device         string        `yaml:"device"`
	Channels       int           `yaml:"-"`
	IdleSleep      time.Duration `yaml:"idle_sleep"`
	ReopenAttempts uint64        `yaml:"reopen_attempts"`
	ReopenDelay    time.Duration `yaml:"reopen_delay"`
}

func (c *Config) ApplyDefaults() {
	if c.IdleSleep <= 0 {
		c.IdleSleep = 100 * time.Millisecond
	}
	if c.ReopenAttempts == 0 {
		c.ReopenAttempts = 5
	}
	if c.ReopenDelay <= 0 {
		c.ReopenDelay = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.New("device is required")
	}
	if c.Channels < 1 {
		return errors.New("at least one channel must be configured")
	}
	return nil
}

// openFunc opens the device stream. Injectable so tests can feed pipes.
type openFunc func(device string) (io.ReadCloser, error)

// Collector reads `timestamp,v0,...,vn` lines from a device stream and
// emits one Reading per well-formed line. Malformed lines are dropped with
// a warning. A lost stream is reopened under a bounded budget; exhausting
// the budget closes the output channel, which ends the run: with no
// sensor there is nothing left to relay.
type Collector struct {
	cfg    Config
	obs    ports.Observability
	open   openFunc
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	current io.ReadCloser
}

func NewCollector(cfg Config, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{
		cfg: cfg,
		obs: obs,
		open: func(device string) (io.ReadCloser, error) {
			return os.Open(device)
		},
	}, nil
}

func (c *Collector) Start(out chan<- domain.Reading) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("serialtap collector already started")
	}
	c.started = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(ctx, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	current := c.current
	c.current = nil
	c.started = false
	c.mu.Unlock()

	cancel()
	// Unblock a read in flight; the device stream has no read deadline.
	if current != nil {
		_ = current.Close()
	}
	c.wg.Wait()
	return nil
}

func (c *Collector) run(ctx context.Context, out chan<- domain.Reading) {
	defer c.wg.Done()
	defer close(out)

	for {
		stream, err := c.openWithBudget(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.obs.LogCritical("sensor_stream_exhausted", err,
					ports.Field{Key: "device", Value: c.cfg.Device},
					ports.Field{Key: "attempts", Value: c.cfg.ReopenAttempts})
			}
			return
		}
		c.obs.LogInfo("sensor_stream_open", ports.Field{Key: "device", Value: c.cfg.Device})

		c.consume(ctx, stream, out)
		if ctx.Err() != nil {
			return
		}
		c.obs.LogWarn("sensor_stream_lost", ports.Field{Key: "device", Value: c.cfg.Device})

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.IdleSleep):
		}
	}
}

func (c *Collector) openWithBudget(ctx context.Context) (io.ReadCloser, error) {
	backoff := retry.WithMaxRetries(c.cfg.ReopenAttempts, retry.NewConstant(c.cfg.ReopenDelay))
	var stream io.ReadCloser
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := c.open(c.cfg.Device)
		if err != nil {
			c.obs.LogWarn("sensor_stream_open_failed",
				ports.Field{Key: "device", Value: c.cfg.Device},
				ports.Field{Key: "err", Value: err.Error()})
			return retry.RetryableError(err)
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open sensor stream %s: %w", c.cfg.Device, err)
	}
	return stream, nil
}

func (c *Collector) consume(ctx context.Context, stream io.ReadCloser, out chan<- domain.Reading) {
	c.mu.Lock()
	c.current = stream
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		_ = stream.Close()
	}()

	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r, ok := c.parse(line)
		if !ok {
			continue
		}
		select {
		case out <- r:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.obs.LogError("sensor_stream_read_failed", err,
			ports.Field{Key: "device", Value: c.cfg.Device})
	}
}

func (c *Collector) parse(line string) (domain.Reading, bool) {
	parts := strings.Split(line, ",")
	want := 1 + c.cfg.Channels
	if len(parts) != want {
		c.obs.LogWarn("malformed_line",
			ports.Field{Key: "expected_fields", Value: want},
			ports.Field{Key: "got_fields", Value: len(parts)},
			ports.Field{Key: "line", Value: line})
		c.obs.IncCounter("soilwire_readings_malformed_total", 1)
		return domain.Reading{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return domain.Reading{
		SourceTimestamp: parts[0],
		ObservedAt:      time.Now(),
		Values:          parts[1:],
	}, true
}

var _ ports.Collector = (*Collector)(nil)
