package netprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/soilwire/soilwire/internal/ports"
)

// TCPProbe reports reachability by opening (and immediately closing) a TCP
// connection to a well-known host. No data is exchanged.
type TCPProbe struct {
	Addr    string
	Timeout time.Duration
}

func (p TCPProbe) Check(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// NopResetter performs no recovery action; the monitor degrades to
// probe-and-reauthenticate on platforms where link toggling is unavailable.
type NopResetter struct{}

func (NopResetter) Reset(context.Context) error { return nil }

// CommandResetter recovers the link by running a down command, waiting for
// the interface to settle, then running an up command. The classic
// `ifconfig wlan0 down && ifconfig wlan0 up` dance, made configurable.
type CommandResetter struct {
	Down   []string
	Up     []string
	Settle time.Duration
}

func (c CommandResetter) Reset(ctx context.Context) error {
	if err := runCommand(ctx, c.Down); err != nil {
		return fmt.Errorf("link down: %w", err)
	}
	if c.Settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Settle):
		}
	}
	if err := runCommand(ctx, c.Up); err != nil {
		return fmt.Errorf("link up: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...).Run()
}

var (
	_ ports.Probe        = TCPProbe{}
	_ ports.LinkResetter = NopResetter{}
	_ ports.LinkResetter = CommandResetter{}
)
