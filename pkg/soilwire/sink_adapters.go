package soilwire

import (
	"context"
	"fmt"
)

// AppendFunc is invoked once per delivered reading.
type AppendFunc func(ctx context.Context, r Reading) error

// CallbackSink adapts a plain function into a Sink, so readings can be
// relayed to any API without writing a full adapter. Authenticate always
// succeeds; delivery failures are reported by the callback itself.
type CallbackSink struct {
	name string
	fn   AppendFunc
}

func NewCallbackSink(name string, fn AppendFunc) *CallbackSink {
	return &CallbackSink{name: name, fn: fn}
}

func (c *CallbackSink) Name() string { return c.name }

func (c *CallbackSink) Authenticate(context.Context) (Handle, error) {
	if c.fn == nil {
		return nil, fmt.Errorf("callback sink %q has no append function", c.name)
	}
	return callbackHandle{fn: c.fn}, nil
}

type callbackHandle struct {
	fn AppendFunc
}

func (h callbackHandle) Append(ctx context.Context, r Reading) error { return h.fn(ctx, r) }
func (h callbackHandle) Close() error                                { return nil }
