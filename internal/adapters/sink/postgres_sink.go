package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

// PostgresSink delivers readings to a hosted PostgreSQL/Timescale table.
// Authenticate opens and pings a fresh session; the relay treats the
// returned handle as a capability and replaces it wholesale on reconnect.
type PostgresSink struct {
	connString string
	table      string
	channels   []string
}

func NewPostgresSink(connString, table string, channels []string) *PostgresSink {
	return &PostgresSink{
		connString: connString,
		table:      table,
		channels:   append([]string(nil), channels...),
	}
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) Authenticate(ctx context.Context) (ports.Handle, error) {
	db, err := sql.Open("postgres", p.connString)
	if err != nil {
		return nil, fmt.Errorf("sink open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sink ping: %w", err)
	}
	return NewTableHandle(db, p.table, p.channels), nil
}

// TableHandle appends single rows to one table. The insert is idempotent
// via the (source_timestamp, observed_at) unique key, so redelivery after
// a crash or a duplicated drain is harmless.
type TableHandle struct {
	db       *sql.DB
	channels int
	query    string
}

// NewTableHandle wraps an already-open connection; tests inject sqlmock
// databases through it.
func NewTableHandle(db *sql.DB, table string, channels []string) *TableHandle {
	return &TableHandle{
		db:       db,
		channels: len(channels),
		query:    buildInsert(table, channels),
	}
}

func (h *TableHandle) Append(ctx context.Context, r domain.Reading) error {
	if len(r.Values) != h.channels {
		return fmt.Errorf("sink append: reading has %d values, table expects %d", len(r.Values), h.channels)
	}
	args := make([]any, 0, 2+len(r.Values))
	args = append(args, r.SourceTimestamp, r.ObservedAt)
	for _, v := range r.Values {
		args = append(args, v)
	}
	if _, err := h.db.ExecContext(ctx, h.query, args...); err != nil {
		return fmt.Errorf("sink append: %w", err)
	}
	return nil
}

func (h *TableHandle) Close() error { return h.db.Close() }

func buildInsert(table string, channels []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (source_timestamp, observed_at")
	for _, c := range channels {
		b.WriteString(", ")
		b.WriteString(c)
	}
	b.WriteString(") VALUES ($1,$2")
	for i := range channels {
		fmt.Fprintf(&b, ",$%d", i+3)
	}
	b.WriteString(") ON CONFLICT (source_timestamp, observed_at) DO NOTHING")
	return b.String()
}

var (
	_ ports.Sink   = (*PostgresSink)(nil)
	_ ports.Handle = (*TableHandle)(nil)
)
