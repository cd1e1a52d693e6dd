package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "bumpwatch.bumps"

// Publisher delivers record changes.
type Publisher interface {
	Publish(bump.Change)
	Close()
}

// Message is the JSON body of a change event.
type Message struct {
	ID          string    `json:"id"`
	StreetName  string    `json:"street_name"`
	Status      string    `json:"status"`
	Health      *int      `json:"health,omitempty"`
	CarCount    int64     `json:"car_count"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
}

// Encode builds the subject and body for c.
func Encode(prefix string, c bump.Change) (string, []byte, error) {
	msg := Message{
		ID:          c.Record.ID,
		StreetName:  c.Record.StreetName,
		Status:      string(c.Record.Status()),
		CarCount:    c.Record.CarCount,
		Source:      string(c.Source),
		LastUpdated: c.Record.LastUpdated,
	}
	if h, ok := c.Record.Condition.Health(); ok {
		msg.Health = &h
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("events: encode %s: %w", c.Record.ID, err)
	}
	return subjectFor(prefix, c.Record.ID), data, nil
}

// subjectFor replaces characters NATS treats as token separators or
// wildcards so any record id yields a single subject token.
func subjectFor(prefix, id string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return prefix + "." + r.Replace(id)
}

// NATS publishes changes on a NATS connection.
type NATS struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials url. The connection reconnects on its own; Publish failures
// while disconnected are logged and dropped.
func Connect(url, prefix string) (*NATS, error) {
	if prefix == "" {
		prefix = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("bumpwatch-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("events: nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("events: nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	return &NATS{nc: nc, prefix: prefix}, nil
}

// Publish sends c. It never blocks on the network.
func (n *NATS) Publish(c bump.Change) {
	subject, data, err := Encode(n.prefix, c)
	if err != nil {
		slog.Error("events: encode failed", "id", c.Record.ID, "err", err)
		return
	}
	if err := n.nc.Publish(subject, data); err != nil {
		slog.Warn("events: publish failed", "subject", subject, "err", err)
	}
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() {
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
	}
}

// Nop discards every change. It is used when no NATS url is configured.
type Nop struct{}

func (Nop) Publish(bump.Change) {}
func (Nop) Close()              {}
