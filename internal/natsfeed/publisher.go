// Package natsfeed publishes emitted detection records to a NATS subject
// as JSON, alongside the day log.
package natsfeed

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/camera.report/internal/monitoring"
	"github.com/banshee-data/camera.report/internal/records"
)

// Message is the payload published for each record.
type Message struct {
	Camera string         `json:"camera"`
	RunID  string         `json:"run_id,omitempty"`
	Record records.Record `json:"record"`
}

// Publisher implements pipeline.Sink. A Publisher without a connection
// accepts and drops every record.
type Publisher struct {
	mu        sync.Mutex
	conn      *nats.Conn
	publish   func(subject string, data []byte) error
	subject   string
	camera    string
	runID     string
	published int
	failed    int
}

// Connect dials url and returns a publisher for subject. An empty url
// returns a disabled publisher.
func Connect(url, subject, camera string) (*Publisher, error) {
	if url == "" {
		return &Publisher{subject: subject, camera: camera}, nil
	}

	opts := []nats.Option{
		nats.Name("camera.report tracker " + camera),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			monitoring.Logf("natsfeed: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			monitoring.Logf("natsfeed: reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			monitoring.Logf("natsfeed: connection closed")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	monitoring.Logf("natsfeed: publishing to %s on %s", subject, url)

	p := newPublisher(subject, camera, nc.Publish)
	p.conn = nc
	return p, nil
}

func newPublisher(subject, camera string, publish func(string, []byte) error) *Publisher {
	return &Publisher{subject: subject, camera: camera, publish: publish}
}

// Enabled reports whether records are actually sent.
func (p *Publisher) Enabled() bool {
	return p.publish != nil
}

// SetRun tags subsequent messages with a run id.
func (p *Publisher) SetRun(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = id
}

// Write publishes r. Publish failures are logged and counted but never
// returned, so a broker outage does not stop the day log.
func (p *Publisher) Write(r records.Record) error {
	if !p.Enabled() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.Marshal(Message{Camera: p.camera, RunID: p.runID, Record: r})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := p.publish(p.subject, data); err != nil {
		if p.failed == 0 {
			monitoring.Logf("natsfeed: publish to %s failed: %v", p.subject, err)
		}
		p.failed++
		return nil
	}
	p.published++
	return nil
}

// Counts returns how many records were published and how many failed.
func (p *Publisher) Counts() (published, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failed
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	defer p.conn.Close()
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	if p.failed > 0 {
		monitoring.Logf("natsfeed: %d of %d records failed to publish", p.failed, p.failed+p.published)
	}
	return nil
}
