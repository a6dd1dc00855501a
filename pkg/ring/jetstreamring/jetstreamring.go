// Package jetstreamring is the second cross-segment ring transport
// (spec.md §4.1 "Cross-segment variant", SPEC_FULL.md §B): functionally
// the same master/shadow mirroring as redisring, over a NATS JetStream
// durable subject instead of a Redis stream. Tests embed a nats-server
// in-process rather than requiring an external broker.
package jetstreamring

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// Master publishes mirrored ring elements onto a JetStream subject.
type Master struct {
	nc   *nats.Conn
	js   nats.JetStreamContext
	subj string
}

// NewMaster connects to url and ensures a durable stream backing subj
// exists, creating it if absent.
func NewMaster(url, streamName, subj string) (*Master, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("jetstreamring: connect: %w: %v", mosaic.ErrTransport, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstreamring: jetstream context: %w: %v", mosaic.ErrTransport, err)
	}
	if _, err := js.StreamInfo(streamName); err != nil {
		if _, err := js.AddStream(&nats.StreamConfig{Name: streamName, Subjects: []string{subj}}); err != nil {
			nc.Close()
			return nil, fmt.Errorf("jetstreamring: add stream: %w: %v", mosaic.ErrTransport, err)
		}
	}
	return &Master{nc: nc, js: js, subj: subj}, nil
}

// Push mirrors one ring element's payload, the stand-in for copy_to_ring.
func (m *Master) Push(ctx context.Context, payload []byte) error {
	if _, err := m.js.Publish(m.subj, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("jetstreamring: push: %w: %v", mosaic.ErrTransport, err)
	}
	return nil
}

// Close drains and closes the connection.
func (m *Master) Close() error {
	return m.nc.Drain()
}

// Shadow consumes mirrored elements off the durable stream in order.
type Shadow struct {
	sub *nats.Subscription
	nc  *nats.Conn
}

// NewShadow connects to url and creates a durable pull consumer on subj
// bound to streamName. It does not wait for the master: with
// RetryOnFailedConnect, Connect returns without blocking, and the pull
// subscribe fails with ErrTransport if the stream does not exist yet.
func NewShadow(url, streamName, subj, durable string) (*Shadow, error) {
	nc, err := nats.Connect(url, nats.Timeout(10*time.Second), nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("jetstreamring: connect: %w: %v", mosaic.ErrTransport, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstreamring: jetstream context: %w: %v", mosaic.ErrTransport, err)
	}
	sub, err := js.PullSubscribe(subj, durable, nats.BindStream(streamName))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstreamring: pull subscribe: %w: %v", mosaic.ErrTransport, err)
	}
	return &Shadow{sub: sub, nc: nc}, nil
}

// Pull blocks until the next mirrored element arrives and returns its
// payload, acking it on receipt.
func (s *Shadow) Pull(ctx context.Context) ([]byte, error) {
	msgs, err := s.sub.Fetch(1, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("jetstreamring: pull: %w: %v", mosaic.ErrTransport, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("jetstreamring: pull: empty result: %w", mosaic.ErrTransport)
	}
	msg := msgs[0]
	_ = msg.Ack()
	return msg.Data, nil
}

// Close unsubscribes and closes the connection.
func (s *Shadow) Close() error {
	_ = s.sub.Unsubscribe()
	s.nc.Close()
	return nil
}

// EmbeddedServer starts an in-process nats-server with JetStream enabled,
// for tests that exercise Master/Shadow without an external broker.
type EmbeddedServer struct {
	srv *server.Server
}

// StartEmbedded boots a JetStream-enabled server on an OS-assigned port
// and waits for it to accept connections.
func StartEmbedded(storeDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("jetstreamring: starting embedded server: %w: %v", mosaic.ErrTransport, err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("jetstreamring: embedded server not ready: %w", mosaic.ErrTransport)
	}
	return &EmbeddedServer{srv: srv}, nil
}

// URL returns the client URL for this embedded server.
func (e *EmbeddedServer) URL() string { return e.srv.ClientURL() }

// Shutdown stops the embedded server.
func (e *EmbeddedServer) Shutdown() { e.srv.Shutdown() }
