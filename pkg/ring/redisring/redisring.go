// Package redisring is a cross-segment ring transport (spec.md §4.1
// "Cross-segment variant"): a master Ring's ready elements are mirrored to
// a remote consumer over a Redis stream, standing in for the original's
// bulk-DMA copy_to_ring between mapped memory segments.
package redisring

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// Master pushes ring elements to a Redis stream; one per cross-segment
// ring the topology wires up (spec.md §6 "Engine assignment" spans
// multiple hosts in the multi-segment deployment).
type Master struct {
	Client *redis.Client
	Stream string
}

// NewMaster dials addr and returns a Master publishing onto stream.
func NewMaster(addr, stream string) *Master {
	return &Master{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Stream: stream,
	}
}

// Push mirrors one ring element's payload to the stream, the stand-in for
// the original's copy_to_ring(dst_in_remote, src_local, n).
func (m *Master) Push(ctx context.Context, payload []byte) error {
	_, err := m.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: m.Stream,
		Values: map[string]interface{}{"data": payload},
	}).Result()
	if err != nil {
		return fmt.Errorf("redisring: push: %w: %v", mosaic.ErrTransport, err)
	}
	return nil
}

// Close releases the underlying client.
func (m *Master) Close() error { return m.Client.Close() }

// Shadow reads mirrored elements off the stream in order, the remote side
// of the master/shadow pair. NewShadow creates the stream and consumer
// group itself if absent and does not wait for a master to connect.
type Shadow struct {
	Client *redis.Client
	Stream string
	Group  string

	lastID string
}

// NewShadow dials addr, ensures the consumer group exists (creating the
// stream if needed), and returns a Shadow ready to Pull.
func NewShadow(ctx context.Context, addr, stream, group string) (*Shadow, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	err := c.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		c.Close()
		return nil, fmt.Errorf("redisring: creating consumer group: %w: %v", mosaic.ErrTransport, err)
	}
	return &Shadow{Client: c, Stream: stream, Group: group, lastID: ">"}, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

// Pull blocks until the next mirrored element arrives and returns its
// payload, acking it on receipt.
func (s *Shadow) Pull(ctx context.Context, consumer string) ([]byte, error) {
	res, err := s.Client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.Group,
		Consumer: consumer,
		Streams:  []string{s.Stream, s.lastID},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redisring: pull: %w: %v", mosaic.ErrTransport, err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, fmt.Errorf("redisring: pull: empty result: %w", mosaic.ErrTransport)
	}
	msg := res[0].Messages[0]
	s.Client.XAck(ctx, s.Stream, s.Group, msg.ID)
	data, _ := msg.Values["data"].(string)
	return []byte(data), nil
}

// Close releases the underlying client.
func (s *Shadow) Close() error { return s.Client.Close() }
