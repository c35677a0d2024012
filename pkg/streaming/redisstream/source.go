package redisstream

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

type source struct {
	client     redis.Cmdable
	key        string
	config     Config
	objectMode bool
	lastID     string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSource creates a readable stream over the Redis stream at key. It
// reads entries after config.StartID and ends at the end marker.
func NewSource(loop *eventloop.Loop, client redis.Cmdable, key string, config Config) *stream.Stream {
	config = config.withDefaults()
	if config.Stream.Name == "" {
		config.Stream.Name = module
	}
	ctx, cancel := context.WithCancel(context.Background())
	src := &source{
		client:     client,
		key:        key,
		config:     config,
		objectMode: config.Stream.ObjectMode || config.Stream.ReadableObjectMode,
		lastID:     config.StartID,
		ctx:        ctx,
		cancel:     cancel,
	}
	return stream.NewReadableWithConfig(loop, src, config.Stream)
}

func (src *source) Pull(s *stream.Stream, size int) {
	eventloop.Async(s.Loop(), func() ([]redis.XStream, error) {
		return src.client.XRead(src.ctx, &redis.XReadArgs{
			Streams: []string{src.key, src.lastID},
			Count:   src.config.Count,
			Block:   src.config.Block,
		}).Result()
	}, func(res []redis.XStream, err error) {
		switch {
		case s.Destroyed():
			return
		case errors.Is(err, redis.Nil):
			src.Pull(s, size)
			return
		case err != nil:
			s.Destroy(&RedisError{Operation: "xread", Key: src.key, Err: err})
			return
		}
		if !src.deliver(s, res) {
			src.Pull(s, size)
		}
	})
}

// deliver pushes the fetched entries and reports whether anything was
// pushed, including the end of the stream.
func (src *source) deliver(s *stream.Stream, res []redis.XStream) bool {
	pushed := false
	for _, xs := range res {
		for _, msg := range xs.Messages {
			src.lastID = msg.ID
			if _, ok := msg.Values[EOFField]; ok {
				s.Logger().Debug().Str("key", src.key).Str("id", msg.ID).Msg("redis stream end marker")
				src.cancel()
				s.Push(nil)
				return true
			}
			if src.objectMode {
				s.Push(msg.Values)
				pushed = true
				continue
			}
			data, ok := msg.Values[src.config.Field].(string)
			if !ok {
				s.Logger().Warn().Str("id", msg.ID).Msg("entry without data field skipped")
				continue
			}
			s.Push([]byte(data))
			pushed = true
		}
	}
	return pushed
}

func (src *source) Destroy(_ *stream.Stream, err error, done func(error)) {
	src.cancel()
	done(err)
}
