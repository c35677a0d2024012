package redisstream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

type sink struct {
	client     redis.Cmdable
	key        string
	config     Config
	objectMode bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSink creates a writable stream that appends each chunk to the Redis
// stream at key.
func NewSink(loop *eventloop.Loop, client redis.Cmdable, key string, config Config) *stream.Stream {
	config = config.withDefaults()
	if config.Stream.Name == "" {
		config.Stream.Name = module
	}
	ctx, cancel := context.WithCancel(context.Background())
	sk := &sink{
		client:     client,
		key:        key,
		config:     config,
		objectMode: config.Stream.ObjectMode || config.Stream.WritableObjectMode,
		ctx:        ctx,
		cancel:     cancel,
	}
	return stream.NewWritableWithConfig(loop, sk, config.Stream)
}

func (sk *sink) values(c stream.Chunk) (map[string]any, error) {
	switch v := c.Data.(type) {
	case map[string]any:
		if sk.objectMode {
			return v, nil
		}
	case []byte, string:
		return map[string]any{sk.config.Field: c.Bytes()}, nil
	}
	return nil, fmt.Errorf("%w: got %T", stream.ErrInvalidChunk, c.Data)
}

func (sk *sink) args(values map[string]any) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: sk.key,
		MaxLen: sk.config.MaxLen,
		Approx: sk.config.MaxLen > 0,
		Values: values,
	}
}

func (sk *sink) Write(s *stream.Stream, c stream.Chunk, done func(error)) {
	values, err := sk.values(c)
	if err != nil {
		done(err)
		return
	}
	sk.exec(s, "xadd", func(ctx context.Context) error {
		return sk.client.XAdd(ctx, sk.args(values)).Err()
	}, done)
}

// Writev sends all buffered chunks in one pipeline.
func (sk *sink) Writev(s *stream.Stream, chunks []stream.Chunk, done func(error)) {
	batch := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		values, err := sk.values(c)
		if err != nil {
			done(err)
			return
		}
		batch = append(batch, values)
	}
	sk.exec(s, "xadd pipeline", func(ctx context.Context) error {
		pipe := sk.client.Pipeline()
		for _, values := range batch {
			pipe.XAdd(ctx, sk.args(values))
		}
		_, err := pipe.Exec(ctx)
		return err
	}, done)
}

// Final appends the end marker.
func (sk *sink) Final(s *stream.Stream, done func(error)) {
	sk.exec(s, "xadd eof", func(ctx context.Context) error {
		return sk.client.XAdd(ctx, sk.args(map[string]any{EOFField: "1"})).Err()
	}, func(err error) {
		if err == nil {
			s.Logger().Debug().Str("key", sk.key).Msg("redis stream sealed")
		}
		done(err)
	})
}

func (sk *sink) Destroy(_ *stream.Stream, err error, done func(error)) {
	sk.cancel()
	done(err)
}

// exec runs op off the loop with the configured timeout.
func (sk *sink) exec(s *stream.Stream, op string, fn func(ctx context.Context) error, done func(error)) {
	eventloop.Async(s.Loop(), func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(sk.ctx, sk.config.Timeout)
		defer cancel()
		return struct{}{}, fn(ctx)
	}, func(_ struct{}, err error) {
		if err != nil {
			err = &RedisError{Operation: op, Key: sk.key, Err: err}
		}
		done(err)
	})
}
