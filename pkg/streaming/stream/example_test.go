package stream_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// Example demonstrates piping a readable through a transform into a writable.
func Example() {
	loop := eventloop.New()

	words := []string{"stream", "all", "the", "things"}
	next := 0
	src := stream.NewReadable(loop, stream.SourceFunc(func(s *stream.Stream, _ int) {
		if next == len(words) {
			s.Push(nil)
			return
		}
		s.Push(words[next] + " ")
		next++
	}))

	upper := stream.NewTransform(loop, stream.TransformFunc(func(_ *stream.Stream, c stream.Chunk, done func(error, any)) {
		done(nil, strings.ToUpper(string(c.Bytes())))
	}))

	var out strings.Builder
	dest := stream.NewWritable(loop, stream.SinkFunc(func(_ *stream.Stream, c stream.Chunk, done func(error)) {
		out.Write(c.Bytes())
		done(nil)
	}))
	dest.OnFinish(func() { fmt.Println(strings.TrimSpace(out.String())) })

	src.Pipe(upper).Pipe(dest)

	if err := loop.Run(context.Background()); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	// Output: STREAM ALL THE THINGS
}

// Example_backpressure shows Write reporting a full buffer and "drain"
// signalling that writing may resume.
func Example_backpressure() {
	loop := eventloop.New()

	cfg := stream.DefaultConfig()
	cfg.HighWaterMark = 4
	w := stream.NewWritableWithConfig(loop, stream.SinkFunc(func(s *stream.Stream, _ stream.Chunk, done func(error)) {
		s.Loop().Post(func() { done(nil) })
	}), cfg)

	fmt.Println(w.Write("ab"))
	fmt.Println(w.Write("cd"))
	w.OnDrain(func() { fmt.Println("drain") })

	_ = loop.Run(context.Background())
	// Output:
	// true
	// false
	// drain
}

// Example_objectMode demonstrates paused-mode reads of arbitrary values.
func Example_objectMode() {
	loop := eventloop.New()

	cfg := stream.DefaultConfig()
	cfg.ObjectMode = true
	r := stream.NewReadableWithConfig(loop, nil, cfg)
	r.Push(map[string]int{"id": 1})
	r.Push(map[string]int{"id": 2})
	r.Push(nil)

	r.OnReadable(func() {
		for v := r.Read(); v != nil; v = r.Read() {
			fmt.Println(v.(map[string]int)["id"])
		}
	})
	r.OnEnd(func() { fmt.Println("end") })

	_ = loop.Run(context.Background())
	// Output:
	// 1
	// 2
	// end
}
