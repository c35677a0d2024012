package stream

// recorder is a synchronous sink that remembers every chunk it receives.
type recorder struct {
	chunks []any
	writes int
}

func (r *recorder) Write(_ *Stream, c Chunk, done func(error)) {
	r.writes++
	r.chunks = append(r.chunks, chunkValue(c))
	done(nil)
}

// batchRecorder additionally accepts batched writes.
type batchRecorder struct {
	recorder
	batches [][]any
}

func (b *batchRecorder) Writev(_ *Stream, chunks []Chunk, done func(error)) {
	batch := make([]any, len(chunks))
	for i, c := range chunks {
		batch[i] = chunkValue(c)
	}
	b.batches = append(b.batches, batch)
	done(nil)
}

// asyncRecorder completes every write on a later loop task.
type asyncRecorder struct {
	recorder
	maxLength int
}

func (a *asyncRecorder) Write(s *Stream, c Chunk, done func(error)) {
	a.writes++
	a.chunks = append(a.chunks, chunkValue(c))
	if l := s.WritableLength(); l > a.maxLength {
		a.maxLength = l
	}
	s.Loop().Post(func() { done(nil) })
}

// sliceSource pushes one item per pull, then the EOF sentinel.
type sliceSource struct {
	items []any
	next  int
	pulls int
}

func (src *sliceSource) Pull(s *Stream, _ int) {
	src.pulls++
	if src.next >= len(src.items) {
		s.Push(nil)
		return
	}
	v := src.items[src.next]
	src.next++
	s.Push(v)
}

func chunkValue(c Chunk) any {
	if b, ok := c.Data.([]byte); ok {
		return string(b)
	}
	return c.Data
}

func objectConfig() Config {
	cfg := DefaultConfig()
	cfg.ObjectMode = true
	return cfg
}

func items(vs ...any) []any { return vs }

var (
	_ Source    = (*sliceSource)(nil)
	_ Sink      = (*recorder)(nil)
	_ BatchSink = (*batchRecorder)(nil)
	_ Sink      = (*asyncRecorder)(nil)
)
