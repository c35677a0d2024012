/*
Package transforms provides ready-made Transform streams.

Object-mode operators (Map, Filter, Skip, Limit, Distinct, Peek) apply a
typed function to each chunk. A chunk of the wrong type fails the stream
with an error wrapping stream.ErrInvalidChunk.

	loop := eventloop.New()
	src := sources.FromSlice(loop, []int{1, 2, 3, 4})
	even := transforms.Filter(loop, func(n int) bool { return n%2 == 0 })
	square := transforms.Map(loop, func(n int) int { return n * n })

Byte-mode transforms:

  - Gzip compresses its input and writes the gzip trailer on end.
  - Throttle delays each chunk until a rate limiter grants it.

All of them are ordinary streams and compose with pipeline.Run and
pipeline.Compose.
*/
package transforms
