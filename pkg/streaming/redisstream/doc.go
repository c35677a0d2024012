/*
Package redisstream bridges streams and Redis Streams.

NewSink appends every written chunk to a Redis stream with XADD. Buffered
chunks are sent as one pipelined batch. Ending the sink appends an end
marker entry, so a reader knows the sequence is complete.

NewSource reads a Redis stream with XREAD, starting after Config.StartID,
and ends when it meets the end marker.

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	sink := redisstream.NewSink(loop, client, "events", redisstream.DefaultConfig())
	pipeline.Run(onDone, src, sink)

	// elsewhere
	source := redisstream.NewSource(loop, client, "events", redisstream.DefaultConfig())
	pipeline.Run(onDone, source, dst)

In byte mode each entry carries the chunk in Config.Field. In object mode a
chunk may also be a map[string]any, which becomes the entry's fields, and
the source yields each entry's field map.

Redis failures are reported as *RedisError.
*/
package redisstream
