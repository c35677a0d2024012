package sources

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/streamflow/pkg/common/validation"
	"github.com/vnykmshr/streamflow/pkg/eventloop"
	"github.com/vnykmshr/streamflow/pkg/streaming/stream"
)

// CronConfig configures a cron source.
type CronConfig struct {
	// Limit ends the stream after this many ticks. 0 means unlimited.
	Limit int

	// Location is the time zone schedules are evaluated in.
	// Default: time.Local
	Location *time.Location

	// Stream configures the readable side. Object mode is always on.
	Stream stream.Config
}

// DefaultCronConfig returns a default configuration.
func DefaultCronConfig() CronConfig {
	return CronConfig{
		Location: time.Local,
		Stream:   stream.DefaultConfig(),
	}
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateCronExpression reports whether spec is a valid schedule. Both
// five-field and six-field (with seconds) expressions are accepted, as well
// as descriptors like "@hourly" or "@every 10s".
func ValidateCronExpression(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// cronSource pushes the time of every tick. It is push driven, so Pull has
// nothing to do.
type cronSource struct {
	scheduler *cron.Cron
	release   func()
	limit     int
	ticks     int
	stopped   bool
}

func (src *cronSource) Pull(*stream.Stream, int) {}

func (src *cronSource) tick(s *stream.Stream, at time.Time) {
	if src.stopped {
		return
	}
	src.ticks++
	s.Push(at)
	if src.limit > 0 && src.ticks >= src.limit {
		src.stop(s)
		s.Push(nil)
	}
}

func (src *cronSource) stop(s *stream.Stream) {
	if src.stopped {
		return
	}
	src.stopped = true
	src.scheduler.Stop()
	src.release()
	s.Logger().Debug().Int("ticks", src.ticks).Msg("cron source stopped")
}

func (src *cronSource) Destroy(s *stream.Stream, err error, done func(error)) {
	src.stop(s)
	done(err)
}

// Cron creates an object-mode readable that emits a time.Time every time
// spec fires. The loop is kept running while the schedule is active; it
// stops after config.Limit ticks or when the stream is destroyed.
func Cron(loop *eventloop.Loop, spec string, config CronConfig) (*stream.Stream, error) {
	if err := validation.ValidateNonNegative("sources", "Limit", config.Limit); err != nil {
		return nil, err
	}
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	cfg := config.Stream
	cfg.ObjectMode = true
	if cfg.Name == "" {
		cfg.Name = "cron"
	}

	src := &cronSource{
		scheduler: cron.New(cron.WithLocation(config.Location), cron.WithParser(cronParser)),
		limit:     config.Limit,
	}
	s := stream.NewReadableWithConfig(loop, src, cfg)
	src.scheduler.Schedule(schedule, cron.FuncJob(func() {
		at := time.Now().In(config.Location)
		loop.Post(func() { src.tick(s, at) })
	}))

	src.release = loop.Ref()
	src.scheduler.Start()
	s.Logger().Debug().Str("schedule", spec).Msg("cron source started")
	return s, nil
}
