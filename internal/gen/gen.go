package gen

import (
	"fmt"
	"math"

	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/markov"
	"github.com/roach88/stochos/internal/sieve"
)

// Defaults for generator options.
const (
	DefaultRetries  = 64
	DefaultSearch   = 4096
	DefaultVelocity = 100
	DefaultDuration = 0.25

	// MinInterArrival replaces non-positive inter-arrival draws so local
	// timestamps stay strictly increasing.
	MinInterArrival = 1e-6

	// MinDuration is the shortest event duration, in seconds.
	MinDuration = 0.01
)

const paramKind dist.Kind = "generator"

// Generator is a lazy, infinite or session-bounded event stream.
type Generator interface {
	// Name identifies the generator within a scene.
	Name() string

	// Next returns the next event in local time. Errors are
	// SieveExhaustionError, markov.InvalidStateError or ErrEndOfStream.
	Next() (ir.Event, error)
}

// Span is an inclusive integer range.
type Span = markov.Span

// FullSpan is the MIDI data byte range.
var FullSpan = Span{Low: 0, High: 127}

type holds struct {
	timing, value, velocity, duration, channel dist.Hold
}

// Option configures the parts shared by every generator.
type Option func(*common)

// common holds the state shared by every generator type.
type common struct {
	name     string
	rng      dist.RNG
	kind     ir.Kind
	channel  int
	sieve    *sieve.Sieve
	retries  int
	search   int
	span     Span
	quantize bool
	velocity dist.Field
	duration dist.Field

	// chanField, when set, draws the channel of every event.
	chanField *dist.Field

	// hold is the sample-and-hold state of the fields with a hold time.
	hold holds

	// last is the previous local timestamp, or -1 before the first event.
	last float64
}

// WithSeed seeds the generator's random state.
func WithSeed(seed uint64) Option {
	return func(c *common) { c.rng = dist.NewRNG(seed) }
}

// WithRNG sets the generator's random state directly.
func WithRNG(rng dist.RNG) Option {
	return func(c *common) { c.rng = rng }
}

// WithKind sets the event kind. Defaults to note.
func WithKind(k ir.Kind) Option {
	return func(c *common) { c.kind = k }
}

// WithChannel sets the MIDI channel, 0..15.
func WithChannel(ch int) Option {
	return func(c *common) { c.channel = ch }
}

// WithChannelField draws each event's channel from f, rounded and clamped
// to 0..15. It overrides WithChannel.
func WithChannelField(f dist.Field) Option {
	return func(c *common) { c.chanField = &f }
}

// WithSieve restricts drawn values to those the sieve accepts.
func WithSieve(s *sieve.Sieve) Option {
	return func(c *common) { c.sieve = s }
}

// WithRetries bounds how many rejected candidates are redrawn before the
// generator fails with SieveExhaustionError. Defaults to DefaultRetries.
func WithRetries(n int) Option {
	return func(c *common) { c.retries = n }
}

// WithSearchLimit bounds the structural search a rhythm generator runs for
// its next accepted position. Defaults to DefaultSearch steps.
func WithSearchLimit(n int) Option {
	return func(c *common) { c.search = n }
}

// WithSpan clamps drawn values to [lo, hi]. Defaults to 0..127.
func WithSpan(lo, hi int) Option {
	return func(c *common) { c.span = Span{Low: lo, High: hi} }
}

// WithQuantize snaps each candidate to the nearest sieve-accepted value in
// the span instead of rejecting it. Ties resolve downward.
func WithQuantize(on bool) Option {
	return func(c *common) { c.quantize = on }
}

// WithVelocity sets the velocity (or control level) field.
func WithVelocity(f dist.Field) Option {
	return func(c *common) { c.velocity = f }
}

// WithDuration sets the duration field, in seconds.
func WithDuration(f dist.Field) Option {
	return func(c *common) { c.duration = f }
}

func newCommon(name string, opts []Option) (common, error) {
	vel, _ := dist.NewConstant(DefaultVelocity)
	dur, _ := dist.NewConstant(DefaultDuration)
	c := common{
		name:     name,
		rng:      dist.NewRNG(ir.SeedFor(0, name)),
		kind:     ir.KindNote,
		retries:  DefaultRetries,
		search:   DefaultSearch,
		span:     FullSpan,
		velocity: dist.NewField(vel),
		duration: dist.NewField(dur),
		last:     -1,
	}
	for _, opt := range opts {
		opt(&c)
	}

	switch {
	case name == "":
		return c, invalid("name", "must not be empty")
	case !ir.ValidKinds[c.kind]:
		return c, invalid("kind", "unknown event kind %q", c.kind)
	case c.channel < 0 || c.channel > 15:
		return c, invalid("channel", "must be in 0..15, got %d", c.channel)
	case c.retries < 0:
		return c, invalid("retries", "must not be negative, got %d", c.retries)
	case c.search <= 0:
		return c, invalid("search", "must be positive, got %d", c.search)
	case c.span.Low > c.span.High:
		return c, invalid("span", "low %d exceeds high %d", c.span.Low, c.span.High)
	}
	return c, nil
}

// Name implements Generator.
func (c *common) Name() string { return c.name }

// pickValue draws candidates from f at local time now until one passes the
// sieve, redrawing at most c.retries times. A rejected held value is
// released so the retry draws afresh. Values are rounded and clamped to the
// span.
func (c *common) pickValue(f dist.Field, now float64, rng dist.RNG) (int, dist.RNG, bool) {
	for attempt := 0; attempt <= c.retries; attempt++ {
		var v float64
		v, rng = f.SampleAt(now, &c.hold.value, rng)
		n, ok := c.accept(v)
		if ok {
			return n, rng, true
		}
		c.hold.value.Release()
	}
	return 0, rng, false
}

func (c *common) accept(v float64) (int, bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	n := clampInt(int(math.Round(clampFloat(v, -1e9, 1e9))), c.span.Low, c.span.High)
	if c.sieve == nil || c.sieve.Accepts(n) {
		return n, true
	}
	if !c.quantize {
		return 0, false
	}
	for d := 1; d <= c.span.High-c.span.Low; d++ {
		if lo := n - d; lo >= c.span.Low && c.sieve.Accepts(lo) {
			return lo, true
		}
		if hi := n + d; hi <= c.span.High && c.sieve.Accepts(hi) {
			return hi, true
		}
	}
	return 0, false
}

// finish draws velocity, duration and, with a channel field, the channel,
// then applies the MIDI clamps.
func (c *common) finish(ev *ir.Event, velocity dist.Field, rng dist.RNG) dist.RNG {
	var vel, dur float64
	vel, rng = velocity.SampleAt(ev.Local, &c.hold.velocity, rng)
	dur, rng = c.duration.SampleAt(ev.Local, &c.hold.duration, rng)
	if c.chanField != nil {
		var ch float64
		ch, rng = c.chanField.SampleAt(ev.Local, &c.hold.channel, rng)
		if math.IsNaN(ch) {
			ch = 0
		}
		ev.Channel = clampInt(int(math.Round(clampFloat(ch, -1e9, 1e9))), 0, 15)
	}
	lo := 1
	if c.kind == ir.KindControl {
		lo = 0
	}
	ev.Velocity = clampInt(int(math.Round(clampFloat(vel, -1e9, 1e9))), lo, 127)
	if math.IsNaN(dur) || dur < MinDuration {
		dur = MinDuration
	}
	ev.Duration = dur
	return rng
}

func (c *common) event(local float64, value int) ir.Event {
	return ir.Event{
		Local:     local,
		Generator: c.name,
		Kind:      c.kind,
		Value:     value,
		Channel:   c.channel,
	}
}

// step advances from the previous timestamp by dt, never by less than
// MinInterArrival and never to an equal float.
func step(last, dt float64) float64 {
	if !(dt >= MinInterArrival) {
		dt = MinInterArrival
	}
	base := math.Max(last, 0)
	t := base + dt
	if t <= last {
		t = math.Nextafter(last, math.Inf(1))
	}
	return t
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func invalid(param, format string, args ...any) error {
	return &dist.InvalidParameterError{Kind: paramKind, Param: param, Message: fmt.Sprintf(format, args...)}
}
