// Package playback keeps the single authoritative playback position of a
// video and arbitrates between the player's own time updates, seeks
// requested by the user and the position carried in the page URL.
package playback

import (
	"log/slog"
	"math"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/presentable/presentable/internal/timestamp"
)

// Video is the player element. Duration returns NaN until metadata loads.
type Video interface {
	CurrentTime() float64
	SetCurrentTime(offset float64)
	Duration() float64
	Pause()
}

// Location is the navigable page location holding the shareable position.
type Location interface {
	Path() string
	Query() url.Values
	Push(path string, query url.Values)
}

// Observer is told about every accepted change of the playback offset.
type Observer interface {
	OffsetChanged(offset float64)
}

type ObserverFunc func(offset float64)

func (f ObserverFunc) OffsetChanged(offset float64) { f(offset) }

// PositionParam is the query parameter carrying the position in seconds.
const PositionParam = "t"

const (
	DefaultSeekGrace     = 750 * time.Millisecond
	DefaultSeekTolerance = 0.5
)

// maxPendingEchoes bounds the URL writes remembered while waiting for the
// location to report them back. Routers may coalesce pushes, so some echoes
// never arrive.
const maxPendingEchoes = 32

type SeekOptions struct {
	// PauseAfter stops playback once the seek is issued. Used for "show me
	// this moment" navigation, not for transcript sentences.
	PauseAfter bool
}

type Config struct {
	Video    Video
	Location Location
	Clock    clockwork.Clock
	// SeekGrace is how long after a seek native time reports that disagree
	// with the seek target are treated as stale.
	SeekGrace time.Duration
	// SeekTolerance is the distance in seconds within which a native report
	// confirms a pending seek.
	SeekTolerance float64
}

type Controller struct {
	video     Video
	location  Location
	clock     clockwork.Clock
	grace     time.Duration
	tolerance float64

	mu          sync.Mutex
	offset      float64
	seekPending bool
	seekTarget  float64
	seekAt      time.Time
	urlApplied  bool
	lastApplied int
	// pending holds the positions pushed to the location, oldest first, whose
	// echo has not been seen yet.
	pending   []int
	observers []Observer
}

func New(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.SeekGrace <= 0 {
		cfg.SeekGrace = DefaultSeekGrace
	}
	if cfg.SeekTolerance <= 0 {
		cfg.SeekTolerance = DefaultSeekTolerance
	}
	return &Controller{
		video:     cfg.Video,
		location:  cfg.Location,
		clock:     cfg.Clock,
		grace:     cfg.SeekGrace,
		tolerance: cfg.SeekTolerance,
	}
}

// Observe registers o for offset changes.
func (c *Controller) Observe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Offset returns the authoritative playback position.
func (c *Controller) Offset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// ReportNativeTime records a time update from the player. It never seeks.
// Reports that arrive shortly after a seek and still carry the pre-seek
// position are dropped so the newer seek wins. It reports whether the offset
// was accepted.
func (c *Controller) ReportNativeTime(offset float64) bool {
	if math.IsNaN(offset) || offset < 0 {
		offset = 0
	}

	c.mu.Lock()
	if c.seekPending {
		if c.clock.Since(c.seekAt) < c.grace && math.Abs(offset-c.seekTarget) > c.tolerance {
			c.mu.Unlock()
			return false
		}
		c.seekPending = false
	}
	c.offset = offset
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	notify(observers, offset)
	return true
}

// SeekTo moves playback to offset, clamped to the video's duration when it is
// known. The tracked offset is updated before the player is touched so that
// highlighting never lags behind the seek. It returns the offset applied.
func (c *Controller) SeekTo(offset float64, opts SeekOptions) float64 {
	duration := math.NaN()
	if c.video != nil {
		duration = c.video.Duration()
	}
	target := timestamp.Clamp(offset, duration)
	seconds := timestamp.WholeSeconds(target)

	c.mu.Lock()
	c.offset = target
	c.seekPending = true
	c.seekTarget = target
	c.seekAt = c.clock.Now()
	if c.location != nil {
		c.pending = append(c.pending, seconds)
		if len(c.pending) > maxPendingEchoes {
			c.pending = c.pending[len(c.pending)-maxPendingEchoes:]
		}
	}
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	if c.video != nil {
		c.video.SetCurrentTime(target)
		if opts.PauseAfter {
			c.video.Pause()
		}
	}
	if c.location != nil {
		query := c.location.Query()
		if query == nil {
			query = url.Values{}
		}
		query.Set(PositionParam, strconv.Itoa(seconds))
		c.location.Push(c.location.Path(), query)
	}

	notify(observers, target)
	return target
}

// SeekToTimestamp seeks to a timestamp string such as a transcript sentence's
// start. Malformed input leaves playback untouched.
func (c *Controller) SeekToTimestamp(text string, opts SeekOptions) (float64, error) {
	offset, err := timestamp.ParseBound(text)
	if err != nil {
		return c.Offset(), err
	}
	return c.SeekTo(offset, opts), nil
}

// SyncFromURL applies a position parameter read from the page URL. The first
// present value seeks once. Later values that echo any position this
// controller pushed and has not seen back yet, even one older than the latest
// seek, are consumed and ignored, as are repeats of the last applied value.
// Anything else is a fresh deep link. It reports whether a seek happened.
func (c *Controller) SyncFromURL(param *float64) bool {
	if param == nil {
		return false
	}
	seconds := timestamp.WholeSeconds(*param)

	c.mu.Lock()
	if c.consumeEcho(seconds) || (c.urlApplied && seconds == c.lastApplied) {
		c.mu.Unlock()
		return false
	}
	c.urlApplied = true
	c.lastApplied = seconds
	c.mu.Unlock()

	slog.Debug("playback: applying position from url", "offset", *param)
	c.SeekTo(*param, SeekOptions{})
	return true
}

// consumeEcho removes the oldest pending write of seconds. c.mu must be held.
func (c *Controller) consumeEcho(seconds int) bool {
	i := slices.Index(c.pending, seconds)
	if i < 0 {
		return false
	}
	c.pending = slices.Delete(c.pending, i, i+1)
	return true
}

// SyncFromQuery reads the position parameter from query and applies it.
func (c *Controller) SyncFromQuery(query url.Values) bool {
	offset, ok := timestamp.ParseOffsetParam(query.Get(PositionParam))
	if !ok {
		return c.SyncFromURL(nil)
	}
	return c.SyncFromURL(&offset)
}

func notify(observers []Observer, offset float64) {
	for _, o := range observers {
		o.OffsetChanged(offset)
	}
}
