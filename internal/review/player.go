package review

import (
	"math"
	"time"
)

// Player is a simulated video element driven by tick messages.
type Player struct {
	current  float64
	duration float64
	playing  bool
}

func NewPlayer(duration float64) *Player {
	return &Player{duration: duration}
}

func (p *Player) CurrentTime() float64 { return p.current }
func (p *Player) Duration() float64    { return p.duration }
func (p *Player) Pause()               { p.playing = false }
func (p *Player) Play()                { p.playing = true }
func (p *Player) Playing() bool        { return p.playing }

func (p *Player) SetCurrentTime(offset float64) {
	p.current = offset
}

func (p *Player) Toggle() {
	p.playing = !p.playing
}

// Advance moves playback forward by elapsed while playing and stops at the
// end of a known duration.
func (p *Player) Advance(elapsed time.Duration) {
	if !p.playing {
		return
	}
	p.current += elapsed.Seconds()
	if !math.IsNaN(p.duration) && p.duration > 0 && p.current >= p.duration {
		p.current = p.duration
		p.playing = false
	}
}
