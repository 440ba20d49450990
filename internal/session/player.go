package session

import (
	"sort"
	"strconv"

	"necroverse/internal/swf"
	"necroverse/internal/trace"
)

// Request is a GetURL issued by a script. Loading is left to the host.
type Request struct {
	URL    string
	Window string
	Method string // "", "GET" or "POST"
}

// player drives the main timeline of a movie. It implements
// avm1.Timeline; jumps take effect at the next Step so a frame script
// never re-enters the timeline it is running on.
type player struct {
	movie   *swf.Movie
	tr      trace.Tracer
	current int
	playing bool
	entered bool // current frame's actions have run
	shown   int  // frame the display list reflects
	target  string

	display  map[uint16]swf.Placement
	requests []Request
}

func newPlayer(m *swf.Movie, tr trace.Tracer) *player {
	return &player{movie: m, tr: tr, playing: true, shown: -1, display: make(map[uint16]swf.Placement)}
}

func (p *player) rooted() bool {
	switch p.target {
	case "", "/", "_root", "_level0":
		return true
	}
	trace.Point(p.tr, trace.ScopeUnit, "timeline-target", "ignored for "+p.target)
	return false
}

func (p *player) Play() {
	if p.rooted() {
		p.playing = true
	}
}

func (p *player) Stop() {
	if p.rooted() {
		p.playing = false
	}
}

func (p *player) NextFrame() {
	if p.rooted() {
		p.jump(p.current+1, false)
	}
}

func (p *player) PrevFrame() {
	if p.rooted() {
		p.jump(p.current-1, false)
	}
}

func (p *player) GotoFrame(index int, play bool) {
	if p.rooted() {
		p.jump(index, play)
	}
}

func (p *player) GotoLabel(label string, play bool) bool {
	idx, ok := p.movie.FrameByLabel(label)
	if !ok {
		return false
	}
	if p.rooted() {
		p.jump(idx, play)
	}
	return true
}

func (p *player) SetTarget(path string) { p.target = path }

func (p *player) GetURL(url, window string, method int) {
	r := Request{URL: url, Window: window}
	switch method {
	case 1:
		r.Method = "GET"
	case 2:
		r.Method = "POST"
	}
	p.requests = append(p.requests, r)
	trace.Point(p.tr, trace.ScopeUnit, "get-url", url)
}

func (p *player) CloneSprite(source, target string, depth int) {
	for _, pl := range p.display {
		if pl.Name != source {
			continue
		}
		pl.Name = target
		pl.Depth = uint16(depth)
		p.display[pl.Depth] = pl
		return
	}
	trace.Point(p.tr, trace.ScopeUnit, "clone-sprite", "no instance named "+source)
}

func (p *player) RemoveSprite(target string) {
	for depth, pl := range p.display {
		if pl.Name == target {
			delete(p.display, depth)
			return
		}
	}
}

func (p *player) CurrentFrame() int { return p.current }

func (p *player) TotalFrames() int {
	if n := len(p.movie.Frames); n > 0 {
		return n
	}
	return 1
}

// jump moves to index, clamped to the timeline. The target frame is shown
// and its actions run at the next Step.
func (p *player) jump(index int, play bool) {
	index = min(max(index, 0), p.TotalFrames()-1)
	p.playing = play
	if index == p.current && p.entered {
		return
	}
	p.current = index
	p.entered = false
	trace.Point(p.tr, trace.ScopeUnit, "goto", strconv.Itoa(index))
}

// advance picks the frame the next Step shows and marks it entered. It
// reports false when the timeline is stopped on a frame that already ran.
func (p *player) advance() bool {
	if p.entered {
		if !p.playing {
			return false
		}
		p.current++
		if p.current >= p.TotalFrames() {
			p.current = 0
		}
	}
	p.show(p.current)
	p.entered = true
	return true
}

// show brings the display list to its state after frame index.
func (p *player) show(index int) {
	if index == p.shown {
		return
	}
	if index != p.shown+1 {
		clear(p.display)
		for i := 0; i < index && i < len(p.movie.Frames); i++ {
			p.apply(p.movie.Frames[i])
		}
	}
	if index < len(p.movie.Frames) {
		p.apply(p.movie.Frames[index])
	}
	p.shown = index
}

func (p *player) apply(f swf.Frame) {
	for _, r := range f.Removals {
		delete(p.display, r.Depth)
	}
	for _, pl := range f.Placements {
		old, exists := p.display[pl.Depth]
		if pl.Move && exists {
			if pl.HasCharacter {
				old.CharacterID = pl.CharacterID
			}
			if pl.Matrix != nil {
				old.Matrix = pl.Matrix
			}
			if pl.Color != nil {
				old.Color = pl.Color
			}
			if pl.Ratio != nil {
				old.Ratio = pl.Ratio
			}
			if pl.Name != "" {
				old.Name = pl.Name
			}
			p.display[pl.Depth] = old
			continue
		}
		if pl.HasCharacter {
			p.display[pl.Depth] = pl
		}
	}
}

// displayList returns the placed characters by ascending depth.
func (p *player) displayList() []swf.Placement {
	out := make([]swf.Placement, 0, len(p.display))
	for _, pl := range p.display {
		out = append(out, pl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out
}
