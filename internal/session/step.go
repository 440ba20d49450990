package session

import (
	"context"
	"errors"
	"strconv"

	"necroverse/internal/jvm"
	"necroverse/internal/swf"
	"necroverse/internal/trace"
)

// ErrNotAnimation is returned by timeline operations on a class session.
var ErrNotAnimation = errors.New("module has no timeline")

// Step advances the main timeline by one frame and runs that frame's
// actions. The first Step runs every init action before frame 0. A
// stopped timeline whose frame already ran yields no results.
func (s *Session) Step(ctx context.Context) ([]Result, error) {
	if s.player == nil {
		return nil, ErrNotAnimation
	}
	var out []Result
	if !s.initRan {
		s.initRan = true
		for _, u := range s.units {
			if u.Kind == KindInit {
				out = append(out, s.runCode(ctx, u.Name))
			}
		}
	}
	if !s.player.advance() {
		return out, nil
	}
	idx := s.player.current
	ctx, span := trace.Start(ctx, s.tr, trace.ScopeUnit, "frame")
	defer span.WithExtra("frame", strconv.Itoa(idx)).End("")
	if idx >= len(s.mod.Movie.Frames) {
		return out, nil
	}
	for i := range s.mod.Movie.Frames[idx].Actions {
		name := "frame:" + strconv.Itoa(idx)
		if i > 0 {
			name += "#" + strconv.Itoa(i)
		}
		out = append(out, s.runCode(ctx, name))
	}
	return out, nil
}

// PlayFrames calls Step n times, stopping early when ctx is done.
func (s *Session) PlayFrames(ctx context.Context, n int) ([]Result, error) {
	var out []Result
	for range n {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.Step(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (s *Session) runCode(ctx context.Context, name string) Result {
	u := s.code[name]
	return s.avmResult(name, s.avm.Run(ctx, avmUnit(u)))
}

// CurrentFrame is the zero-based frame the timeline is on, or -1 for a
// class session.
func (s *Session) CurrentFrame() int {
	if s.player == nil {
		return -1
	}
	return s.player.current
}

// Playing reports whether the timeline advances on the next Step.
func (s *Session) Playing() bool { return s.player != nil && s.player.playing }

// DisplayList returns the characters currently placed on the main
// timeline by ascending depth.
func (s *Session) DisplayList() []swf.Placement {
	if s.player == nil {
		return nil
	}
	return s.player.displayList()
}

// Requests returns the GetURL requests scripts have issued so far.
func (s *Session) Requests() []Request {
	if s.player == nil {
		return nil
	}
	return append([]Request(nil), s.player.requests...)
}

// Probe exercises a module the way a scan does. Animations play once
// through their timeline; classes have every static method invoked with
// zero arguments. Results are in execution order.
func (s *Session) Probe(ctx context.Context) []Result {
	if s.player != nil {
		res, _ := s.PlayFrames(ctx, s.player.TotalFrames())
		return res
	}
	var out []Result
	for _, u := range s.units {
		if !u.Static {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		m := s.methods[u.Name]
		args := make([]jvm.Value, len(m.Sig.Params))
		for i, p := range m.Sig.Params {
			args[i] = jvm.Zero(p)
		}
		res := s.vm.InvokeMethod(ctx, m, args)
		out = append(out, s.jvmResult(u.Name, m, res))
	}
	return out
}
