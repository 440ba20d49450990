package avm1

import (
	"fmt"
	"time"
)

// GetURL2 flags.
const (
	urlMethodMask = 0x3
	urlLoadTarget = 0x40
)

func registerTimelineActions() {
	simple := func(fn func(Timeline)) actionFunc {
		return func(m *Machine, _ *frame, _ Action) error {
			fn(m.tl)
			return nil
		}
	}
	set(simple(Timeline.NextFrame), ActNextFrame)
	set(simple(Timeline.PrevFrame), ActPrevFrame)
	set(simple(Timeline.Play), ActPlay)
	set(simple(Timeline.Stop), ActStop)
	set(simple(func(Timeline) {}), ActToggleQuality, ActStopSounds, ActEndDrag)

	set(func(m *Machine, f *frame, a Action) error {
		m.tl.GotoFrame(int(must(payload(a).U16())), false)
		return nil
	}, ActGotoFrame)
	set(func(m *Machine, f *frame, a Action) error {
		label := m.cstring(f, payload(a), a)
		if !m.tl.GotoLabel(label, false) {
			m.warn(fmt.Sprintf("frame label %q not found", label))
		}
		return nil
	}, ActGotoLabel)
	set(opGotoFrame2, ActGotoFrame2)
	set(func(m *Machine, f *frame, a Action) error {
		r := payload(a)
		url := m.cstring(f, r, a)
		window := m.cstring(f, r, a)
		m.tl.GetURL(url, window, 0)
		return nil
	}, ActGetURL)
	set(func(m *Machine, f *frame, a Action) error {
		flags := must(payload(a).U8())
		window := m.ToString(m.pop(f))
		url := m.ToString(m.pop(f))
		if flags&urlLoadTarget != 0 {
			window = "_target:" + window
		}
		m.tl.GetURL(url, window, int(flags&urlMethodMask))
		return nil
	}, ActGetURL2)
	set(func(m *Machine, f *frame, a Action) error {
		m.setTarget(f, m.cstring(f, payload(a), a))
		return nil
	}, ActSetTarget)
	set(func(m *Machine, f *frame, _ Action) error {
		m.setTarget(f, m.ToString(m.pop(f)))
		return nil
	}, ActSetTarget2)

	// The whole movie is decoded up front, so every frame is loaded and
	// WaitForFrame never skips.
	set(func(*Machine, *frame, Action) error { return nil }, ActWaitForFrame)
	set(func(m *Machine, f *frame, _ Action) error {
		m.pop(f)
		return nil
	}, ActWaitForFrame2)

	set(func(m *Machine, f *frame, _ Action) error {
		depth := int(ToInt32(m.ToNumber(m.pop(f))))
		target := m.ToString(m.pop(f))
		source := m.ToString(m.pop(f))
		m.tl.CloneSprite(source, target, depth)
		return nil
	}, ActCloneSprite)
	set(func(m *Machine, f *frame, _ Action) error {
		m.tl.RemoveSprite(m.ToString(m.pop(f)))
		return nil
	}, ActRemoveSprite)
	set(func(m *Machine, f *frame, _ Action) error {
		m.pop(f) // target
		m.pop(f) // lock center
		if m.pop(f).ToBool(m.version) {
			m.popArgs(f, 4)
		}
		return nil
	}, ActStartDrag)

	set(opGetProperty, ActGetProperty)
	set(opSetProperty, ActSetProperty)
	set(func(m *Machine, f *frame, _ Action) error {
		m.trace(m.pop(f))
		return nil
	}, ActTrace)
	set(func(m *Machine, f *frame, _ Action) error {
		m.push(f, Number(float64(time.Since(m.start).Milliseconds())))
		return nil
	}, ActGetTime)
	set(func(m *Machine, f *frame, _ Action) error {
		n := int(ToInt32(m.ToNumber(m.pop(f))))
		if n <= 0 {
			m.push(f, Number(0))
			return nil
		}
		m.push(f, Number(float64(m.rng.IntN(n))))
		return nil
	}, ActRandomNumber)
}

func (m *Machine) setTarget(f *frame, path string) {
	f.target = path
	m.tl.SetTarget(path)
}

// opGotoFrame2 pops a frame number or label. Bit 0 of the flags plays
// after the jump; bit 1 adds a scene bias to numeric frames.
func opGotoFrame2(m *Machine, f *frame, a Action) error {
	r := payload(a)
	flags := must(r.U8())
	bias := 0
	if flags&0x2 != 0 {
		bias = int(must(r.U16()))
	}
	m.gotoFrame(m.pop(f), bias, flags&0x1 != 0)
	return nil
}

func (m *Machine) propertyName(idx Value) (string, bool) {
	i := int(ToInt32(m.ToNumber(idx)))
	if i < 0 || i >= len(clipProps) {
		return "", false
	}
	return clipProps[i], true
}

func opGetProperty(m *Machine, f *frame, _ Action) error {
	idx := m.pop(f)
	target := m.resolveTarget(f, m.ToString(m.pop(f)))
	name, ok := m.propertyName(idx)
	if !ok || target.K != KObject {
		m.push(f, Undefined)
		return nil
	}
	m.push(f, m.GetMember(target, name))
	return nil
}

func opSetProperty(m *Machine, f *frame, _ Action) error {
	v := m.pop(f)
	idx := m.pop(f)
	target := m.resolveTarget(f, m.ToString(m.pop(f)))
	name, ok := m.propertyName(idx)
	if !ok || target.K != KObject {
		return nil
	}
	switch name {
	case "_currentframe", "_totalframes", "_framesloaded", "_target", "_url", "_xmouse", "_ymouse", "_droptarget":
		return nil
	}
	m.SetMember(target, name, v)
	return nil
}

// clipProperty supplies the display properties owned by the timeline.
func (m *Machine) clipProperty(name string) (Value, bool) {
	switch name {
	case "_currentframe":
		return Number(float64(m.tl.CurrentFrame() + 1)), true
	case "_totalframes", "_framesloaded":
		return Number(float64(m.tl.TotalFrames())), true
	}
	return Value{}, false
}
