package avm1

// Timeline receives the frame-control actions. Frame indices are zero
// based; the machine converts the one-based numbers scripts use.
type Timeline interface {
	Play()
	Stop()
	NextFrame()
	PrevFrame()
	GotoFrame(index int, play bool)
	// GotoLabel reports whether the label exists.
	GotoLabel(label string, play bool) bool
	SetTarget(path string)
	GetURL(url, window string, method int)
	CloneSprite(source, target string, depth int)
	RemoveSprite(target string)
	CurrentFrame() int
	TotalFrames() int
}

// NopTimeline is a single-frame timeline that ignores every request.
type NopTimeline struct{}

func (NopTimeline) Play() {}
func (NopTimeline) Stop() {}
func (NopTimeline) NextFrame() {}
func (NopTimeline) PrevFrame() {}
func (NopTimeline) GotoFrame(int, bool) {}
func (NopTimeline) GotoLabel(string, bool) bool { return false }
func (NopTimeline) SetTarget(string) {}
func (NopTimeline) GetURL(string, string, int) {}
func (NopTimeline) CloneSprite(string, string, int) {}
func (NopTimeline) RemoveSprite(string) {}
func (NopTimeline) CurrentFrame() int { return 0 }
func (NopTimeline) TotalFrames() int { return 1 }

// clipType tags display objects on the heap.
const clipType = "MovieClip"

// clipProps are the GetProperty and SetProperty indices.
var clipProps = [...]string{
	"_x", "_y", "_xscale", "_yscale", "_currentframe", "_totalframes",
	"_alpha", "_visible", "_width", "_height", "_rotation", "_target",
	"_framesloaded", "_name", "_droptarget", "_url", "_highquality",
	"_focusrect", "_soundbuftime", "_quality", "_xmouse", "_ymouse",
}

// clipDefaults seed a fresh display object.
func clipDefaults(name, target string) map[string]Value {
	return map[string]Value{
		"_x":        Number(0),
		"_y":        Number(0),
		"_xscale":   Number(100),
		"_yscale":   Number(100),
		"_alpha":    Number(100),
		"_visible":  Bool(true),
		"_rotation": Number(0),
		"_width":    Number(0),
		"_height":   Number(0),
		"_name":     String(name),
		"_target":   String(target),
		"_url":      String(""),
		"_quality":  String("HIGH"),
	}
}
