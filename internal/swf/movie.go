package swf

import (
	"sort"
	"strconv"
)

// Movie is a decoded container: header, the raw record stream and the
// typed views built from it.
type Movie struct {
	Header  Header
	Records []Record
	Frames  []Frame

	Background  *RGB
	Attributes  *FileAttributes
	Limits      *ScriptLimits
	Exports     []Export
	InitActions []InitAction
	Characters  []Character
	Sprites     map[uint16]*Sprite
	Buttons     map[uint16]*Button
}

// Frame is the content between two ShowFrame records.
type Frame struct {
	Index      int
	Labels     []string
	Actions    []ActionBlock
	Placements []Placement
	Removals   []Removal
}

// ActionBlock is one DoAction payload and where it sits in the stream.
type ActionBlock struct {
	Offset int // stream offset of the first action byte
	Code   []byte
}

// InitAction runs once before the first frame of a sprite is shown.
type InitAction struct {
	SpriteID uint16
	ActionBlock
}

// Sprite is a nested timeline with its own record stream.
type Sprite struct {
	ID         uint16
	FrameCount uint16
	Records    []Record
	Frames     []Frame
}

// Character is a placeable entity defined by the container.
type Character struct {
	ID     uint16
	Kind   TagCode
	Bounds *Rect // shapes only
	Name   string
	Offset int
}

// Placement is a PlaceObject or PlaceObject2 record.
type Placement struct {
	Depth        uint16
	CharacterID  uint16
	HasCharacter bool
	Move         bool
	Matrix       *Matrix
	Color        *ColorTransform
	Ratio        *uint16
	Name         string
	ClipDepth    *uint16
	ClipActions  []ClipAction
}

// ClipAction is an event handler attached to a placement.
type ClipAction struct {
	Events  uint32
	KeyCode uint8
	ActionBlock
}

// Removal is a RemoveObject or RemoveObject2 record; CharacterID is zero
// for the latter.
type Removal struct {
	Depth       uint16
	CharacterID uint16
}

// Export names a character for lookup by symbol.
type Export struct {
	ID   uint16
	Name string
}

// FileAttributes flags.
const (
	AttrUseDirectBlit = 1 << 6
	AttrUseGPU        = 1 << 5
	AttrHasMetadata   = 1 << 4
	AttrActionScript3 = 1 << 3
	AttrUseNetwork    = 1 << 0
)

// FileAttributes holds the FileAttributes record flags.
type FileAttributes struct {
	Flags uint32
}

// ActionScript3 reports whether the container declares the newer script
// model, whose bytecode this package does not execute.
func (a FileAttributes) ActionScript3() bool { return a.Flags&AttrActionScript3 != 0 }

// ScriptLimits carries the author's recursion ceiling and timeout.
type ScriptLimits struct {
	MaxRecursionDepth    uint16
	ScriptTimeoutSeconds uint16
}

// Button is a DefineButton or DefineButton2 record.
type Button struct {
	ID          uint16
	TrackAsMenu bool
	Conditions  []ButtonCondition
}

// ButtonCondition is an action list with its trigger flags. DefineButton
// actions carry the release condition.
type ButtonCondition struct {
	Flags uint16
	ActionBlock
}

// CondOverDownToOverUp is the release trigger of a button condition.
const CondOverDownToOverUp = 1 << 3

// Character returns the character with id, if defined.
func (m *Movie) Character(id uint16) (Character, bool) {
	for _, c := range m.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}

// FrameByLabel returns the index of the first frame carrying label.
func (m *Movie) FrameByLabel(label string) (int, bool) {
	return frameByLabel(m.Frames, label)
}

// FrameByLabel returns the index of the first frame carrying label.
func (s *Sprite) FrameByLabel(label string) (int, bool) {
	return frameByLabel(s.Frames, label)
}

func frameByLabel(frames []Frame, label string) (int, bool) {
	for _, f := range frames {
		for _, l := range f.Labels {
			if l == label {
				return f.Index, true
			}
		}
	}
	return 0, false
}

// SpriteIDs returns sprite ids in ascending order.
func (m *Movie) SpriteIDs() []uint16 {
	ids := make([]uint16, 0, len(m.Sprites))
	for id := range m.Sprites {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Unit is one executable action blob with a stable name.
type Unit struct {
	Name string
	ActionBlock
}

// Units enumerates every action blob in a deterministic order: init
// actions, main timeline frames, sprite frames, button conditions, then
// clip actions. Names are of the form "frame:3", "sprite:12:frame:0#1",
// "init:12", "button:7:cond:0" and "clip:frame:2:depth:5:0".
func (m *Movie) Units() []Unit {
	var out []Unit
	for _, ia := range m.InitActions {
		out = append(out, Unit{Name: "init:" + strconv.Itoa(int(ia.SpriteID)), ActionBlock: ia.ActionBlock})
	}
	out = appendFrameUnits(out, "", m.Frames)
	for _, id := range m.SpriteIDs() {
		out = appendFrameUnits(out, "sprite:"+strconv.Itoa(int(id))+":", m.Sprites[id].Frames)
	}
	ids := make([]int, 0, len(m.Buttons))
	for id := range m.Buttons {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		for i, c := range m.Buttons[uint16(id)].Conditions {
			out = append(out, Unit{Name: "button:" + strconv.Itoa(id) + ":cond:" + strconv.Itoa(i), ActionBlock: c.ActionBlock})
		}
	}
	for _, f := range m.Frames {
		for _, p := range f.Placements {
			for i, ca := range p.ClipActions {
				name := "clip:frame:" + strconv.Itoa(f.Index) + ":depth:" + strconv.Itoa(int(p.Depth)) + ":" + strconv.Itoa(i)
				out = append(out, Unit{Name: name, ActionBlock: ca.ActionBlock})
			}
		}
	}
	return out
}

func appendFrameUnits(out []Unit, prefix string, frames []Frame) []Unit {
	for _, f := range frames {
		for i, a := range f.Actions {
			name := prefix + "frame:" + strconv.Itoa(f.Index)
			if i > 0 {
				name += "#" + strconv.Itoa(i)
			}
			out = append(out, Unit{Name: name, ActionBlock: a})
		}
	}
	return out
}
