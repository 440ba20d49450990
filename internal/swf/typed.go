package swf

import (
	"errors"
	"fmt"

	"necroverse/internal/bitio"
	"necroverse/internal/diag"
)

// interpret decodes the typed records of one stream into m. sprite is nil
// for the main timeline.
func (d *decoder) interpret(m *Movie, recs []Record, sprite *Sprite, depth int) {
	for _, rec := range recs {
		if err := d.typed(m, rec, sprite, depth); err != nil {
			d.warn(diag.StrBadRecord, rec.Offset, rec.HeaderLen()+len(rec.Payload),
				fmt.Sprintf("%s: %v", rec.Code, err))
		}
	}
}

func (d *decoder) payload(rec Record) *bitio.Reader {
	return bitio.NewReader(rec.Payload, bitio.LittleEndian)
}

func (d *decoder) typed(m *Movie, rec Record, sprite *Sprite, depth int) error {
	if definesCharacter[rec.Code] && rec.Code != TagDefineSprite {
		if err := d.character(m, rec); err != nil {
			return err
		}
	}
	r := d.payload(rec)
	switch rec.Code {
	case TagSetBackgroundColor:
		b, err := r.Bytes(3)
		if err != nil {
			return err
		}
		m.Background = &RGB{R: b[0], G: b[1], B: b[2]}
	case TagFileAttributes:
		v, err := r.U32()
		if err != nil {
			return err
		}
		m.Attributes = &FileAttributes{Flags: v}
	case TagScriptLimits:
		depthLimit, err1 := r.U16()
		timeout, err2 := r.U16()
		if err := errors.Join(err1, err2); err != nil {
			return err
		}
		m.Limits = &ScriptLimits{MaxRecursionDepth: depthLimit, ScriptTimeoutSeconds: timeout}
	case TagExportAssets:
		count, err := r.U16()
		if err != nil {
			return err
		}
		for i := 0; i < int(count); i++ {
			id, err := r.U16()
			if err != nil {
				return err
			}
			name, err := readString(r, d.version)
			if err != nil {
				return err
			}
			m.Exports = append(m.Exports, Export{ID: id, Name: name})
			for j := range m.Characters {
				if m.Characters[j].ID == id {
					m.Characters[j].Name = name
				}
			}
		}
	case TagDoInitAction:
		id, err := r.U16()
		if err != nil {
			return err
		}
		m.InitActions = append(m.InitActions, InitAction{
			SpriteID:    id,
			ActionBlock: ActionBlock{Offset: rec.PayloadOffset() + 2, Code: r.Rest()},
		})
	case TagDefineSprite:
		return d.sprite(m, rec, depth)
	case TagDefineButton:
		return d.button1(m, rec)
	case TagDefineButton2:
		return d.button2(m, rec)
	}
	return nil
}

func (d *decoder) character(m *Movie, rec Record) error {
	r := d.payload(rec)
	id, err := r.U16()
	if err != nil {
		return err
	}
	c := Character{ID: id, Kind: rec.Code, Offset: rec.Offset}
	switch rec.Code {
	case TagDefineShape, TagDefineShape2, TagDefineShape3, TagDefineShape4:
		b, err := ReadRect(r)
		if err != nil {
			m.Characters = append(m.Characters, c)
			return err
		}
		c.Bounds = &b
	}
	m.Characters = append(m.Characters, c)
	return nil
}

func (d *decoder) sprite(m *Movie, rec Record, depth int) error {
	r := d.payload(rec)
	id, err1 := r.U16()
	frames, err2 := r.U16()
	if err := errors.Join(err1, err2); err != nil {
		return err
	}
	m.Characters = append(m.Characters, Character{ID: id, Kind: TagDefineSprite, Offset: rec.Offset})
	if depth+1 > d.opts.MaxSpriteDepth {
		return fmt.Errorf("sprite %d nested deeper than %d", id, d.opts.MaxSpriteDepth)
	}
	s := &Sprite{ID: id, FrameCount: frames}
	base := rec.PayloadOffset() + r.Pos()
	s.Records = d.records(bitio.NewReader(r.Rest(), bitio.LittleEndian), base, depth+1)
	d.interpret(m, s.Records, s, depth+1)
	s.Frames = buildFrames(s.Records, d)
	m.Sprites[id] = s
	return nil
}

// button1 reads a DefineButton: character records up to a zero flag
// byte, then one action list that fires on release.
func (d *decoder) button1(m *Movie, rec Record) error {
	r := d.payload(rec)
	id, err := r.U16()
	if err != nil {
		return err
	}
	if err := skipButtonRecords(r); err != nil {
		return err
	}
	b := &Button{ID: id}
	b.Conditions = append(b.Conditions, ButtonCondition{
		Flags:       CondOverDownToOverUp,
		ActionBlock: ActionBlock{Offset: rec.PayloadOffset() + r.Pos(), Code: r.Rest()},
	})
	m.Buttons[id] = b
	return nil
}

// button2 reads the condition action lists of a DefineButton2. Each list
// is prefixed by its size, zero marking the last.
func (d *decoder) button2(m *Movie, rec Record) error {
	r := d.payload(rec)
	id, err1 := r.U16()
	flags, err2 := r.U8()
	offPos := r.Pos()
	actionOffset, err3 := r.U16()
	if err := errors.Join(err1, err2, err3); err != nil {
		return err
	}
	b := &Button{ID: id, TrackAsMenu: flags&1 != 0}
	m.Buttons[id] = b
	if actionOffset == 0 {
		return nil
	}
	if err := r.Seek(offPos + int(actionOffset)); err != nil {
		return fmt.Errorf("condition actions: %w", err)
	}
	for r.Remaining() > 0 {
		start := r.Pos()
		size, err1 := r.U16()
		cond, err2 := r.U16()
		if err := errors.Join(err1, err2); err != nil {
			return fmt.Errorf("condition %d: %w", len(b.Conditions), err)
		}
		n := r.Remaining()
		if size != 0 && int(size)-4 >= 0 && int(size)-4 < n {
			n = int(size) - 4
		}
		code, _ := r.Bytes(n)
		b.Conditions = append(b.Conditions, ButtonCondition{
			Flags:       cond,
			ActionBlock: ActionBlock{Offset: rec.PayloadOffset() + start + 4, Code: code},
		})
		if size == 0 {
			break
		}
	}
	return nil
}

func skipButtonRecords(r *bitio.Reader) error {
	for {
		flags, err := r.U8()
		if err != nil {
			return err
		}
		if flags == 0 {
			return nil
		}
		if err := r.Skip(4); err != nil { // character id, depth
			return err
		}
		if _, err := ReadMatrix(r); err != nil {
			return err
		}
	}
}

// placement decodes PlaceObject and PlaceObject2.
func (d *decoder) placement(rec Record) (Placement, error) {
	r := d.payload(rec)
	var p Placement
	if rec.Code == TagPlaceObject {
		id, err1 := r.U16()
		depth, err2 := r.U16()
		if err := errors.Join(err1, err2); err != nil {
			return p, err
		}
		p.CharacterID, p.HasCharacter, p.Depth = id, true, depth
		mx, err := ReadMatrix(r)
		if err != nil {
			return p, err
		}
		p.Matrix = &mx
		if r.Remaining() > 0 {
			ct, err := ReadColorTransform(r, false)
			if err != nil {
				return p, err
			}
			p.Color = &ct
		}
		return p, nil
	}

	flags, err := r.U8()
	if err != nil {
		return p, err
	}
	if p.Depth, err = r.U16(); err != nil {
		return p, err
	}
	p.Move = flags&0x01 != 0
	if flags&0x02 != 0 {
		p.HasCharacter = true
		if p.CharacterID, err = r.U16(); err != nil {
			return p, err
		}
	}
	if flags&0x04 != 0 {
		mx, err := ReadMatrix(r)
		if err != nil {
			return p, err
		}
		p.Matrix = &mx
	}
	if flags&0x08 != 0 {
		ct, err := ReadColorTransform(r, true)
		if err != nil {
			return p, err
		}
		p.Color = &ct
	}
	if flags&0x10 != 0 {
		v, err := r.U16()
		if err != nil {
			return p, err
		}
		p.Ratio = &v
	}
	if flags&0x20 != 0 {
		if p.Name, err = readString(r, d.version); err != nil {
			return p, err
		}
	}
	if flags&0x40 != 0 {
		v, err := r.U16()
		if err != nil {
			return p, err
		}
		p.ClipDepth = &v
	}
	if flags&0x80 != 0 {
		if p.ClipActions, err = d.clipActions(r, rec.PayloadOffset()); err != nil {
			return p, err
		}
	}
	return p, nil
}

// clipEventKeyPress carries a trailing key code byte.
const clipEventKeyPress = 1 << 17

func (d *decoder) clipActions(r *bitio.Reader, base int) ([]ClipAction, error) {
	if err := r.Skip(2); err != nil {
		return nil, err
	}
	readFlags := func() (uint32, error) {
		if d.version <= 5 {
			v, err := r.U16()
			return uint32(v), err
		}
		return r.U32()
	}
	if _, err := readFlags(); err != nil { // union of all events
		return nil, err
	}
	var out []ClipAction
	for {
		events, err := readFlags()
		if err != nil {
			return out, err
		}
		if events == 0 {
			return out, nil
		}
		size, err := r.U32()
		if err != nil {
			return out, err
		}
		ca := ClipAction{Events: events}
		if events&clipEventKeyPress != 0 && d.version > 5 {
			if ca.KeyCode, err = r.U8(); err != nil {
				return out, err
			}
			if size > 0 {
				size--
			}
		}
		n := r.Remaining()
		if uint64(size) < uint64(n) {
			n = int(size)
		}
		ca.Offset = base + r.Pos()
		ca.Code, _ = r.Bytes(n)
		out = append(out, ca)
	}
}
