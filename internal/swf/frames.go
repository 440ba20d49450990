package swf

import (
	"fmt"

	"necroverse/internal/diag"
)

// buildFrames splits a record stream at ShowFrame. Records after the last
// ShowFrame form a final frame only when they carry content.
func buildFrames(recs []Record, d *decoder) []Frame {
	var frames []Frame
	cur := Frame{}
	dirty := false
	for _, rec := range recs {
		switch rec.Code {
		case TagShowFrame:
			cur.Index = len(frames)
			frames = append(frames, cur)
			cur, dirty = Frame{}, false
		case TagFrameLabel:
			r := d.payload(rec)
			label, err := readString(r, d.version)
			if err != nil {
				label = DecodeString(rec.Payload, d.version)
			}
			cur.Labels = append(cur.Labels, label)
			dirty = true
		case TagDoAction:
			cur.Actions = append(cur.Actions, ActionBlock{Offset: rec.PayloadOffset(), Code: rec.Payload})
			dirty = true
		case TagPlaceObject, TagPlaceObject2:
			p, err := d.placement(rec)
			if err != nil {
				d.warn(diag.StrBadRecord, rec.Offset, rec.HeaderLen()+len(rec.Payload), fmt.Sprintf("%s: %v", rec.Code, err))
				continue
			}
			cur.Placements = append(cur.Placements, p)
			dirty = true
		case TagRemoveObject:
			r := d.payload(rec)
			id, err1 := r.U16()
			depth, err2 := r.U16()
			if err1 != nil || err2 != nil {
				d.warn(diag.StrBadRecord, rec.Offset, rec.HeaderLen()+len(rec.Payload), "RemoveObject: payload too short")
				continue
			}
			cur.Removals = append(cur.Removals, Removal{Depth: depth, CharacterID: id})
			dirty = true
		case TagRemoveObject2:
			r := d.payload(rec)
			depth, err := r.U16()
			if err != nil {
				d.warn(diag.StrBadRecord, rec.Offset, rec.HeaderLen()+len(rec.Payload), "RemoveObject2: payload too short")
				continue
			}
			cur.Removals = append(cur.Removals, Removal{Depth: depth})
			dirty = true
		}
	}
	if dirty {
		cur.Index = len(frames)
		frames = append(frames, cur)
	}
	return frames
}
