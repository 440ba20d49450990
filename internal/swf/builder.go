package swf

import (
	"bytes"

	"github.com/klauspost/compress/zlib"

	"necroverse/internal/bitio"
)

// Builder assembles a container in memory for tests and tooling.
type Builder struct {
	Version    uint8
	FrameSize  Rect
	FrameRate  float64
	FrameCount uint16 // zero counts ShowFrame records

	body   *bitio.Writer
	frames uint16
}

// NewBuilder starts an empty 550x400 stage at 12 frames per second.
func NewBuilder(version uint8) *Builder {
	return &Builder{
		Version:   version,
		FrameSize: Rect{XMax: 550 * TwipsPerPixel, YMax: 400 * TwipsPerPixel},
		FrameRate: 12,
		body:      bitio.NewWriter(bitio.LittleEndian),
	}
}

// WriteRecord encodes one record header and payload. Payloads of 63 bytes
// or more, or long, use the 32-bit length form.
func WriteRecord(w *bitio.Writer, code TagCode, payload []byte, long bool) {
	if long || len(payload) >= longLength {
		w.U16(uint16(code)<<6 | longLength)
		w.U32(uint32(len(payload)))
	} else {
		w.U16(uint16(code)<<6 | uint16(len(payload)))
	}
	w.Raw(payload)
}

// Record appends a record.
func (b *Builder) Record(code TagCode, payload []byte) *Builder {
	WriteRecord(b.body, code, payload, false)
	if code == TagShowFrame {
		b.frames++
	}
	return b
}

// LongRecord appends a record using the 32-bit length form.
func (b *Builder) LongRecord(code TagCode, payload []byte) *Builder {
	WriteRecord(b.body, code, payload, true)
	return b
}

// Raw appends bytes verbatim, for malformed fixtures.
func (b *Builder) Raw(p []byte) *Builder {
	b.body.Raw(p)
	return b
}

func (b *Builder) ShowFrame() *Builder { return b.Record(TagShowFrame, nil) }
func (b *Builder) End() *Builder { return b.Record(TagEnd, nil) }
func (b *Builder) DoAction(code []byte) *Builder { return b.Record(TagDoAction, code) }

// FrameLabel appends a label for the current frame.
func (b *Builder) FrameLabel(label string) *Builder {
	return b.Record(TagFrameLabel, append(EncodeString(label, b.Version), 0))
}

// Background appends a SetBackgroundColor record.
func (b *Builder) Background(c RGB) *Builder {
	return b.Record(TagSetBackgroundColor, []byte{c.R, c.G, c.B})
}

// Sprite appends a DefineSprite whose timeline is inner's record stream.
func (b *Builder) Sprite(id uint16, inner *Builder) *Builder {
	w := bitio.NewWriter(bitio.LittleEndian)
	w.U16(id)
	w.U16(inner.frameCount())
	w.Raw(inner.body.Bytes())
	return b.Record(TagDefineSprite, w.Bytes())
}

// Shape appends a DefineShape carrying only its bounds.
func (b *Builder) Shape(id uint16, bounds Rect) *Builder {
	w := bitio.NewWriter(bitio.LittleEndian)
	w.U16(id)
	WriteRect(w, bounds)
	// empty fill, line and shape record lists
	w.Raw([]byte{0, 0, 0, 0})
	return b.Record(TagDefineShape, w.Bytes())
}

// Place appends a PlaceObject2 that places character id at depth with an
// optional instance name.
func (b *Builder) Place(id, depth uint16, m Matrix, name string) *Builder {
	w := bitio.NewWriter(bitio.LittleEndian)
	flags := uint8(0x02 | 0x04)
	if name != "" {
		flags |= 0x20
	}
	w.U8(flags)
	w.U16(depth)
	w.U16(id)
	WriteMatrix(w, m)
	if name != "" {
		w.Raw(EncodeString(name, b.Version))
		w.U8(0)
	}
	return b.Record(TagPlaceObject2, w.Bytes())
}

// Export appends an ExportAssets record with one entry.
func (b *Builder) Export(id uint16, name string) *Builder {
	w := bitio.NewWriter(bitio.LittleEndian)
	w.U16(1)
	w.U16(id)
	w.Raw(EncodeString(name, b.Version))
	w.U8(0)
	return b.Record(TagExportAssets, w.Bytes())
}

func (b *Builder) frameCount() uint16 {
	if b.FrameCount != 0 {
		return b.FrameCount
	}
	return b.frames
}

func (b *Builder) stream() []byte {
	hdr := bitio.NewWriter(bitio.LittleEndian)
	WriteRect(hdr, b.FrameSize)
	hdr.U16(uint16(b.FrameRate * 256))
	hdr.U16(b.frameCount())
	body := append(hdr.Bytes(), b.body.Bytes()...)

	out := bitio.NewWriter(bitio.LittleEndian)
	out.Raw([]byte(SigUncompressed))
	out.U8(b.Version)
	out.U32(uint32(HeaderSize + len(body)))
	out.Raw(body)
	return out.Bytes()
}

// Bytes encodes an uncompressed container.
func (b *Builder) Bytes() []byte { return b.stream() }

// Compressed encodes a zlib-compressed container.
func (b *Builder) Compressed() ([]byte, error) {
	s := b.stream()
	var buf bytes.Buffer
	buf.WriteString(SigZlib)
	buf.Write(s[3:HeaderSize])
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(s[HeaderSize:]); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
