// Package swf decodes the tagged-record animation container: the header
// with its bit-packed stage rectangle, the record stream, typed records,
// frames and sprites.
//
// Decoding is tolerant. Only a bad signature, an unsupported compression
// or a header too short to hold its own fields fail the load; every record
// level inconsistency is clamped and reported.
package swf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"necroverse/internal/bitio"
	"necroverse/internal/diag"
	"necroverse/internal/source"
)

var (
	ErrBadSignature           = errors.New("swf: unrecognised signature")
	ErrUnsupportedCompression = errors.New("swf: unsupported compression")
	ErrStructure              = errors.New("swf: malformed header")
	ErrBadRect                = errors.New("swf: implausible rectangle")
)

// Signatures.
const (
	SigUncompressed = "FWS"
	SigZlib         = "CWS"
	SigLZMA         = "ZWS"
)

// HeaderSize is the fixed prefix before the (possibly compressed) body.
const HeaderSize = 8

// Defaults for Options.
const (
	DefaultMinRecordsBeforeEnd = 2
	DefaultSmallTailBytes      = 16
	DefaultMaxSpriteDepth      = 8
	DefaultMaxInflated         = 64 << 20
)

// Options configure Decode. Zero values take the defaults above.
type Options struct {
	File     source.FileID
	Reporter diag.Reporter

	// An End record is honored only after this many records or when at
	// most SmallTailBytes remain after it.
	MinRecordsBeforeEnd int
	SmallTailBytes      int

	MaxSpriteDepth int
	MaxInflated    int
}

func (o Options) withDefaults() Options {
	if o.MinRecordsBeforeEnd <= 0 {
		o.MinRecordsBeforeEnd = DefaultMinRecordsBeforeEnd
	}
	if o.SmallTailBytes <= 0 {
		o.SmallTailBytes = DefaultSmallTailBytes
	}
	if o.MaxSpriteDepth <= 0 {
		o.MaxSpriteDepth = DefaultMaxSpriteDepth
	}
	if o.MaxInflated <= 0 {
		o.MaxInflated = DefaultMaxInflated
	}
	o.Reporter = diag.OrNop(o.Reporter)
	return o
}

// Header is the fixed container header.
type Header struct {
	Signature  string
	Version    uint8
	FileLength uint32 // declared length of the uncompressed stream
	FrameSize  Rect
	FrameRate  float64 // frames per second
	FrameCount uint16

	// BodyOffset is the offset of the first record in the stream.
	BodyOffset int
}

// Compressed reports whether the body was stored deflated.
func (h Header) Compressed() bool { return h.Signature == SigZlib }

// Sniff reports whether data starts with a container signature.
func Sniff(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	switch string(data[:3]) {
	case SigUncompressed, SigZlib, SigLZMA:
		return true
	}
	return false
}

// Decode parses a container. Offsets in the result and in diagnostics are
// positions in the uncompressed stream, which equal file offsets for
// uncompressed containers.
func Decode(data []byte, opts Options) (*Movie, error) {
	opts = opts.withDefaults()
	stream, err := uncompressed(data, opts)
	if err != nil {
		return nil, err
	}
	d := &decoder{opts: opts, rep: opts.Reporter, file: opts.File}

	h := Header{Signature: string(stream[:3]), Version: stream[3]}
	r := bitio.NewReader(stream, bitio.LittleEndian)
	_ = r.Seek(4)
	if h.FileLength, err = r.U32(); err != nil {
		return nil, fmt.Errorf("%w: file length: %w", ErrStructure, err)
	}
	if h.FileLength < HeaderSize {
		return nil, fmt.Errorf("%w: declared length %d is shorter than the header", ErrStructure, h.FileLength)
	}
	if int64(h.FileLength) != int64(len(stream)) {
		d.warn(diag.StrDeclaredLength, 4, 4, fmt.Sprintf("header declares %d bytes, stream has %d", h.FileLength, len(stream)))
	}
	if h.FrameSize, err = ReadRect(r); err != nil {
		return nil, fmt.Errorf("%w: stage rectangle: %w", ErrStructure, err)
	}
	rate, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: frame rate: %w", ErrStructure, err)
	}
	h.FrameRate = float64(rate) / 256
	if h.FrameCount, err = r.U16(); err != nil {
		return nil, fmt.Errorf("%w: frame count: %w", ErrStructure, err)
	}
	h.BodyOffset = r.Pos()
	d.version = h.Version

	m := &Movie{Header: h, Sprites: make(map[uint16]*Sprite), Buttons: make(map[uint16]*Button)}
	m.Records = d.records(r, 0, 0)
	d.interpret(m, m.Records, nil, 0)
	m.Frames = buildFrames(m.Records, d)
	return m, nil
}

// uncompressed returns the header followed by the inflated body.
func uncompressed(data []byte, opts Options) ([]byte, error) {
	if len(data) < HeaderSize {
		if Sniff(data) {
			return nil, fmt.Errorf("%w: %d-byte input is shorter than the header", ErrStructure, len(data))
		}
		return nil, fmt.Errorf("%w: %d-byte input", ErrBadSignature, len(data))
	}
	switch string(data[:3]) {
	case SigUncompressed:
		return data, nil
	case SigZlib:
		zr, err := zlib.NewReader(bytes.NewReader(data[HeaderSize:]))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib body: %w", ErrStructure, err)
		}
		defer zr.Close()
		out := make([]byte, HeaderSize, HeaderSize+4*len(data))
		copy(out, data[:HeaderSize])
		buf := bytes.NewBuffer(out)
		n, err := io.Copy(buf, io.LimitReader(zr, int64(opts.MaxInflated)+1))
		if n > int64(opts.MaxInflated) {
			return nil, fmt.Errorf("%w: body inflates beyond %d bytes", ErrStructure, opts.MaxInflated)
		}
		if err != nil {
			// A damaged tail still yields the records before it.
			diag.ReportWarning(opts.Reporter, diag.StrInflate, source.At(opts.File, HeaderSize, len(data)-HeaderSize),
				fmt.Sprintf("inflate stopped after %d bytes: %v", n, err)).Emit()
			if n == 0 {
				return nil, fmt.Errorf("%w: zlib body: %w", ErrStructure, err)
			}
		}
		return buf.Bytes(), nil
	case SigLZMA:
		return nil, fmt.Errorf("%w: LZMA body (%q)", ErrUnsupportedCompression, SigLZMA)
	}
	return nil, fmt.Errorf("%w: %q", ErrBadSignature, data[:3])
}

type decoder struct {
	opts    Options
	rep     diag.Reporter
	file    source.FileID
	version uint8
}

func (d *decoder) warn(code diag.Code, off, n int, msg string) {
	diag.ReportWarning(d.rep, code, source.At(d.file, off, n), msg).Emit()
}
