package swf

import (
	"fmt"

	"necroverse/internal/bitio"
	"necroverse/internal/diag"
)

// longLength in the 6-bit length field announces a 32-bit length.
const longLength = 0x3f

// Record is one {kind, length, payload} unit of the stream.
type Record struct {
	Code     TagCode
	Offset   int // of the record header in the stream
	Long     bool
	Declared uint32 // length from the header
	Payload  []byte // at most Declared bytes; shorter when clamped
}

// HeaderLen is the encoded header size.
func (r Record) HeaderLen() int {
	if r.Long {
		return 6
	}
	return 2
}

// PayloadOffset is the stream offset of the first payload byte.
func (r Record) PayloadOffset() int { return r.Offset + r.HeaderLen() }

// Clamped reports whether the payload is shorter than declared.
func (r Record) Clamped() bool { return uint64(len(r.Payload)) < uint64(r.Declared) }

func (r Record) String() string {
	return fmt.Sprintf("%s (%d bytes @%#x)", r.Code, len(r.Payload), r.Offset)
}

// records reads a record stream. base is the stream offset of r's first
// byte. A short header ends the stream; an oversized length is clamped to
// what remains. An End record stops the walk only once enough records were
// seen or little input is left; otherwise it is kept and skipped.
func (d *decoder) records(r *bitio.Reader, base, depth int) []Record {
	var out []Record
	for {
		off := r.Pos()
		rest := r.Remaining()
		if rest == 0 {
			return out
		}
		if rest < 2 {
			d.warn(diag.StrTruncated, base+off, rest, fmt.Sprintf("%d stray byte(s) where a record header was expected", rest))
			return out
		}
		word, _ := r.U16()
		rec := Record{Code: TagCode(word >> 6), Offset: base + off, Declared: uint32(word & longLength)}
		if rec.Declared == longLength {
			n, err := r.U32()
			if err != nil {
				d.warn(diag.StrTruncated, base+off, rest, fmt.Sprintf("%s record: long length cut off", rec.Code))
				return out
			}
			rec.Long, rec.Declared = true, n
		}
		n := r.Remaining()
		if uint64(rec.Declared) <= uint64(n) {
			n = int(rec.Declared)
		} else {
			d.warn(diag.StrLengthClamped, rec.Offset, rec.HeaderLen(),
				fmt.Sprintf("%s record declares %d bytes, %d remain", rec.Code, rec.Declared, n))
		}
		rec.Payload, _ = r.Bytes(n)
		out = append(out, rec)

		if rec.Code != TagEnd {
			continue
		}
		seen := len(out) - 1
		left := r.Remaining()
		if seen >= d.opts.MinRecordsBeforeEnd || left <= d.opts.SmallTailBytes {
			if left > 0 && depth == 0 {
				d.warn(diag.StrTrailingBytes, base+r.Pos(), left, fmt.Sprintf("%d bytes after the End record", left))
			}
			return out
		}
		d.warn(diag.StrEarlyEndIgnored, rec.Offset, rec.HeaderLen(),
			fmt.Sprintf("End after %d record(s) with %d bytes left; continuing", seen, left))
	}
}
