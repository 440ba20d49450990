package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format names an output encoding.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatCBOR    Format = "cbor"
)

// ParseFormat accepts the names --format takes.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatMsgpack, FormatCBOR:
		return f, nil
	case "mp":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json, msgpack or cbor)", s)
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool { return f == FormatMsgpack || f == FormatCBOR }

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Encode writes docs in format f. Text and JSON write one document after
// another; the binary formats write a single array.
func Encode(w io.Writer, f Format, docs ...*Document) error {
	switch f {
	case FormatText:
		for i, d := range docs {
			if i > 0 {
				fmt.Fprintln(w)
			}
			WriteText(w, d)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(docs) == 1 {
			return enc.Encode(docs[0])
		}
		return enc.Encode(docs)
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		enc.SetOmitEmpty(true)
		return enc.Encode(docs)
	case FormatCBOR:
		return cborEncMode.NewEncoder(w).Encode(docs)
	}
	return fmt.Errorf("export: unknown format %q", f)
}

// MarshalMsgpack encodes one document the way the decode cache stores it.
func MarshalMsgpack(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalMsgpack is the inverse of MarshalMsgpack.
func UnmarshalMsgpack(data []byte) (*Document, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("export: decode document: %w", err)
	}
	return &d, nil
}

// UnmarshalCBOR decodes a CBOR stream written by Encode.
func UnmarshalCBOR(data []byte) ([]*Document, error) {
	var docs []*Document
	if err := cbor.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("export: unmarshal cbor: %w", err)
	}
	return docs, nil
}
