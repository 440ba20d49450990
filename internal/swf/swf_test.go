package swf

import (
	"errors"
	"testing"

	"necroverse/internal/bitio"
	"necroverse/internal/diag"
)

func decode(t *testing.T, data []byte) (*Movie, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(50)
	m, err := Decode(data, Options{Reporter: diag.BagReporter{Bag: bag}})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m, bag
}

func sample() *Builder {
	b := NewBuilder(8)
	b.Background(RGB{R: 0x10, G: 0x20, B: 0x30})
	b.FrameLabel("intro")
	b.DoAction([]byte{0x07, 0x00}) // stop, end
	b.ShowFrame()
	b.DoAction([]byte{0x06, 0x00})
	b.ShowFrame()
	b.End()
	return b
}

func TestDecodeHeaderAndFrames(t *testing.T) {
	m, bag := decode(t, sample().Bytes())
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %v", bag.Items())
	}
	h := m.Header
	if h.Signature != SigUncompressed || h.Version != 8 || h.FrameRate != 12 || h.FrameCount != 2 {
		t.Errorf("header = %+v", h)
	}
	if h.FrameSize.Width() != 550 || h.FrameSize.Height() != 400 {
		t.Errorf("stage = %v", h.FrameSize)
	}
	if m.Background == nil || m.Background.String() != "#102030" {
		t.Errorf("background = %v", m.Background)
	}
	if len(m.Frames) != 2 {
		t.Fatalf("frames = %d", len(m.Frames))
	}
	if got := m.Frames[0].Labels; len(got) != 1 || got[0] != "intro" {
		t.Errorf("labels = %v", got)
	}
	if idx, ok := m.FrameByLabel("intro"); !ok || idx != 0 {
		t.Errorf("FrameByLabel = %d, %v", idx, ok)
	}
	units := m.Units()
	if len(units) != 2 || units[0].Name != "frame:0" || units[1].Name != "frame:1" {
		t.Fatalf("units = %+v", units)
	}
	if units[1].Code[0] != 0x06 || units[1].Offset != m.Records[4].PayloadOffset() {
		t.Errorf("unit offset = %d", units[1].Offset)
	}
}

func TestCompressedMatchesUncompressed(t *testing.T) {
	plain, _ := decode(t, sample().Bytes())
	data, err := sample().Compressed()
	if err != nil {
		t.Fatal(err)
	}
	packed, bag := decode(t, data)
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %v", bag.Items())
	}
	if !packed.Header.Compressed() || len(packed.Records) != len(plain.Records) {
		t.Fatalf("records = %d vs %d", len(packed.Records), len(plain.Records))
	}
	for i := range plain.Records {
		if plain.Records[i].Code != packed.Records[i].Code || string(plain.Records[i].Payload) != string(packed.Records[i].Payload) {
			t.Errorf("record %d differs", i)
		}
	}
}

func TestStructuralFailures(t *testing.T) {
	good := sample().Bytes()
	zws := append([]byte("ZWS"), good[3:]...)
	bad := append([]byte("ABC"), good[3:]...)
	shortLen := append([]byte(nil), good...)
	shortLen[4], shortLen[5], shortLen[6], shortLen[7] = 4, 0, 0, 0
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"lzma", zws, ErrUnsupportedCompression},
		{"signature", bad, ErrBadSignature},
		{"tiny", []byte("FWS"), ErrStructure},
		{"empty", nil, ErrBadSignature},
		{"declared length", shortLen, ErrStructure},
		{"rect cut", []byte{'F', 'W', 'S', 8, 9, 0, 0, 0, 0xf8}, ErrStructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, Options{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOversizedRecordIsClamped(t *testing.T) {
	b := NewBuilder(8)
	b.ShowFrame()
	w := bitio.NewWriter(bitio.LittleEndian)
	w.U16(uint16(TagDoAction)<<6 | 0x3f)
	w.U32(1000)
	w.Raw([]byte{0x07, 0x00, 0x00})
	b.Raw(w.Bytes())
	m, bag := decode(t, b.Bytes())
	if bag.Count(diag.StrLengthClamped) != 1 {
		t.Fatalf("diagnostics: %v", bag.Items())
	}
	last := m.Records[len(m.Records)-1]
	if last.Code != TagDoAction || len(last.Payload) != 3 || !last.Clamped() {
		t.Fatalf("last record = %+v", last)
	}
	if len(m.Frames) != 2 || len(m.Frames[1].Actions) != 1 {
		t.Errorf("frames = %+v", m.Frames)
	}
}

func TestTruncatedHeaderEndsStream(t *testing.T) {
	b := NewBuilder(8).ShowFrame().Raw([]byte{0x3f})
	m, bag := decode(t, b.Bytes())
	if len(m.Records) != 1 || bag.Count(diag.StrTruncated) != 1 {
		t.Fatalf("records = %v, diagnostics = %v", m.Records, bag.Items())
	}
}

func TestEarlyEndHeuristic(t *testing.T) {
	t.Run("ignored with data after it", func(t *testing.T) {
		b := NewBuilder(8).End()
		b.DoAction(make([]byte, 24))
		b.ShowFrame().End()
		m, bag := decode(t, b.Bytes())
		if bag.Count(diag.StrEarlyEndIgnored) != 1 {
			t.Fatalf("diagnostics: %v", bag.Items())
		}
		if len(m.Records) != 4 || len(m.Frames) != 1 || len(m.Frames[0].Actions) != 1 {
			t.Fatalf("records = %v frames = %+v", m.Records, m.Frames)
		}
	})
	t.Run("honored near the end", func(t *testing.T) {
		b := NewBuilder(8).End().Raw([]byte{1, 2, 3})
		m, bag := decode(t, b.Bytes())
		if len(m.Records) != 1 || bag.Count(diag.StrTrailingBytes) != 1 || bag.Count(diag.StrEarlyEndIgnored) != 0 {
			t.Fatalf("records = %v diagnostics = %v", m.Records, bag.Items())
		}
	})
	t.Run("honored after enough records", func(t *testing.T) {
		b := NewBuilder(8).ShowFrame().ShowFrame().End()
		b.DoAction(make([]byte, 40))
		m, _ := decode(t, b.Bytes())
		if len(m.Records) != 3 {
			t.Fatalf("records = %v", m.Records)
		}
	})
}

func TestSpritesAndCharacters(t *testing.T) {
	inner := NewBuilder(8)
	inner.FrameLabel("spin").DoAction([]byte{0x06, 0x00}).ShowFrame().End()

	b := NewBuilder(8)
	b.Shape(1, Rect{XMin: -20, XMax: 200, YMin: 0, YMax: 100})
	b.Sprite(2, inner)
	b.Export(2, "Spinner")
	b.Place(2, 1, Matrix{ScaleX: 1, ScaleY: 1, TranslateX: 40, TranslateY: -60}, "wheel")
	b.ShowFrame().End()

	m, bag := decode(t, b.Bytes())
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %v", bag.Items())
	}
	if len(m.Characters) != 2 {
		t.Fatalf("characters = %+v", m.Characters)
	}
	shape, _ := m.Character(1)
	if shape.Bounds == nil || shape.Bounds.XMin != -20 || shape.Bounds.XMax != 200 {
		t.Errorf("shape = %+v", shape)
	}
	if c, _ := m.Character(2); c.Name != "Spinner" || c.Kind != TagDefineSprite {
		t.Errorf("sprite character = %+v", c)
	}
	s := m.Sprites[2]
	if s == nil || s.FrameCount != 1 || len(s.Frames) != 1 {
		t.Fatalf("sprite = %+v", s)
	}
	if idx, ok := s.FrameByLabel("spin"); !ok || idx != 0 {
		t.Errorf("sprite label = %d, %v", idx, ok)
	}
	p := m.Frames[0].Placements
	if len(p) != 1 || p[0].Name != "wheel" || p[0].CharacterID != 2 || p[0].Matrix.TranslateY != -60 {
		t.Fatalf("placements = %+v", p)
	}
	units := m.Units()
	if len(units) != 1 || units[0].Name != "sprite:2:frame:0" {
		t.Errorf("units = %+v", units)
	}
}

func TestLegacyStringsAreWindows1252(t *testing.T) {
	b := NewBuilder(5)
	b.Record(TagFrameLabel, []byte{'a', 0x80, 0})
	b.ShowFrame().End()
	m, _ := decode(t, b.Bytes())
	if got := m.Frames[0].Labels[0]; got != "a€" {
		t.Fatalf("label = %q", got)
	}
	if got := DecodeString([]byte("a€"), 8); got != "a€" {
		t.Errorf("utf-8 label = %q", got)
	}
}

func TestRectRoundTripAndBounds(t *testing.T) {
	rects := []Rect{{}, {XMin: -1, XMax: 1, YMin: -1, YMax: 1}, {XMax: 11000, YMax: 8000}}
	for _, want := range rects {
		w := bitio.NewWriter(bitio.LittleEndian)
		WriteRect(w, want)
		r := bitio.NewReader(w.Bytes(), bitio.LittleEndian)
		got, err := ReadRect(r)
		if err != nil {
			t.Fatal(err)
		}
		if got.XMin != want.XMin || got.XMax != want.XMax || got.YMin != want.YMin || got.YMax != want.YMax {
			t.Errorf("round trip %v = %v", want, got)
		}
		if !r.Aligned() || r.Remaining() != 0 {
			t.Errorf("cursor not at aligned end after %v", want)
		}
	}
	if _, err := ReadRect(bitio.NewReader([]byte{0xf8, 0, 0}, bitio.LittleEndian)); !errors.Is(err, ErrBadRect) {
		t.Errorf("31-bit rect in 3 bytes: %v", err)
	}
}

func TestButton2Conditions(t *testing.T) {
	w := bitio.NewWriter(bitio.LittleEndian)
	w.U16(9) // id
	w.U8(0)  // flags
	w.U16(3) // action offset: skip the one-byte record list
	w.U8(0)  // end of character records
	w.U16(6) // cond size
	w.U16(CondOverDownToOverUp)
	w.Raw([]byte{0x06, 0x00})
	w.U16(0)
	w.U16(1)
	w.Raw([]byte{0x07, 0x00})
	b := NewBuilder(8).Record(TagDefineButton2, w.Bytes()).ShowFrame().End()
	m, bag := decode(t, b.Bytes())
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %v", bag.Items())
	}
	btn := m.Buttons[9]
	if btn == nil || len(btn.Conditions) != 2 {
		t.Fatalf("button = %+v", btn)
	}
	if c := btn.Conditions[0]; c.Flags != CondOverDownToOverUp || string(c.Code) != "\x06\x00" {
		t.Errorf("condition 0 = %+v", c)
	}
	if c := btn.Conditions[1]; string(c.Code) != "\x07\x00" {
		t.Errorf("condition 1 = %+v", c)
	}
}
