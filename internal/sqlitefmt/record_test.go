package sqlitefmt

import (
	"reflect"
	"testing"
)

// buildRecord assembles a record payload from serial types and their
// already-encoded bodies, mirroring the on-disk record format: varint
// header length, then one varint per serial type, then the column bodies
// concatenated in order.
func buildRecord(serialTypes []int64, bodies [][]byte) []byte {
	var headerTail []byte
	for _, st := range serialTypes {
		headerTail = append(headerTail, encodeVarint(st)...)
	}
	// header length includes its own varint encoding; try successive
	// encodings until the declared length matches its own size.
	for n := 1; n < 9; n++ {
		hlen := int64(n + len(headerTail))
		if len(encodeVarint(hlen)) == n {
			header := append(encodeVarint(hlen), headerTail...)
			var body []byte
			for _, b := range bodies {
				body = append(body, b...)
			}
			return append(header, body...)
		}
	}
	panic("buildRecord: could not converge on header length")
}

func TestParseRecord(t *testing.T) {
	t.Run("null, int8, text", func(t *testing.T) {
		data := buildRecord(
			[]int64{0, 1, 13 + 2*5}, // NULL, int8, 5-byte text (13+2*5=23)
			[][]byte{{}, {42}, []byte("alice")},
		)
		rec, err := ParseRecord(data)
		if err != nil {
			t.Fatalf("ParseRecord: %v", err)
		}
		if len(rec.Columns) != 3 {
			t.Fatalf("got %d columns, want 3", len(rec.Columns))
		}
		if _, ok := rec.Columns[0].(Null); !ok {
			t.Errorf("column 0 = %#v, want Null", rec.Columns[0])
		}
		if rec.Columns[1] != int64(42) {
			t.Errorf("column 1 = %v, want 42", rec.Columns[1])
		}
		if rec.Columns[2] != "alice" {
			t.Errorf("column 2 = %v, want alice", rec.Columns[2])
		}
	})

	t.Run("blob column", func(t *testing.T) {
		blob := []byte{0xde, 0xad, 0xbe, 0xef}
		data := buildRecord([]int64{12 + 2*4}, [][]byte{blob})
		rec, err := ParseRecord(data)
		if err != nil {
			t.Fatalf("ParseRecord: %v", err)
		}
		got, ok := rec.Columns[0].([]byte)
		if !ok || !reflect.DeepEqual(got, blob) {
			t.Errorf("column 0 = %v, want %v", got, blob)
		}
	})

	t.Run("constants 0 and 1", func(t *testing.T) {
		data := buildRecord([]int64{8, 9}, [][]byte{{}, {}})
		rec, err := ParseRecord(data)
		if err != nil {
			t.Fatalf("ParseRecord: %v", err)
		}
		if rec.Columns[0] != int64(0) || rec.Columns[1] != int64(1) {
			t.Errorf("got %v, want [0 1]", rec.Columns)
		}
	})

	t.Run("float64", func(t *testing.T) {
		data := buildRecord([]int64{7}, [][]byte{{0x40, 0x09, 0x21, 0xfb, 0x54, 0x44, 0x2d, 0x18}})
		rec, err := ParseRecord(data)
		if err != nil {
			t.Fatalf("ParseRecord: %v", err)
		}
		got, ok := rec.Columns[0].(float64)
		if !ok {
			t.Fatalf("column 0 is %T, want float64", rec.Columns[0])
		}
		if got < 3.14159 || got > 3.1416 {
			t.Errorf("got %v, want approximately pi", got)
		}
	})

	t.Run("reserved serial type produces a warning, not a failure", func(t *testing.T) {
		data := buildRecord([]int64{10}, [][]byte{})
		rec, err := ParseRecord(data)
		if err != nil {
			t.Fatalf("ParseRecord: %v", err)
		}
		if len(rec.Warnings) != 1 {
			t.Fatalf("got %d warnings, want 1", len(rec.Warnings))
		}
		var target *SerialTypeWarning
		if !asSerialTypeWarning(rec.Warnings[0], &target) {
			t.Errorf("warning is %T, want *SerialTypeWarning", rec.Warnings[0])
		}
	})
}

func asSerialTypeWarning(err error, target **SerialTypeWarning) bool {
	w, ok := err.(*SerialTypeWarning)
	if ok {
		*target = w
	}
	return ok
}

func TestSerialBodyLength(t *testing.T) {
	cases := map[int64]int{
		0: 0, 1: 1, 2: 2, 3: 3, 4: 4, 5: 6, 6: 8, 7: 8, 8: 0, 9: 0, 10: 0, 11: 0,
		12: 0, 13: 0, 14: 1, 15: 1,
	}
	for st, want := range cases {
		if got := SerialBodyLength(st); got != want {
			t.Errorf("SerialBodyLength(%d) = %d, want %d", st, got, want)
		}
	}
}

func TestDecodeSignedN(t *testing.T) {
	t.Run("int24 negative", func(t *testing.T) {
		got := decodeSignedN([]byte{0xff, 0xff, 0xff}, 3)
		if got != -1 {
			t.Errorf("got %d, want -1", got)
		}
	})
	t.Run("int48 positive", func(t *testing.T) {
		got := decodeSignedN([]byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00}, 6)
		if got != 256 {
			t.Errorf("got %d, want 256", got)
		}
	})
}
