package sqlitefmt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Null is the sentinel value for a record column whose serial type is 0.
type Null struct{}

// Record is one decoded row payload: a record header (varint H, followed
// by one serial-type varint per column) and the concatenated column
// bodies. Columns holds the decoded values in declaration order; any
// reserved serial type (10 or 11) encountered along the way is appended to
// Warnings rather than aborting the decode.
type Record struct {
	HeaderLength int64
	SerialTypes  []int64
	Columns      []any
	Warnings     []error
}

// ParseRecord decodes a record payload: a varint header length H
// (including the size of H itself), H-sizeof(H) bytes of serial-type
// varints, then the column bodies in order.
func ParseRecord(data []byte) (*Record, error) {
	h, hLen, err := readVarint(data)
	if err != nil {
		return nil, fmt.Errorf("record header length: %w", err)
	}
	if h < int64(hLen) || int(h) > len(data) {
		return nil, fmt.Errorf("record: header length %d out of bounds for %d-byte payload", h, len(data))
	}

	serialTypeRegion := data[hLen:h]
	serialTypes, _, err := readVarints(serialTypeRegion)
	if err != nil {
		return nil, fmt.Errorf("record serial types: %w", err)
	}

	rec := &Record{HeaderLength: h, SerialTypes: serialTypes}
	body := data[h:]
	offset := 0
	for i, st := range serialTypes {
		val, n, warn := decodeSerialValue(st, body, offset, i)
		if warn != nil {
			rec.Warnings = append(rec.Warnings, warn)
		}
		if offset+n > len(body) {
			return rec, fmt.Errorf("record: column %d body runs past payload: %w", i, ErrTruncatedPage)
		}
		rec.Columns = append(rec.Columns, val)
		offset += n
	}
	return rec, nil
}

// SerialBodyLength returns the number of body bytes serial type t occupies.
func SerialBodyLength(t int64) int {
	switch {
	case t >= 12 && t%2 == 0:
		return int((t - 12) / 2)
	case t >= 13 && t%2 == 1:
		return int((t - 13) / 2)
	}
	switch t {
	case 0, 8, 9, 10, 11:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 3
	case 4:
		return 4
	case 5:
		return 6
	case 6, 7:
		return 8
	default:
		return 0
	}
}

// decodeSerialValue decodes one column's value from body[offset:]. Serial
// types 10 and 11 are reserved; they must not appear in well-formed user
// data. This decoder emits a *SerialTypeWarning and treats the body length
// as 0, so the caller is told that column and everything after it in the
// record is only advisory (offsets beyond a reserved type could not be
// trusted in a hand-crafted, possibly-corrupt file).
func decodeSerialValue(t int64, body []byte, offset, column int) (any, int, error) {
	n := SerialBodyLength(t)
	if t == 10 || t == 11 {
		return nil, 0, &SerialTypeWarning{Column: column, SerialType: t}
	}
	end := offset + n
	if end > len(body) {
		end = len(body)
	}
	chunk := body[offset:end]

	switch {
	case t >= 12 && t%2 == 0:
		return append([]byte(nil), chunk...), n, nil
	case t >= 13 && t%2 == 1:
		return string(chunk), n, nil
	}

	switch t {
	case 0:
		return Null{}, 0, nil
	case 1:
		if len(chunk) < 1 {
			return int64(0), n, nil
		}
		return int64(int8(chunk[0])), n, nil
	case 2:
		if len(chunk) < 2 {
			return int64(0), n, nil
		}
		return int64(int16(binary.BigEndian.Uint16(chunk))), n, nil
	case 3:
		if len(chunk) < 3 {
			return int64(0), n, nil
		}
		return int64(decodeSignedN(chunk, 3)), n, nil
	case 4:
		if len(chunk) < 4 {
			return int64(0), n, nil
		}
		return int64(int32(binary.BigEndian.Uint32(chunk))), n, nil
	case 5:
		if len(chunk) < 6 {
			return int64(0), n, nil
		}
		return decodeSignedN(chunk, 6), n, nil
	case 6:
		if len(chunk) < 8 {
			return int64(0), n, nil
		}
		return int64(binary.BigEndian.Uint64(chunk)), n, nil
	case 7:
		if len(chunk) < 8 {
			return float64(0), n, nil
		}
		return math.Float64frombits(binary.BigEndian.Uint64(chunk)), n, nil
	case 8:
		return int64(0), 0, nil
	case 9:
		return int64(1), 0, nil
	default:
		return nil, 0, fmt.Errorf("column %d: unsupported serial type %d", column, t)
	}
}

// decodeSignedN sign-extends a big-endian two's-complement integer of
// nbytes (3 or 6, per the int24/int48 serial types) into an int64.
func decodeSignedN(b []byte, nbytes int) int64 {
	var v int64
	for i := 0; i < nbytes; i++ {
		v = (v << 8) | int64(b[i])
	}
	signBit := int64(1) << uint(nbytes*8-1)
	if v&signBit != 0 {
		v -= signBit << 1
	}
	return v
}
