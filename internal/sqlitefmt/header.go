package sqlitefmt

import (
	"fmt"
	"math/bits"
)

const (
	// HeaderMagic is the required 16-byte signature at file offset 0.
	HeaderMagic = "SQLite format 3\x00"
	// HeaderSize is the fixed size, in bytes, of the file header.
	HeaderSize = 100
)

// Field is a decoded header value paired with the raw bytes it came from.
type Field struct {
	Value uint64
	Raw   []byte
}

// Header is the parsed 100-byte SQLite file header. PageSize is carried as
// uint32 (rather than the on-disk uint16) because the on-disk value 1
// means a page size of 65536, which does not fit in a uint16.
type Header struct {
	Magic                      [16]byte
	MagicOK                    bool
	PageSize                   uint32
	PageSizeNonStandard        bool
	WriteVersion               uint8
	ReadVersion                uint8
	ReservedPerPage            uint8
	MaxEmbeddedPayloadFraction uint8
	MinEmbeddedPayloadFraction uint8
	LeafPayloadFraction        uint8
	ChangeCounter              uint32
	DatabaseSizePages          uint32
	FirstFreelistTrunk         uint32
	FreelistPageCount          uint32
	SchemaCookie               uint32
	SchemaFormat               uint32
	DefaultCacheSize           uint32
	LargestRootPage            uint32
	TextEncoding               uint32
	UserVersion                uint32
	IncrementalVacuum          uint32
	ApplicationID              uint32
	VersionValidFor            uint32
	SQLiteVersionNumber        uint32

	// Raw holds every field's on-disk bytes, keyed by the field name
	// above, for display in the `h` command and hex dumps.
	Raw map[string][]byte
}

// ParseHeader decodes the first 100 bytes of a database file. A bad magic
// string is reported via ErrBadMagic but does not abort decoding: this
// tool exists to look at possibly-corrupt images.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header: need %d bytes, got %d: %w", HeaderSize, len(data), ErrTruncatedPage)
	}

	h := &Header{Raw: make(map[string][]byte, 20)}
	copy(h.Magic[:], data[0:16])
	h.Raw["magic"] = append([]byte(nil), data[0:16]...)
	h.MagicOK = string(h.Magic[:]) == HeaderMagic

	rawPageSize, _ := readU16(data, 16)
	h.Raw["pageSize"] = data[16:18]
	if rawPageSize == 1 {
		h.PageSize = 65536
	} else {
		h.PageSize = uint32(rawPageSize)
	}
	h.PageSizeNonStandard = !isStandardPageSize(h.PageSize)

	v, _ := readU8(data, 18)
	h.WriteVersion = v
	v, _ = readU8(data, 19)
	h.ReadVersion = v
	v, _ = readU8(data, 20)
	h.ReservedPerPage = v
	v, _ = readU8(data, 21)
	h.MaxEmbeddedPayloadFraction = v
	v, _ = readU8(data, 22)
	h.MinEmbeddedPayloadFraction = v
	v, _ = readU8(data, 23)
	h.LeafPayloadFraction = v

	u32 := func(off int, raw string) uint32 {
		val, _ := readU32(data, off)
		h.Raw[raw] = data[off : off+4]
		return val
	}
	h.ChangeCounter = u32(24, "changeCounter")
	h.DatabaseSizePages = u32(28, "dbSizePages")
	h.FirstFreelistTrunk = u32(32, "firstFreelistTrunk")
	h.FreelistPageCount = u32(36, "freelistPageCount")
	h.SchemaCookie = u32(40, "schemaCookie")
	h.SchemaFormat = u32(44, "schemaFormat")
	h.DefaultCacheSize = u32(48, "defaultCacheSize")
	h.LargestRootPage = u32(52, "largestRootPage")
	h.TextEncoding = u32(56, "textEncoding")
	h.UserVersion = u32(60, "userVersion")
	h.IncrementalVacuum = u32(64, "incrementalVacuum")
	h.ApplicationID = u32(68, "applicationId")
	h.VersionValidFor = u32(92, "versionValidFor")
	h.SQLiteVersionNumber = u32(96, "sqliteVersion")

	if !h.MagicOK {
		return h, fmt.Errorf("signature %q: %w", h.Magic[:], ErrBadMagic)
	}
	return h, nil
}

// isStandardPageSize reports whether n is a power of two in [512, 65536].
// The check operates on the already-decoded page size, not a hardcoded
// constant, so it works correctly for every legal page size, not just 512.
func isStandardPageSize(n uint32) bool {
	if n < 512 || n > 65536 {
		return false
	}
	return bits.OnesCount32(n) == 1
}

// NonStandardDbSize reports whether the header's declared size in pages is
// inconsistent with the actual file length given the page size.
func (h *Header) NonStandardDbSize(fileLen int64) bool {
	if h.PageSize == 0 {
		return true
	}
	declared := int64(h.DatabaseSizePages) * int64(h.PageSize)
	return declared != fileLen
}
