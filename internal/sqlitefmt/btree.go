package sqlitefmt

import (
	"fmt"
	"sort"
)

// BTreeHeader is the 8- or 12-byte page header shared by all four B-tree
// page types.
type BTreeHeader struct {
	Kind                PageKind
	FirstFreeblock      uint16
	CellCount           uint16
	CellContentStart    uint32 // a stored 0 decodes to 65536 when the page size is 65536
	FragmentedFreeBytes uint8
	RightmostChild      uint32 // interior pages only
	HeaderSize          int    // 8 for leaves, 12 for interior pages
}

// Cell is a single decoded B-tree cell. Which fields are meaningful
// depends on Kind; fields that do not apply to a kind are left zero.
type Cell struct {
	Kind          PageKind
	Offset        int // on-disk offset as stored in the cell-pointer array
	Size          int // total on-page bytes this cell occupies
	LeftChild     uint32
	RowID         int64
	PayloadLength int64
	Record        *Record
	Overflow      bool   // payload declared longer than what fits on this page
	OverflowPage  uint32 // valid only when Overflow is true
}

// BTreePage is a decoded table/index interior/leaf page: its header, its
// cell-pointer array, and the cells themselves.
type BTreePage struct {
	Page         *Page
	Header       BTreeHeader
	CellPointers []uint16
	Cells        []Cell
}

// ParseBTreePage decodes page as a B-tree page. page.Kind must already be
// one of the four B-tree kinds (classified by loadPage from the first
// body byte); any other kind is rejected with a *PageKindError.
func ParseBTreePage(page *Page, pageSize uint32) (*BTreePage, error) {
	if !page.Kind.IsBTree() {
		return nil, &PageKindError{Page: page.Number, Byte: firstByte(page)}
	}

	headerSize := 8
	if page.Kind.IsInterior() {
		headerSize = 12
	}
	if len(page.Body) < headerSize {
		return nil, fmt.Errorf("page %d header: %w", page.Number, ErrTruncatedPage)
	}

	h := BTreeHeader{Kind: page.Kind, HeaderSize: headerSize}
	v16, err := readU16(page.Body, 1)
	if err != nil {
		return nil, err
	}
	h.FirstFreeblock = v16

	v16, err = readU16(page.Body, 3)
	if err != nil {
		return nil, err
	}
	h.CellCount = v16

	v16, err = readU16(page.Body, 5)
	if err != nil {
		return nil, err
	}
	if v16 == 0 && pageSize == 65536 {
		h.CellContentStart = 65536
	} else {
		h.CellContentStart = uint32(v16)
	}

	v8, err := readU8(page.Body, 7)
	if err != nil {
		return nil, err
	}
	h.FragmentedFreeBytes = v8

	if page.Kind.IsInterior() {
		rp, err := readU32(page.Body, 8)
		if err != nil {
			return nil, err
		}
		h.RightmostChild = rp
	}

	bt := &BTreePage{Page: page, Header: h}

	bt.CellPointers = make([]uint16, h.CellCount)
	for i := 0; i < int(h.CellCount); i++ {
		ptr, err := readU16(page.Body, headerSize+2*i)
		if err != nil {
			return bt, fmt.Errorf("page %d cell pointer %d: %w", page.Number, i, err)
		}
		bt.CellPointers[i] = ptr
	}

	bt.Cells = make([]Cell, len(bt.CellPointers))
	for i, ptr := range bt.CellPointers {
		cell, err := decodeCell(page, page.Kind, int(ptr))
		if err != nil {
			return bt, fmt.Errorf("page %d cell %d at offset %d: %w", page.Number, i, ptr, err)
		}
		bt.Cells[i] = cell
	}
	return bt, nil
}

func firstByte(p *Page) byte {
	if len(p.Body) == 0 {
		return 0
	}
	return p.Body[0]
}

// decodeCell decodes a single cell of kind at the given on-disk pointer
// offset (absolute for page 1, page-relative otherwise).
func decodeCell(page *Page, kind PageKind, ptr int) (Cell, error) {
	idx := page.Index(ptr)
	buf := page.Body
	usable := len(page.Body) + page.NegOffset
	c := Cell{Kind: kind, Offset: ptr}

	switch kind {
	case KindInteriorTable:
		lc, err := readU32(buf, idx)
		if err != nil {
			return c, err
		}
		rowid, n, err := readVarint(sliceFrom(buf, idx+4))
		if err != nil {
			return c, err
		}
		c.LeftChild = lc
		c.RowID = rowid
		c.Size = 4 + n
		return c, nil

	case KindLeafTable:
		payloadLen, n1, err := readVarint(sliceFrom(buf, idx))
		if err != nil {
			return c, err
		}
		rowid, n2, err := readVarint(sliceFrom(buf, idx+n1))
		if err != nil {
			return c, err
		}
		c.PayloadLength = payloadLen
		c.RowID = rowid
		return finishPayload(c, page, idx+n1+n2, payloadLen, localLimitTable(usable), n1+n2)

	case KindLeafIndex:
		payloadLen, n1, err := readVarint(sliceFrom(buf, idx))
		if err != nil {
			return c, err
		}
		c.PayloadLength = payloadLen
		return finishPayload(c, page, idx+n1, payloadLen, localLimitIndex(usable), n1)

	case KindInteriorIndex:
		lc, err := readU32(buf, idx)
		if err != nil {
			return c, err
		}
		c.LeftChild = lc
		payloadLen, n1, err := readVarint(sliceFrom(buf, idx+4))
		if err != nil {
			return c, err
		}
		c.PayloadLength = payloadLen
		return finishPayload(c, page, idx+4+n1, payloadLen, localLimitIndex(usable), 4+n1)

	default:
		return c, &PageKindError{Page: page.Number, Byte: firstByte(page)}
	}
}

// localLimitTable and localLimitIndex implement SQLite's classic
// local-payload formula (U = usable page size, reserved bytes = 0 per
// this tool's scope): table leaf cells may embed up to U-35 bytes before
// spilling to an overflow page; index cells (leaf or interior) use the
// tighter ((U-12)*64/255)-23 bound. Anything beyond that limit spills to
// an overflow page this tool does not chase; it reports the declared
// length and reads only the in-page prefix.
func localLimitTable(usable int) int { return usable - 35 }

func localLimitIndex(usable int) int {
	return ((usable-12)*64)/255 - 23
}

func minLocal(usable int) int {
	return ((usable-12)*32)/255 - 23
}

// finishPayload reads the in-page payload bytes starting at bodyOffset,
// applying the local/overflow split, and parses the resulting prefix as a
// Record. It never reads an overflow page's contents.
func finishPayload(c Cell, page *Page, bodyOffset int, declared int64, maxLocal, headerBytes int) (Cell, error) {
	usable := len(page.Body) + page.NegOffset
	local := int(declared)
	if declared > int64(maxLocal) {
		c.Overflow = true
		m := minLocal(usable)
		k := m + int((declared-int64(m))%int64(usable-4))
		if k <= maxLocal {
			local = k
		} else {
			local = m
		}
	}
	if local < 0 {
		local = 0
	}
	end := bodyOffset + local
	if end > len(page.Body) {
		end = len(page.Body)
		local = end - bodyOffset
		if local < 0 {
			local = 0
		}
	}
	payload := page.Body[bodyOffset:end]
	c.Size = headerBytes + local
	if c.Overflow {
		opOff := end
		if op, err := readU32(page.Body, opOff); err == nil {
			c.OverflowPage = op
		}
		c.Size += 4
	}
	rec, err := ParseRecord(payload)
	if err != nil {
		return c, err
	}
	c.Record = rec
	return c, nil
}

func sliceFrom(buf []byte, idx int) []byte {
	if idx < 0 || idx > len(buf) {
		return nil
	}
	return buf[idx:]
}

// Check verifies the page's accounting invariants: the cell pointer array
// must end before the cell content area starts, which must itself not run
// past the page, and no two cells may overlap.
func (bt *BTreePage) Check() error {
	h := bt.Header
	pageSize := len(bt.Page.Body) + bt.Page.NegOffset
	// CellContentStart and the cell pointers are absolute on page 1, so the
	// pointer-array end must be shifted into the same coordinate space.
	arrayEnd := bt.Page.NegOffset + h.HeaderSize + 2*int(h.CellCount)
	if arrayEnd > int(h.CellContentStart) || int(h.CellContentStart) > pageSize {
		return fmt.Errorf("page %d: header+pointers (%d) > content start (%d) > page size (%d)",
			bt.Page.Number, arrayEnd, h.CellContentStart, pageSize)
	}

	type span struct{ start, end int }
	spans := make([]span, 0, len(bt.Cells))
	for i, ptr := range bt.CellPointers {
		if int(ptr) < int(h.CellContentStart) || int(ptr) >= pageSize {
			return fmt.Errorf("page %d: cell pointer %d outside content area [%d,%d)",
				bt.Page.Number, ptr, h.CellContentStart, pageSize)
		}
		spans = append(spans, span{start: int(ptr), end: int(ptr) + bt.Cells[i].Size})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 0; i+1 < len(spans); i++ {
		if spans[i].end > spans[i+1].start {
			return fmt.Errorf("page %d: overlapping cells at offsets %d and %d",
				bt.Page.Number, spans[i].start, spans[i+1].start)
		}
	}
	return nil
}
