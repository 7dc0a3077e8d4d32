package sqlitefmt

import "testing"

// buildLeafTablePage lays out a single leaf-table page: an 8-byte page
// header, a cell-pointer array, and the cells themselves packed from the
// end of the page backward (as SQLite does), leaving any gap between the
// pointer array and the first cell as the unallocated region.
func buildLeafTablePage(pageSize int, negOffset int, cells [][]byte) []byte {
	body := make([]byte, pageSize-negOffset)
	body[0] = 0x0d // leaf-table

	cellCount := len(cells)
	writeU16(body, 3, uint16(cellCount))

	offset := pageSize // absolute on-disk offset of the next free byte from the end
	ptrs := make([]int, cellCount)
	for i := cellCount - 1; i >= 0; i-- {
		offset -= len(cells[i])
		ptrs[i] = offset
		copy(body[offset-negOffset:], cells[i])
	}
	if cellCount == 0 {
		offset = pageSize
	}
	writeU16(body, 5, uint16(offset))

	headerSize := 8
	for i, p := range ptrs {
		writeU16(body, headerSize+2*i, uint16(p))
	}
	return body
}

func writeU16(b []byte, offset int, v uint16) {
	b[offset] = byte(v >> 8)
	b[offset+1] = byte(v)
}

// buildLeafCell encodes a complete leaf-table cell: payload-length
// varint, rowid varint, then the record bytes (assumed to fit locally,
// i.e. never tested against the overflow formula here).
func buildLeafCell(rowid int64, record []byte) []byte {
	var out []byte
	out = append(out, encodeVarint(int64(len(record)))...)
	out = append(out, encodeVarint(rowid)...)
	out = append(out, record...)
	return out
}

func TestParseBTreePage(t *testing.T) {
	t.Run("single row leaf table page", func(t *testing.T) {
		record := buildRecord([]int64{1, 13 + 2*5}, [][]byte{{7}, []byte("alice")})
		cell := buildLeafCell(1, record)
		pageSize := 512
		body := buildLeafTablePage(pageSize, 0, [][]byte{cell})

		page := &Page{Number: 2, NegOffset: 0, Body: body, Kind: KindLeafTable}
		bt, err := ParseBTreePage(page, uint32(pageSize))
		if err != nil {
			t.Fatalf("ParseBTreePage: %v", err)
		}
		if bt.Header.CellCount != 1 {
			t.Fatalf("CellCount = %d, want 1", bt.Header.CellCount)
		}
		if len(bt.Cells) != 1 {
			t.Fatalf("got %d cells, want 1", len(bt.Cells))
		}
		c := bt.Cells[0]
		if c.RowID != 1 {
			t.Errorf("RowID = %d, want 1", c.RowID)
		}
		if c.Record == nil || c.Record.Columns[1] != "alice" {
			t.Errorf("record columns = %v, want [... alice]", c.Record)
		}
		if err := bt.Check(); err != nil {
			t.Errorf("Check(): %v", err)
		}
	})

	t.Run("page 1 cell pointer is an absolute file offset", func(t *testing.T) {
		record := buildRecord([]int64{1}, [][]byte{{9}})
		cell := buildLeafCell(1, record)
		pageSize := 512
		body := buildLeafTablePage(pageSize, HeaderSize, [][]byte{cell})

		page := &Page{Number: 1, NegOffset: HeaderSize, Body: body, Kind: KindLeafTable}
		bt, err := ParseBTreePage(page, uint32(pageSize))
		if err != nil {
			t.Fatalf("ParseBTreePage: %v", err)
		}
		ptr := int(bt.CellPointers[0])
		if ptr < HeaderSize {
			t.Fatalf("cell pointer %d should be an absolute file offset >= %d", ptr, HeaderSize)
		}
		if bt.Cells[0].RowID != 1 {
			t.Errorf("RowID = %d, want 1", bt.Cells[0].RowID)
		}
	})

	t.Run("wrong kind rejected", func(t *testing.T) {
		page := &Page{Number: 1, Body: []byte{0x00, 0, 0, 0, 0, 0, 0, 0}, Kind: KindFreeCandidate}
		if _, err := ParseBTreePage(page, 512); err == nil {
			t.Error("expected error for non-b-tree page kind")
		}
	})
}

func TestLocalLimits(t *testing.T) {
	// Classic SQLite page-size-4096, reserved-0 figures.
	if got := localLimitTable(4096); got != 4061 {
		t.Errorf("localLimitTable(4096) = %d, want 4061", got)
	}
	if got := minLocal(4096); got != 489 {
		t.Errorf("minLocal(4096) = %d, want 489", got)
	}
}
