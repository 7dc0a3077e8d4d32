package sqlitefmt

import "fmt"

// Freeblock is one link of a page's freeblock chain: a formerly-allocated
// cell whose bytes are still sitting in the page, not yet overwritten.
// Offset is the raw on-disk offset exactly as stored in the chain link
// (absolute on page 1, page-relative elsewhere) — see the terminator note
// on RecoverFreeblocks below for why that distinction matters here.
type Freeblock struct {
	Offset int
	Size   int
	Data   []byte // Size-4 bytes: the freeblock header itself is excluded
}

// UnallocatedGap is the byte range between the end of the cell-pointer
// array and the start of the cell content area. A non-zero byte here is a
// likely reservoir of recently deleted data that has not (yet) been
// reclaimed into a tracked freeblock.
type UnallocatedGap struct {
	Start, End int // indices into Page.Body
	Data       []byte
}

// DeletedDataReport is the result of recovering deleted data from one
// B-tree page: every freeblock on the chain, plus the unallocated gap if
// it holds anything other than zero bytes.
type DeletedDataReport struct {
	Freeblocks []Freeblock
	Gap        *UnallocatedGap
	ChainError error // non-nil if the walk had to stop early (ErrCorruptChain)
}

// RecoverFreeblocks walks the freeblock chain of a B-tree page, starting
// from the page header's first-freeblock field (0 = none). Each freeblock
// stores its own next-pointer and size as the first 4 bytes of the block;
// everything after that is recoverable former cell content.
//
// The walk compares the *raw*, pre-negOffset value against 0 to detect the
// end of the chain, then separately subtracts NegOffset only when turning
// that value into a Page.Body index. On page 1, negOffset is 100, so a
// freeblock genuinely sitting at absolute file offset 100 converts to body
// index 0 — indistinguishable from "the chain ended" if the terminator
// check were done on the already-subtracted index. Comparing the raw
// on-disk value instead (100, not 0) avoids that false terminator.
func RecoverFreeblocks(page *Page, firstFreeblock uint16) ([]Freeblock, error) {
	var out []Freeblock
	visited := make(map[int]bool)

	raw := int(firstFreeblock)
	for raw != 0 {
		if visited[raw] {
			return out, fmt.Errorf("page %d: freeblock offset %d revisited: %w", page.Number, raw, ErrCorruptChain)
		}
		visited[raw] = true

		idx := page.Index(raw)
		if idx < 0 || idx+4 > len(page.Body) {
			return out, fmt.Errorf("page %d: freeblock at %d outside page: %w", page.Number, raw, ErrCorruptChain)
		}
		nextRaw, err := readU16(page.Body, idx)
		if err != nil {
			return out, fmt.Errorf("page %d: %w", page.Number, ErrCorruptChain)
		}
		size, err := readU16(page.Body, idx+2)
		if err != nil {
			return out, fmt.Errorf("page %d: %w", page.Number, ErrCorruptChain)
		}
		if size < 4 || idx+int(size) > len(page.Body) {
			return out, fmt.Errorf("page %d: freeblock at %d has invalid size %d: %w", page.Number, raw, size, ErrCorruptChain)
		}

		out = append(out, Freeblock{
			Offset: raw,
			Size:   int(size),
			Data:   page.Body[idx+4 : idx+int(size)],
		})
		raw = int(nextRaw)
	}
	return out, nil
}

// RecoverDeletedData runs the full deleted-data recovery pass for a page:
// the freeblock chain, plus the gap between the cell-pointer array and the
// cell content area when that gap is non-zero anywhere.
func RecoverDeletedData(bt *BTreePage) *DeletedDataReport {
	report := &DeletedDataReport{}

	blocks, err := RecoverFreeblocks(bt.Page, bt.Header.FirstFreeblock)
	report.Freeblocks = blocks
	report.ChainError = err

	start := bt.Header.HeaderSize + 2*int(bt.Header.CellCount)
	end := int(bt.Header.CellContentStart) - bt.Page.NegOffset
	if start < 0 {
		start = 0
	}
	if end > len(bt.Page.Body) {
		end = len(bt.Page.Body)
	}
	if start < end {
		region := bt.Page.Body[start:end]
		for _, b := range region {
			if b != 0 {
				report.Gap = &UnallocatedGap{Start: start, End: end, Data: region}
				break
			}
		}
	}
	return report
}
