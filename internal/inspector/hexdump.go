package inspector

import (
	"fmt"
	"strings"

	"github.com/lindeneg/sqlite-forensics/internal/sqlitefmt"
)

type region int

const (
	regionOther region = iota
	regionHeader
	regionPointerArray
	regionContent
	regionFreeblock
	regionGap
)

// classifyRegions tags every byte of a page body by the structural region
// it belongs to, so HexDump can color it. Overlaps are resolved in the
// order listed: a freeblock or the unallocated gap "wins" over the
// generic content classification, since those are the regions a forensic
// read cares about most.
func classifyRegions(bt *sqlitefmt.BTreePage, report *sqlitefmt.DeletedDataReport) []region {
	n := len(bt.Page.Body)
	tags := make([]region, n)

	for i := 0; i < bt.Header.HeaderSize && i < n; i++ {
		tags[i] = regionHeader
	}
	arrayEnd := bt.Header.HeaderSize + 2*int(bt.Header.CellCount)
	for i := bt.Header.HeaderSize; i < arrayEnd && i < n; i++ {
		tags[i] = regionPointerArray
	}
	contentStart := int(bt.Header.CellContentStart) - bt.Page.NegOffset
	for i := contentStart; i < n; i++ {
		if i >= 0 {
			tags[i] = regionContent
		}
	}

	if report != nil {
		if report.Gap != nil {
			for i := report.Gap.Start; i < report.Gap.End && i < n; i++ {
				tags[i] = regionGap
			}
		}
		for _, fb := range report.Freeblocks {
			idx := bt.Page.Index(fb.Offset)
			for i := idx; i < idx+fb.Size && i >= 0 && i < n; i++ {
				tags[i] = regionFreeblock
			}
		}
	}
	return tags
}

// HexDump renders page's body as a classic 16-bytes-per-row hex+ASCII
// dump, with each byte colored by the structural region it belongs to
// (header, cell-pointer array, cell content, freeblock, unallocated gap).
func HexDump(bt *sqlitefmt.BTreePage, report *sqlitefmt.DeletedDataReport, theme Theme) string {
	body := bt.Page.Body
	tags := classifyRegions(bt, report)

	var out strings.Builder
	for row := 0; row < len(body); row += 16 {
		end := row + 16
		if end > len(body) {
			end = len(body)
		}
		fmt.Fprintf(&out, "%06x  ", row+bt.Page.NegOffset)
		for i := row; i < row+16; i++ {
			if i < end {
				out.WriteString(theme.paintByte(tags[i], fmt.Sprintf("%02x ", body[i])))
			} else {
				out.WriteString("   ")
			}
			if i-row == 7 {
				out.WriteString(" ")
			}
		}
		out.WriteString(" |")
		for i := row; i < end; i++ {
			b := body[i]
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			out.WriteString(theme.paintByte(tags[i], string(b)))
		}
		out.WriteString("|\n")
	}
	return out.String()
}

func (t Theme) paintByte(r region, s string) string {
	if t.NoColor {
		return s
	}
	switch r {
	case regionHeader:
		return t.paint(t.Header, s)
	case regionPointerArray:
		return t.paint(t.PointerArray, s)
	case regionContent:
		return t.paint(t.CellContent, s)
	case regionFreeblock:
		return t.paint(t.Freeblock, s)
	case regionGap:
		return t.paint(t.UnallocatedGap, s)
	default:
		return s
	}
}
