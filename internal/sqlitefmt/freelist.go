package sqlitefmt

import "fmt"

// FreelistTrunk is a decoded freelist trunk page: the next trunk page
// number (0 = end of chain) and the leaf pages it lists.
type FreelistTrunk struct {
	Page        int
	NextTrunk   uint32
	LeafPages   []uint32
	Implausible bool // rejected by the sanity heuristics below
}

// FreelistLeafStatus is the result of inspecting a freelist leaf page:
// leaves are expected to be entirely zeroed.
type FreelistLeafStatus struct {
	Page  int
	Clean bool
	Dump  []byte // full page body, present only when !Clean
}

// FreelistChain is the result of walking the freelist from the file
// header: every trunk visited, in order, and the combined leaf set.
type FreelistChain struct {
	Trunks    []*FreelistTrunk
	AllLeaves []uint32
}

// ParseFreelistTrunk decodes page as a freelist trunk: u32 next-trunk,
// u32 leaf count, leaf count * u32 leaf page numbers. It applies two
// sanity heuristics so an all-zero page misclassified as a trunk doesn't
// get read as one with millions of leaves: a trunk is implausible if its
// declared leaf count exceeds pageSize/4-2, or if its first three leaf
// entries are all zero.
func ParseFreelistTrunk(page *Page, pageSize uint32) (*FreelistTrunk, error) {
	next, err := readU32(page.Body, 0)
	if err != nil {
		return nil, fmt.Errorf("page %d freelist trunk: %w", page.Number, err)
	}
	count, err := readU32(page.Body, 4)
	if err != nil {
		return nil, fmt.Errorf("page %d freelist trunk: %w", page.Number, err)
	}

	t := &FreelistTrunk{Page: page.Number, NextTrunk: next}

	maxPlausible := uint32(pageSize/4) - 2
	if count > maxPlausible {
		t.Implausible = true
		return t, nil
	}

	leaves := make([]uint32, 0, count)
	zeroRun := 0
	for i := uint32(0); i < count; i++ {
		v, err := readU32(page.Body, 8+int(i)*4)
		if err != nil {
			t.Implausible = true
			break
		}
		leaves = append(leaves, v)
		if i < 3 {
			if v == 0 {
				zeroRun++
			}
		}
	}
	if len(leaves) >= 3 && zeroRun == 3 {
		t.Implausible = true
	}
	t.LeafPages = leaves
	return t, nil
}

// CheckFreelistLeaf reports whether page is entirely zero, which is the
// expected state for a freelist leaf; any non-zero byte is stale data left
// behind from before the page was freed.
func CheckFreelistLeaf(page *Page) FreelistLeafStatus {
	for _, b := range page.Body {
		if b != 0 {
			return FreelistLeafStatus{Page: page.Number, Clean: false, Dump: page.Body}
		}
	}
	return FreelistLeafStatus{Page: page.Number, Clean: true}
}

// WalkFreelist follows the freelist from the header's first trunk page,
// through NextTrunk pointers, classifying each visited page definitively
// as trunk or leaf. It stops (without error) at trunk 0 and guards against
// a page repeating across the chain by tracking visited page numbers.
func (db *Database) WalkFreelist() (*FreelistChain, error) {
	chain := &FreelistChain{}
	visited := make(map[int]bool)

	trunkNum := db.Header.FirstFreelistTrunk
	for trunkNum != 0 {
		if visited[int(trunkNum)] {
			return chain, fmt.Errorf("page %d: %w (freelist trunk revisited)", trunkNum, ErrCorruptChain)
		}
		visited[int(trunkNum)] = true

		page, err := db.Page(int(trunkNum))
		if err != nil {
			return chain, fmt.Errorf("freelist trunk: %w", err)
		}
		page.Kind = KindFreelistTrunk

		trunk, err := ParseFreelistTrunk(page, db.Header.PageSize)
		if err != nil {
			return chain, err
		}
		chain.Trunks = append(chain.Trunks, trunk)

		for _, leafNum := range trunk.LeafPages {
			if visited[int(leafNum)] {
				return chain, fmt.Errorf("page %d: %w (freelist leaf revisited)", leafNum, ErrCorruptChain)
			}
			visited[int(leafNum)] = true
			chain.AllLeaves = append(chain.AllLeaves, leafNum)
			if leafPage, err := db.Page(int(leafNum)); err == nil {
				leafPage.Kind = KindFreelistLeaf
			}
		}

		if trunk.Implausible {
			break
		}
		trunkNum = trunk.NextTrunk
	}
	return chain, nil
}
