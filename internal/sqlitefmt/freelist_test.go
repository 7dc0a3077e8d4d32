package sqlitefmt

import "testing"

func buildFreelistTrunk(pageSize int, next uint32, leaves []uint32) []byte {
	body := make([]byte, pageSize)
	writeU32(body, 0, next)
	writeU32(body, 4, uint32(len(leaves)))
	for i, l := range leaves {
		writeU32(body, 8+4*i, l)
	}
	return body
}

func writeU32(b []byte, offset int, v uint32) {
	b[offset] = byte(v >> 24)
	b[offset+1] = byte(v >> 16)
	b[offset+2] = byte(v >> 8)
	b[offset+3] = byte(v)
}

func TestParseFreelistTrunk(t *testing.T) {
	t.Run("one trunk, two leaves", func(t *testing.T) {
		body := buildFreelistTrunk(512, 0, []uint32{5, 6})
		page := &Page{Number: 3, Body: body, Kind: KindFreeCandidate}
		trunk, err := ParseFreelistTrunk(page, 512)
		if err != nil {
			t.Fatalf("ParseFreelistTrunk: %v", err)
		}
		if trunk.Implausible {
			t.Error("should not be implausible")
		}
		if trunk.NextTrunk != 0 {
			t.Errorf("NextTrunk = %d, want 0", trunk.NextTrunk)
		}
		if len(trunk.LeafPages) != 2 || trunk.LeafPages[0] != 5 || trunk.LeafPages[1] != 6 {
			t.Errorf("LeafPages = %v, want [5 6]", trunk.LeafPages)
		}
	})

	t.Run("implausible leaf count rejected", func(t *testing.T) {
		body := buildFreelistTrunk(512, 0, nil)
		writeU32(body, 4, 1<<20) // declared leaf count far exceeds capacity
		page := &Page{Number: 3, Body: body, Kind: KindFreeCandidate}
		trunk, err := ParseFreelistTrunk(page, 512)
		if err != nil {
			t.Fatalf("ParseFreelistTrunk: %v", err)
		}
		if !trunk.Implausible {
			t.Error("expected Implausible")
		}
	})

	t.Run("all-zero leaf entries rejected", func(t *testing.T) {
		body := buildFreelistTrunk(512, 0, []uint32{0, 0, 0, 9})
		page := &Page{Number: 3, Body: body, Kind: KindFreeCandidate}
		trunk, err := ParseFreelistTrunk(page, 512)
		if err != nil {
			t.Fatalf("ParseFreelistTrunk: %v", err)
		}
		if !trunk.Implausible {
			t.Error("expected Implausible for an all-zero leaf prefix")
		}
	})
}

func TestCheckFreelistLeaf(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		page := &Page{Number: 4, Body: make([]byte, 512)}
		status := CheckFreelistLeaf(page)
		if !status.Clean {
			t.Error("expected Clean")
		}
	})
	t.Run("stale data", func(t *testing.T) {
		body := make([]byte, 512)
		body[100] = 0xff
		page := &Page{Number: 4, Body: body}
		status := CheckFreelistLeaf(page)
		if status.Clean {
			t.Error("expected not Clean")
		}
		if len(status.Dump) != 512 {
			t.Errorf("Dump length = %d, want 512", len(status.Dump))
		}
	})
}

func TestWalkFreelist(t *testing.T) {
	pageSize := uint32(512)
	data := buildPages(uint16(pageSize), 4, func(page int, body []byte) {
		switch page {
		case 1:
			writeU32(body, 32, 2) // first freelist trunk = page 2
			writeU32(body, 36, 2) // freelist page count
		case 2:
			copy(body, buildFreelistTrunk(int(pageSize), 0, []uint32{3, 4}))
		}
	})
	db, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	chain, err := db.WalkFreelist()
	if err != nil {
		t.Fatalf("WalkFreelist: %v", err)
	}
	if len(chain.Trunks) != 1 {
		t.Fatalf("got %d trunks, want 1", len(chain.Trunks))
	}
	if len(chain.AllLeaves) != 2 {
		t.Fatalf("got %d leaves, want 2", len(chain.AllLeaves))
	}
	p2, _ := db.Page(2)
	if p2.Kind != KindFreelistTrunk {
		t.Errorf("page 2 kind = %v, want freelist-trunk", p2.Kind)
	}
	p3, _ := db.Page(3)
	if p3.Kind != KindFreelistLeaf {
		t.Errorf("page 3 kind = %v, want freelist-leaf", p3.Kind)
	}
}
