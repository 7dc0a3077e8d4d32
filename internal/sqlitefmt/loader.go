package sqlitefmt

import "fmt"

// PageKind discriminates a page by its on-disk role. Freelist pages start
// out as KindFreeCandidate (first body byte 0x00) and are only resolved to
// KindFreelistTrunk or KindFreelistLeaf once the freelist chain has been
// walked from the header (see freelist.go); a candidate page unreachable
// from that chain stays a candidate and is reported as such.
type PageKind int

const (
	KindUnknown PageKind = iota
	KindInteriorIndex
	KindInteriorTable
	KindLeafIndex
	KindLeafTable
	KindFreeCandidate
	KindFreelistTrunk
	KindFreelistLeaf
)

func (k PageKind) String() string {
	switch k {
	case KindInteriorIndex:
		return "interior-index"
	case KindInteriorTable:
		return "interior-table"
	case KindLeafIndex:
		return "leaf-index"
	case KindLeafTable:
		return "leaf-table"
	case KindFreeCandidate:
		return "free-candidate"
	case KindFreelistTrunk:
		return "freelist-trunk"
	case KindFreelistLeaf:
		return "freelist-leaf"
	default:
		return "unknown"
	}
}

func kindFromFirstByte(b byte) PageKind {
	switch b {
	case 0x02:
		return KindInteriorIndex
	case 0x05:
		return KindInteriorTable
	case 0x0a:
		return KindLeafIndex
	case 0x0d:
		return KindLeafTable
	case 0x00:
		return KindFreeCandidate
	default:
		return KindUnknown
	}
}

// IsBTree reports whether k is one of the four B-tree page types.
func (k PageKind) IsBTree() bool {
	switch k {
	case KindInteriorIndex, KindInteriorTable, KindLeafIndex, KindLeafTable:
		return true
	default:
		return false
	}
}

// IsInterior reports whether k is an interior (non-leaf) B-tree page type.
func (k PageKind) IsInterior() bool {
	return k == KindInteriorIndex || k == KindInteriorTable
}

// Page is an immutable, non-copying view over one page of the database
// image. Body is the page's bytes with the file header stripped off when
// Number == 1 (so Body always starts at the page's own first byte,
// regardless of page number); NegOffset is the amount to subtract from an
// on-disk offset before indexing into Body.
type Page struct {
	Number     int
	FileOffset int64 // absolute offset of the page's first body byte
	NegOffset  int   // 100 for page 1, 0 otherwise
	Body       []byte
	Kind       PageKind
	Truncated  bool // fewer bytes were available than PageSize implies
}

// Index converts an on-disk offset (absolute on page 1, page-relative
// elsewhere) into an index into Body.
func (p *Page) Index(offset int) int { return offset - p.NegOffset }

// Database is the loaded, immutable view over an entire SQLite file: the
// decoded header plus every page, indexed 1-based as on disk.
type Database struct {
	Raw    []byte
	Header *Header
	Pages  []*Page // Pages[0] is unused; pages are 1-based like the format
}

// Open parses data (an entire database file already read into memory) into
// a Database: header plus every page slab. It never mutates data; every
// Page.Body is a sub-slice of it.
func Open(data []byte) (*Database, error) {
	header, err := ParseHeader(data)
	if err != nil && header == nil {
		return nil, err
	}
	headerWarning := err

	db := &Database{Raw: data, Header: header}
	if header.PageSize == 0 {
		return db, fmt.Errorf("page size: %w", ErrTruncatedPage)
	}

	dbSize := int(header.DatabaseSizePages)
	if dbSize == 0 {
		// Some tools omit the in-header size; fall back to what the file
		// actually contains.
		dbSize = len(data) / int(header.PageSize)
	}

	db.Pages = make([]*Page, dbSize+1)
	for n := 1; n <= dbSize; n++ {
		page, err := loadPage(data, n, header.PageSize)
		if err != nil {
			return db, err
		}
		db.Pages[n] = page
	}
	return db, headerWarning
}

func loadPage(data []byte, number int, pageSize uint32) (*Page, error) {
	slabStart := int64(number-1) * int64(pageSize)
	slabEnd := slabStart + int64(pageSize)

	negOffset := 0
	bodyStart := slabStart
	if number == 1 {
		negOffset = HeaderSize
		bodyStart = HeaderSize
	}

	p := &Page{Number: number, FileOffset: bodyStart, NegOffset: negOffset}

	if bodyStart >= int64(len(data)) {
		p.Truncated = true
		p.Kind = KindUnknown
		return p, nil
	}
	end := slabEnd
	if end > int64(len(data)) {
		end = int64(len(data))
		p.Truncated = true
	}
	p.Body = data[bodyStart:end]
	if len(p.Body) == 0 {
		p.Kind = KindUnknown
		return p, nil
	}
	p.Kind = kindFromFirstByte(p.Body[0])
	return p, nil
}

// Page returns the page with the given 1-based number, or an error if it
// is out of range.
func (db *Database) Page(number int) (*Page, error) {
	if number < 1 || number >= len(db.Pages) || db.Pages[number] == nil {
		return nil, fmt.Errorf("page %d: out of range (1..%d): %w", number, len(db.Pages)-1, ErrTruncatedPage)
	}
	return db.Pages[number], nil
}

// PageCount returns the number of pages the loader sliced: the header's
// declared size, or the number of whole pages in the file when that is 0.
// Pages past the end of a truncated file are still counted; they carry
// Truncated and a short or empty Body.
func (db *Database) PageCount() int {
	if len(db.Pages) == 0 {
		return 0
	}
	return len(db.Pages) - 1
}
