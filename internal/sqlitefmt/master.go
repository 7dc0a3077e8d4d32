package sqlitefmt

import "fmt"

// SchemaEntry is one row of the master table: an object's name and the
// root page of its own B-tree. The master table's other columns (type,
// table_name, sql) are available through Record but not surfaced here,
// since only name and rootpage are needed to seed a traversal.
type SchemaEntry struct {
	Name     string
	RootPage int64
	Record   *Record
}

// ReadSchema decodes page 1 as the master table: a table-leaf page whose
// records carry (type, name, tbl_name, rootpage, sql) in columns 0..4. If
// page 1 is an interior page, the schema spans more than one page, which
// this tool does not walk; callers get ErrMasterMultiPage instead of a
// guess.
func (db *Database) ReadSchema() ([]SchemaEntry, error) {
	page, err := db.Page(1)
	if err != nil {
		return nil, err
	}
	if page.Kind.IsInterior() {
		return nil, fmt.Errorf("page 1 is %s: %w", page.Kind, ErrMasterMultiPage)
	}
	if page.Kind != KindLeafTable {
		return nil, &PageKindError{Page: 1, Byte: firstByte(page)}
	}

	bt, err := ParseBTreePage(page, db.Header.PageSize)
	if err != nil {
		return nil, err
	}

	entries := make([]SchemaEntry, 0, len(bt.Cells))
	for i, cell := range bt.Cells {
		if cell.Record == nil || len(cell.Record.Columns) < 4 {
			return entries, fmt.Errorf("master table cell %d: incomplete record", i)
		}
		name, _ := cell.Record.Columns[1].(string)
		rootpage, _ := cell.Record.Columns[3].(int64)
		entries = append(entries, SchemaEntry{Name: name, RootPage: rootpage, Record: cell.Record})
	}
	return entries, nil
}
