package inspector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emicklei/dot"

	"github.com/lindeneg/sqlite-forensics/internal/sqlitefmt"
)

// Session is the interactive driver over an opened database: the `cmd:`
// prompt loop and every command it understands.
type Session struct {
	DB    *sqlitefmt.Database
	Theme Theme
	Out   io.Writer
}

// NewSession builds a Session ready to Run against db.
func NewSession(db *sqlitefmt.Database, theme Theme, out io.Writer) *Session {
	return &Session{DB: db, Theme: theme, Out: out}
}

// Run reads commands from in, one per line, until `exit`/`q`, EOF, or ctx
// is canceled. Every command error is caught and printed; the loop itself
// never exits because of one (per the propagation policy: only argument
// and I/O errors at startup are fatal, and those happen before Run is
// called).
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "cmd: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		if cmd == "exit" || cmd == "q" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(out, "cancelled: %v\n", err)
			return nil
		}
		if err := s.dispatch(ctx, out, cmd, args); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, out io.Writer, cmd string, args []string) error {
	switch cmd {
	case "h":
		return s.cmdHeader(out)
	case "o":
		return s.cmdOverview(ctx, out)
	case "b":
		return s.cmdBTree(out, args)
	case "p":
		return s.cmdPage(out, args)
	case "pr":
		return s.cmdRecover(out, args)
	case "pc":
		return s.cmdCells(out, args)
	case "pd":
		return s.cmdHexDump(out, args)
	case "f":
		return s.cmdFreelistTrunk(out, args)
	case "fcl":
		return s.cmdFreelistLeaf(out, args)
	case "fl":
		return s.cmdFreelistGraph(out)
	case "help":
		printHelp(out)
		return nil
	default:
		fmt.Fprintf(out, "unknown command %q; type help\n", cmd)
		return nil
	}
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  h           print header info
  o           paged overview: one line per page
  b [n]       render b-tree rooted at page n (default: every schema object)
  p n         analyze page n as a b-tree page
  pr n        recover deleted data from page n
  pc n        decode and display every cell on page n
  pd n        hex dump page n
  f n         analyze page n as a freelist trunk
  fcl n       check freelist leaf n, hex dump if not zeroed
  fl          render freelist chain graph
  help        list commands
  exit, q     leave the loop
`)
}

func pageArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("expected a page number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q", args[0])
	}
	return n, nil
}

func (s *Session) cmdHeader(out io.Writer) error {
	h := s.DB.Header
	fmt.Fprintf(out, "page size:          %d (non-standard: %v)\n", h.PageSize, h.PageSizeNonStandard)
	fmt.Fprintf(out, "magic ok:           %v\n", h.MagicOK)
	fmt.Fprintf(out, "database size:      %d pages\n", h.DatabaseSizePages)
	fmt.Fprintf(out, "first freelist trunk: %d\n", h.FirstFreelistTrunk)
	fmt.Fprintf(out, "freelist page count: %d\n", h.FreelistPageCount)
	fmt.Fprintf(out, "schema cookie:      %d\n", h.SchemaCookie)
	fmt.Fprintf(out, "schema format:      %d\n", h.SchemaFormat)
	fmt.Fprintf(out, "text encoding:      %d\n", h.TextEncoding)
	fmt.Fprintf(out, "user version:       %d\n", h.UserVersion)
	fmt.Fprintf(out, "application id:     %d\n", h.ApplicationID)
	if h.NonStandardDbSize(int64(len(s.DB.Raw))) {
		fmt.Fprintln(out, "warning: declared database size does not match file length")
	}
	return nil
}

func (s *Session) cmdOverview(ctx context.Context, out io.Writer) error {
	for n := 1; n <= s.DB.PageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.DB.Page(n)
		if err != nil {
			fmt.Fprintf(out, "%6d  error: %v\n", n, err)
			continue
		}
		if !page.Kind.IsBTree() {
			fmt.Fprintf(out, "%6d  %s\n", n, page.Kind)
			continue
		}
		bt, err := sqlitefmt.ParseBTreePage(page, s.DB.Header.PageSize)
		if err != nil {
			fmt.Fprintf(out, "%6d  %s  error: %v\n", n, page.Kind, err)
			continue
		}
		fmt.Fprintf(out, "%6d  %-15s cells=%-6d firstFreeblock=%d\n",
			n, page.Kind, bt.Header.CellCount, bt.Header.FirstFreeblock)
	}
	return nil
}

func (s *Session) cmdBTree(out io.Writer, args []string) error {
	if len(args) == 0 {
		entries, err := s.DB.ReadSchema()
		if err != nil {
			return err
		}
		g := dot.NewGraph(dot.Directed)
		g.Attr("rankdir", "TB")
		for _, e := range entries {
			root, err := s.DB.Walk(int(e.RootPage))
			if err != nil {
				fmt.Fprintf(out, "%s: error: %v\n", e.Name, err)
				continue
			}
			AddBTreeSubtree(g, root)
			fmt.Fprintf(out, "%s -> root page %d\n", e.Name, e.RootPage)
		}
		return WriteGraph(g, "btree.gv")
	}

	n, err := pageArg(args)
	if err != nil {
		return err
	}
	root, err := s.DB.Walk(n)
	if err != nil {
		return err
	}
	return WriteGraph(RenderBTree(root), "btree.gv")
}

func (s *Session) cmdPage(out io.Writer, args []string) error {
	n, err := pageArg(args)
	if err != nil {
		return err
	}
	page, err := s.DB.Page(n)
	if err != nil {
		return err
	}
	bt, err := sqlitefmt.ParseBTreePage(page, s.DB.Header.PageSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "page %d: %s\n", n, page.Kind)
	fmt.Fprintf(out, "  cell count:        %d\n", bt.Header.CellCount)
	fmt.Fprintf(out, "  first freeblock:   %d\n", bt.Header.FirstFreeblock)
	fmt.Fprintf(out, "  cell content start: %d\n", bt.Header.CellContentStart)
	fmt.Fprintf(out, "  fragmented bytes:  %d\n", bt.Header.FragmentedFreeBytes)
	if page.Kind.IsInterior() {
		fmt.Fprintf(out, "  rightmost child:   %d\n", bt.Header.RightmostChild)
	}
	if err := bt.Check(); err != nil {
		fmt.Fprintf(out, "  accounting check failed: %v\n", err)
	} else {
		fmt.Fprintln(out, "  accounting check: ok")
	}
	return nil
}

func (s *Session) cmdRecover(out io.Writer, args []string) error {
	n, err := pageArg(args)
	if err != nil {
		return err
	}
	page, err := s.DB.Page(n)
	if err != nil {
		return err
	}
	bt, err := sqlitefmt.ParseBTreePage(page, s.DB.Header.PageSize)
	if err != nil {
		return err
	}
	report := sqlitefmt.RecoverDeletedData(bt)
	if len(report.Freeblocks) == 0 && report.Gap == nil {
		fmt.Fprintln(out, "nothing recovered")
	}
	for i, fb := range report.Freeblocks {
		fmt.Fprintf(out, "freeblock %d at offset %d, %d bytes recoverable:\n", i, fb.Offset, len(fb.Data))
		fmt.Fprintf(out, "  %q\n", fb.Data)
	}
	if report.Gap != nil {
		fmt.Fprintf(out, "unallocated gap [%d,%d):\n  %q\n", report.Gap.Start, report.Gap.End, report.Gap.Data)
	}
	if report.ChainError != nil {
		fmt.Fprintf(out, "chain stopped early: %v\n", report.ChainError)
	}
	return nil
}

func (s *Session) cmdCells(out io.Writer, args []string) error {
	n, err := pageArg(args)
	if err != nil {
		return err
	}
	page, err := s.DB.Page(n)
	if err != nil {
		return err
	}
	bt, err := sqlitefmt.ParseBTreePage(page, s.DB.Header.PageSize)
	if err != nil {
		return err
	}
	for i, c := range bt.Cells {
		fmt.Fprintf(out, "cell %d @%d: rowid=%d leftChild=%d overflow=%v\n", i, c.Offset, c.RowID, c.LeftChild, c.Overflow)
		if c.Record != nil {
			fmt.Fprintf(out, "  columns: %v\n", c.Record.Columns)
			for _, w := range c.Record.Warnings {
				fmt.Fprintf(out, "  warning: %v\n", w)
			}
		}
	}
	return nil
}

func (s *Session) cmdHexDump(out io.Writer, args []string) error {
	n, err := pageArg(args)
	if err != nil {
		return err
	}
	page, err := s.DB.Page(n)
	if err != nil {
		return err
	}
	bt, err := sqlitefmt.ParseBTreePage(page, s.DB.Header.PageSize)
	if err != nil {
		return err
	}
	report := sqlitefmt.RecoverDeletedData(bt)
	fmt.Fprint(out, HexDump(bt, report, s.Theme))
	return nil
}

func (s *Session) cmdFreelistTrunk(out io.Writer, args []string) error {
	n, err := pageArg(args)
	if err != nil {
		return err
	}
	page, err := s.DB.Page(n)
	if err != nil {
		return err
	}
	trunk, err := sqlitefmt.ParseFreelistTrunk(page, s.DB.Header.PageSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "trunk page %d: next=%d leaves=%v implausible=%v\n", n, trunk.NextTrunk, trunk.LeafPages, trunk.Implausible)
	return nil
}

func (s *Session) cmdFreelistLeaf(out io.Writer, args []string) error {
	n, err := pageArg(args)
	if err != nil {
		return err
	}
	page, err := s.DB.Page(n)
	if err != nil {
		return err
	}
	status := sqlitefmt.CheckFreelistLeaf(page)
	if status.Clean {
		fmt.Fprintf(out, "leaf page %d: zeroed\n", n)
		return nil
	}
	fmt.Fprintf(out, "leaf page %d: NOT zeroed\n", n)
	fmt.Fprintf(out, "%x\n", status.Dump)
	return nil
}

func (s *Session) cmdFreelistGraph(out io.Writer) error {
	chain, err := s.DB.WalkFreelist()
	if err != nil {
		fmt.Fprintf(out, "walk stopped early: %v\n", err)
	}
	return WriteGraph(RenderFreelist(chain), "freelist.gv")
}
