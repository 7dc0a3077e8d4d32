// Command inspect is a read-only forensic viewer over the SQLite on-disk
// file format: header, pages, B-tree cells, the freelist, and the
// deleted-row remnants still sitting in freeblocks and unallocated space.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/lindeneg/sqlite-forensics/internal/inspector"
	"github.com/lindeneg/sqlite-forensics/internal/sqlitefmt"
)

// CLI is the top-level command line surface: a single positional database
// path and one reserved flag.
var CLI struct {
	Database string `arg:"" help:"Path to the SQLite database file to inspect" type:"existingfile"`
	Proof    bool   `help:"Reserved for future use; currently a no-op" name:"proof"`
}

func main() {
	kong.Parse(&CLI,
		kong.Description("Interactive forensic inspector for the SQLite file format."),
		// Usage problems exit 2; kong's default of 1 is reserved for I/O
		// failures. Help still exits 0.
		kong.Exit(func(code int) {
			if code != 0 {
				os.Exit(2)
			}
			os.Exit(0)
		}),
	)

	data, err := os.ReadFile(CLI.Database)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}

	db, err := sqlitefmt.Open(data)
	if err != nil && db == nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect: warning:", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	theme := inspector.DefaultTheme()
	session := inspector.NewSession(db, theme, os.Stdout)

	fmt.Printf("opened %s: %d pages, page size %d\n", CLI.Database, db.PageCount(), db.Header.PageSize)
	fmt.Println(`type "help" for commands`)

	if err := session.Run(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
}
