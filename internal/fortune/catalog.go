// Package fortune implements the fortune session provider: a read-only
// virtual resource where every open picks one fortune at random and
// serves it byte-for-byte across any number of partial reads.
//
// Layout:
//
//	Catalog   immutable, shared by every session
//	Provider  handle → session map, Open / Read / Close / Stat
package fortune

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Catalog is an immutable, non-empty ordered list of fortunes.  It is
// safe for concurrent use because nothing mutates it after creation.
type Catalog struct {
	entries []string
}

// NewCatalog copies entries into a new Catalog.  Empty catalogs and
// empty entries are rejected.
func NewCatalog(entries []string) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		if e == "" {
			return nil, fmt.Errorf("entry %d: %w", i, ErrEmptyCatalog)
		}
		out[i] = e
	}
	return &Catalog{entries: out}, nil
}

// Len returns the number of fortunes.
func (c *Catalog) Len() int { return len(c.entries) }

// At returns fortune i.  It panics if i is out of range, like a slice.
func (c *Catalog) At(i int) string { return c.entries[i] }

// ── fortune(6) text format ───────────────────────────────────────────

// ParseCatalog reads the classic fortune(6) format: entries separated
// by lines consisting of a single "%".  Leading and trailing blank
// lines of each entry are dropped; entries that end up empty are
// skipped.  Each kept entry ends with exactly one newline.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var (
		entries []string
		cur     []string
	)

	flush := func() {
		text := strings.Trim(strings.Join(cur, "\n"), "\n")
		if strings.TrimSpace(text) != "" {
			entries = append(entries, text+"\n")
		}
		cur = cur[:0]
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "%" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	flush()

	return NewCatalog(entries)
}

// LoadCatalog parses the fortune file at path.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	c, err := ParseCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// builtin is compiled into the binary and used when no -f file is given.
var builtin = []string{ //nolint:gochecknoglobals
	"You will be hungry again in one hour.\n",
	"A closed mouth gathers no feet.\n",
	"The early bird gets the worm, but the second mouse gets the cheese.\n",
	"Today is a good day to read the source.\n",
	"Your code will compile on the first try. Eventually.\n",
	"There is no place like 127.0.0.1.\n",
	"A journey of a thousand miles begins with a single step.\n",
	"Beware of bugs in the above code; I have only proved it correct, not tried it.\n",
}

// DefaultCatalog returns the compiled-in catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(builtin)
	if err != nil {
		panic(err) // builtin is non-empty
	}
	return c
}
