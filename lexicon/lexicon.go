// Package lexicon provides compact exact-match lookup tables over small,
// fixed vocabularies (type names, protocol headers, position labels and so
// on). Tables are compiled once into a ternary search structure and are
// read-only afterwards, so they can be shared between goroutines freely.
package lexicon

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/cases"
)

// ErrNotFound is returned when no vocabulary entry matches the candidate.
var ErrNotFound = errors.New("lexicon: no such entry")

// Entry associates one vocabulary string with a small integer code.
type Entry struct {
	Key   string
	Value int
}

// node is one cell of the compiled ternary search structure. A key is matched
// byte by byte: less/greater move sideways without consuming input, eq moves
// down and consumes one byte. A terminating jump (char 0) holds the value.
type node struct {
	char     byte
	lo, hi   int32 // sideways links, 0 = none
	eq       int32 // downward link, or value when char == 0
	terminal bool
}

// Table is a compiled, immutable lookup structure.
type Table struct {
	nodes []node
}

var folder = cases.Fold()

// normalizeKey lowercases a vocabulary key. Keys must be printable ASCII.
func normalizeKey(key string) (string, error) {
	folded := folder.String(key)
	for i := 0; i < len(folded); i++ {
		if folded[i] < 0x20 || folded[i] > 0x7E {
			return "", fmt.Errorf("lexicon: key %q is not printable ASCII", key)
		}
	}
	return folded, nil
}

// New compiles a table from entries. Keys are matched case-insensitively.
// Duplicate keys (after folding) are an error.
func New(entries []Entry) (*Table, error) {
	folded := make([]Entry, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		key, err := normalizeKey(e.Key)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("lexicon: duplicate key %q", key)
		}
		seen[key] = struct{}{}
		folded[i] = Entry{Key: key, Value: e.Value}
	}
	sort.Slice(folded, func(i, j int) bool { return folded[i].Key < folded[j].Key })

	t := &Table{nodes: make([]node, 1, len(entries)*8)} // nodes[0] is a sentinel
	root := t.insertBalanced(folded)
	if root != 1 && len(folded) > 0 {
		return nil, errors.New("lexicon: compilation produced a detached root")
	}
	return t, nil
}

// MustNew is New for package-level table construction.
func MustNew(entries []Entry) *Table {
	t, err := New(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// insertBalanced inserts the median entry first so the sideways chains stay
// roughly balanced, keeping lookups O(key length + log alphabet).
func (t *Table) insertBalanced(entries []Entry) int32 {
	if len(entries) == 0 {
		return 0
	}
	mid := len(entries) / 2
	root := t.insert(entries[mid].Key, entries[mid].Value)
	t.insertBalanced(entries[:mid])
	t.insertBalanced(entries[mid+1:])
	return root
}

// Links are addressed as (node index, field) pairs instead of pointers so
// that growing the node slice cannot invalidate anything mid-insert.
const (
	linkLo = iota
	linkEq
	linkHi
	linkRoot
)

func (t *Table) readLink(from int32, field int) int32 {
	if field == linkRoot {
		if len(t.nodes) > 1 {
			return 1
		}
		return 0
	}
	n := t.nodes[from]
	switch field {
	case linkLo:
		return n.lo
	case linkHi:
		return n.hi
	default:
		return n.eq
	}
}

func (t *Table) writeLink(from int32, field int, to int32) {
	switch field {
	case linkLo:
		t.nodes[from].lo = to
	case linkHi:
		t.nodes[from].hi = to
	case linkEq:
		t.nodes[from].eq = to
	}
}

func (t *Table) insert(key string, value int) int32 {
	// An appended 0 byte terminates the key inside the structure, so a
	// stored key is only matched once the whole candidate is consumed.
	from, field := int32(0), linkRoot
	first := int32(0)
	for i := 0; i <= len(key); i++ {
		var c byte
		if i < len(key) {
			c = key[i]
		}
		for {
			next := t.readLink(from, field)
			if next == 0 {
				t.nodes = append(t.nodes, node{char: c})
				next = int32(len(t.nodes) - 1)
				t.writeLink(from, field, next)
				if first == 0 {
					first = next
				}
			}
			n := t.nodes[next]
			if c == n.char {
				if c == 0 {
					t.nodes[next].terminal = true
					t.nodes[next].eq = int32(value)
					return first
				}
				from, field = next, linkEq
				break
			} else if c < n.char {
				from, field = next, linkLo
			} else {
				from, field = next, linkHi
			}
		}
	}
	return first
}

// Lookup resolves a candidate string to its code. Matching is
// case-insensitive. Non-printable-ASCII input resolves to ErrNotFound rather
// than anything undefined. If skipPunct is set, the characters ' ', '-' and
// '_' in the candidate are ignored.
func (t *Table) Lookup(candidate string, skipPunct bool) (int, error) {
	if len(t.nodes) <= 1 {
		return 0, ErrNotFound
	}
	folded := folder.String(candidate)
	cur := int32(1)
	feed := func(c byte) bool {
		for cur != 0 {
			n := &t.nodes[cur]
			switch {
			case c == n.char:
				cur = n.eq
				return true
			case c < n.char:
				cur = n.lo
			default:
				cur = n.hi
			}
		}
		return false
	}
	for i := 0; i < len(folded); i++ {
		c := folded[i]
		if c < 0x20 || c > 0x7E {
			return 0, ErrNotFound
		}
		if skipPunct && (c == ' ' || c == '-' || c == '_') {
			continue
		}
		if !feed(c) {
			return 0, ErrNotFound
		}
	}
	// Terminator: the match only counts if the structure also ends here.
	for cur != 0 {
		n := &t.nodes[cur]
		if n.char == 0 {
			if n.terminal {
				return int(n.eq), nil
			}
			return 0, ErrNotFound
		}
		if 0 < n.char {
			cur = n.lo
		} else {
			cur = n.hi
		}
	}
	return 0, ErrNotFound
}
