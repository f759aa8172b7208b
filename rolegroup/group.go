// Package rolegroup implements groups of mutually exclusive guild roles and
// the selection of a single role from a group for a member.
package rolegroup

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Entry is one selectable role in a group.
type Entry struct {
	// Name is the name users select the entry by, e.g. "green".
	Name string
	// Role is the name of the guild role, e.g. "Team Green".
	Role string
}

// Display is the name of the entry as shown to users, e.g. "Green".
func (e Entry) Display() string {
	r, n := utf8.DecodeRuneInString(e.Name)
	if r == utf8.RuneError {
		return e.Name
	}
	return string(unicode.ToUpper(r)) + e.Name[n:]
}

// Group is a named, ordered set of mutually exclusive roles.
// A Group is immutable once created and safe for concurrent use.
type Group struct {
	name    string
	entries []Entry
	// strip are roles which are removed alongside the group's roles whenever
	// a member selects an entry.
	strip []string
	// index maps case-folded entry names to indices in entries.
	index map[string]int
}

// New creates a group. Entry names must be unique ignoring case, and role
// names must be unique. Strip names roles that are removed along with the
// group's roles on every selection; they may not be group roles themselves.
func New(name string, entries []Entry, strip ...string) (*Group, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("role group %q has no entries", name)
	}
	g := &Group{
		name:    name,
		entries: make([]Entry, len(entries)),
		strip:   append([]string(nil), strip...),
		index:   make(map[string]int, len(entries)),
	}
	roles := make(map[string]bool, len(entries))
	var errs error
	for i, e := range entries {
		k := fold(e.Name)
		switch {
		case k == "":
			errs = errors.Join(errs, fmt.Errorf("entry %d of role group %q has no name", i, name))
			continue
		case e.Role == "":
			errs = errors.Join(errs, fmt.Errorf("entry %q of role group %q has no role", e.Name, name))
			continue
		}
		if _, ok := g.index[k]; ok {
			errs = errors.Join(errs, fmt.Errorf("duplicate entry %q in role group %q", e.Name, name))
			continue
		}
		if roles[e.Role] {
			errs = errors.Join(errs, fmt.Errorf("duplicate role %q in role group %q", e.Role, name))
			continue
		}
		g.entries[i] = e
		g.index[k] = i
		roles[e.Role] = true
	}
	for _, s := range strip {
		if roles[s] {
			errs = errors.Join(errs, fmt.Errorf("strip role %q is also in role group %q", s, name))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return g, nil
}

// Name returns the group's name.
func (g *Group) Name() string {
	return g.name
}

// Len returns the number of entries in the group.
func (g *Group) Len() int {
	return len(g.entries)
}

// Entries returns a copy of the group's entries in order.
func (g *Group) Entries() []Entry {
	return append([]Entry(nil), g.entries...)
}

// Strip returns a copy of the group's strip roles.
func (g *Group) Strip() []string {
	return append([]string(nil), g.strip...)
}

// Lookup finds the entry with the given name, ignoring case.
func (g *Group) Lookup(name string) (Entry, bool) {
	i, ok := g.index[fold(name)]
	if !ok {
		return Entry{}, false
	}
	return g.entries[i], true
}

// Entry returns the entry for a role name.
func (g *Group) Entry(role string) (Entry, bool) {
	for _, e := range g.entries {
		if e.Role == role {
			return e, true
		}
	}
	return Entry{}, false
}

// Has reports whether role is one of the group's roles.
func (g *Group) Has(role string) bool {
	_, ok := g.Entry(role)
	return ok
}

// Displays returns the display names of the group's entries in order.
func (g *Group) Displays() []string {
	r := make([]string, len(g.entries))
	for i, e := range g.entries {
		r[i] = e.Display()
	}
	return r
}

func fold(s string) string {
	// Casers are stateful, so they can't be shared.
	return cases.Fold().String(strings.TrimSpace(s))
}
