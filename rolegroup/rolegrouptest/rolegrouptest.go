// Package rolegrouptest provides an in-memory role directory for tests.
package rolegrouptest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/zephyrtronium/brobot/rolegroup"
)

// Call is a recorded directory call.
type Call struct {
	Op   string // "read", "add", "remove", or "members"
	User string
	Role string
}

// Directory is an in-memory [rolegroup.Directory]. Roles must be registered
// with the guild through Roles before they can be added or removed.
type Directory struct {
	mu      sync.Mutex
	roles   map[string]bool
	members map[rolegroup.Member]*member
	fail    map[failKey]error
	calls   []Call
}

type member struct {
	name  string
	roles []string
}

type failKey struct {
	op, role string
}

var _ rolegroup.Directory = (*Directory)(nil)

// New creates a directory for a guild having the given roles.
func New(roles ...string) *Directory {
	d := &Directory{
		roles:   make(map[string]bool, len(roles)),
		members: make(map[rolegroup.Member]*member),
		fail:    make(map[failKey]error),
	}
	for _, r := range roles {
		d.roles[r] = true
	}
	return d
}

// Join adds a member holding the given roles.
func (d *Directory) Join(m rolegroup.Member, name string, roles ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m] = &member{name: name, roles: slices.Clone(roles)}
}

// Fail causes every op ("read", "add", "remove", or "members") on role to
// fail with err. For "read" and "members", role is ignored. A nil err clears
// the failure.
func (d *Directory) Fail(op, role string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if op == "read" || op == "members" {
		role = ""
	}
	if err == nil {
		delete(d.fail, failKey{op, role})
		return
	}
	d.fail[failKey{op, role}] = err
}

// Held returns the roles m holds, sorted. It returns nil if m holds none.
func (d *Directory) Held(m rolegroup.Member) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.members[m]
	if p == nil || len(p.roles) == 0 {
		return nil
	}
	r := slices.Clone(p.roles)
	slices.Sort(r)
	return r
}

// Calls returns the calls made so far.
func (d *Directory) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

// Reset forgets recorded calls.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// MemberRoles implements [rolegroup.Directory].
func (d *Directory) MemberRoles(ctx context.Context, m rolegroup.Member) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "read", User: m.User})
	if err := d.fail[failKey{"read", ""}]; err != nil {
		return nil, err
	}
	p := d.members[m]
	if p == nil {
		return nil, fmt.Errorf("no member %s in guild %s", m.User, m.Guild)
	}
	return slices.Clone(p.roles), nil
}

// AddRole implements [rolegroup.Directory].
func (d *Directory) AddRole(ctx context.Context, m rolegroup.Member, role string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "add", User: m.User, Role: role})
	p, err := d.check("add", m, role)
	if err != nil {
		return err
	}
	if !slices.Contains(p.roles, role) {
		p.roles = append(p.roles, role)
	}
	return nil
}

// RemoveRole implements [rolegroup.Directory].
func (d *Directory) RemoveRole(ctx context.Context, m rolegroup.Member, role string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "remove", User: m.User, Role: role})
	p, err := d.check("remove", m, role)
	if err != nil {
		return err
	}
	p.roles = slices.DeleteFunc(p.roles, func(r string) bool { return r == role })
	return nil
}

// Members implements [rolegroup.Directory].
func (d *Directory) Members(ctx context.Context, guild string) ([]rolegroup.Holder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "members"})
	if err := d.fail[failKey{"members", ""}]; err != nil {
		return nil, err
	}
	var r []rolegroup.Holder
	for m, p := range d.members {
		if m.Guild != guild {
			continue
		}
		r = append(r, rolegroup.Holder{Member: m, Name: p.name, Roles: slices.Clone(p.roles)})
	}
	slices.SortFunc(r, func(a, b rolegroup.Holder) int { return cmp.Compare(a.User, b.User) })
	return r, nil
}

// check must be called with d.mu held.
func (d *Directory) check(op string, m rolegroup.Member, role string) (*member, error) {
	if err := d.fail[failKey{op, role}]; err != nil {
		return nil, err
	}
	if !d.roles[role] {
		return nil, fmt.Errorf("%w: %q", rolegroup.ErrRoleNotFound, role)
	}
	p := d.members[m]
	if p == nil {
		return nil, fmt.Errorf("no member %s in guild %s", m.User, m.Guild)
	}
	return p, nil
}
