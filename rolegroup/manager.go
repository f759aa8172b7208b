package rolegroup

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/zephyrtronium/brobot/keylock"
	"github.com/zephyrtronium/brobot/metrics"
)

// DefaultSettle is the default wait between removing and adding roles.
const DefaultSettle = 200 * time.Millisecond

// Member identifies a guild member.
type Member struct {
	// Guild is the guild ID.
	Guild string
	// User is the user ID.
	User string
}

// Holder is a member along with the roles they hold.
type Holder struct {
	Member
	// Name is the member's display name.
	Name string
	// Roles is the names of the roles the member holds.
	Roles []string
}

// Directory is the guild role and member directory of a chat service.
// Roles are named rather than identified by service IDs. Implementations
// should wrap errors with [ErrRoleNotFound] or [ErrPermissionDenied] where
// those apply.
type Directory interface {
	// MemberRoles returns the names of the roles a member holds.
	MemberRoles(ctx context.Context, m Member) ([]string, error)
	// AddRole gives a role to a member. Adding a role the member already
	// holds must succeed.
	AddRole(ctx context.Context, m Member, role string) error
	// RemoveRole takes a role from a member. Removing a role the member does
	// not hold must succeed.
	RemoveRole(ctx context.Context, m Member, role string) error
	// Members lists the members of a guild.
	Members(ctx context.Context, guild string) ([]Holder, error)
}

// Result is the outcome of a selection.
type Result struct {
	// Succeeded is true if every role change succeeded.
	Succeeded bool
	// Removed is the roles which were removed, in order of removal.
	Removed []string
	// Added is the role which was added, if any.
	Added string
	// Errors is the failed role changes in the order they happened.
	Errors []*RoleError
}

// Err returns the result's errors joined, or nil if there are none.
func (r *Result) Err() error {
	errs := make([]error, len(r.Errors))
	for i, err := range r.Errors {
		errs[i] = err
	}
	return errors.Join(errs...)
}

// Manager enforces that members hold at most one role of a group.
// Selections for the same member are serialized, so concurrent selections
// never leave a member with zero or several roles of a group.
type Manager struct {
	// Dir is the directory through which roles are read and changed.
	Dir Directory
	// Settle is the time to wait after removing roles before adding the new
	// one, giving the directory time to reflect the removals. It mitigates
	// stale reads by other writers; it is not what makes selection correct.
	Settle time.Duration
	// Log is the logger for role changes. If nil, slog.Default is used.
	Log *slog.Logger
	// Changes observes each role change with labels op and outcome.
	// It may be nil.
	Changes metrics.Observer

	once  sync.Once
	locks *keylock.Map[Member]
}

// NewManager creates a manager with the default settle interval.
func NewManager(dir Directory) *Manager {
	return &Manager{
		Dir:    dir,
		Settle: DefaultSettle,
	}
}

// Select removes every other role of g held by the member, waits for the
// settle interval, and then adds target. target is a role name; if it is
// empty, Select changes nothing and reports success.
func (m *Manager) Select(ctx context.Context, who Member, g *Group, target string) Result {
	if target == "" {
		return Result{Succeeded: true}
	}
	log := m.logger().With(
		slog.String("group", g.Name()),
		slog.String("guild", who.Guild),
		slog.String("member", who.User),
		slog.String("target", target),
	)
	var r Result
	if !g.Has(target) {
		log.WarnContext(ctx, "selected role not in group")
		r.Errors = append(r.Errors, roleError("add", target, ErrRoleNotFound))
		return r
	}

	unlock, err := m.lock(ctx, who)
	if err != nil {
		log.WarnContext(ctx, "canceled waiting for member", slog.Any("err", err))
		r.Errors = append(r.Errors, roleError("add", target, err))
		return r
	}
	defer unlock()

	remove := m.removals(ctx, log, who, g, target)
	for _, role := range remove {
		if err := m.Dir.RemoveRole(ctx, who, role); err != nil {
			e := roleError("remove", role, err)
			log.ErrorContext(ctx, "couldn't remove role", slog.String("role", role), slog.String("kind", e.Kind.String()), slog.Any("err", err))
			m.observe("remove", e.Kind.String())
			r.Errors = append(r.Errors, e)
			continue
		}
		log.DebugContext(ctx, "removed role", slog.String("role", role))
		m.observe("remove", "ok")
		r.Removed = append(r.Removed, role)
	}

	if len(remove) > 0 {
		if err := sleep(ctx, m.Settle); err != nil {
			log.WarnContext(ctx, "canceled while settling", slog.Any("err", err))
			r.Errors = append(r.Errors, roleError("add", target, err))
			return r
		}
	}

	if err := m.Dir.AddRole(ctx, who, target); err != nil {
		e := roleError("add", target, err)
		log.ErrorContext(ctx, "couldn't add role", slog.String("kind", e.Kind.String()), slog.Any("err", err))
		m.observe("add", e.Kind.String())
		r.Errors = append(r.Errors, e)
		return r
	}
	m.observe("add", "ok")
	r.Added = target
	r.Succeeded = len(r.Errors) == 0
	log.InfoContext(ctx, "selected role",
		slog.Any("removed", r.Removed),
		slog.Int("errors", len(r.Errors)),
	)
	return r
}

// removals lists the roles to remove from who before adding target, in group
// order followed by the strip roles.
func (m *Manager) removals(ctx context.Context, log *slog.Logger, who Member, g *Group, target string) []string {
	held, err := m.Dir.MemberRoles(ctx, who)
	if err != nil {
		// We can't tell what the member holds. Removing roles they don't have
		// is harmless, so remove everything.
		log.WarnContext(ctx, "couldn't read member roles; removing all", slog.Any("err", err))
		held = nil
		for _, e := range g.entries {
			held = append(held, e.Role)
		}
		held = append(held, g.strip...)
	}
	var r []string
	for _, e := range g.entries {
		if e.Role != target && slices.Contains(held, e.Role) {
			r = append(r, e.Role)
		}
	}
	for _, s := range g.strip {
		if slices.Contains(held, s) {
			r = append(r, s)
		}
	}
	return r
}

// Filled is a member who was given a role by [Manager.Fill].
type Filled struct {
	Holder
	// Entry is the entry the member was given.
	Entry Entry
}

// FillResult is the outcome of [Manager.Fill].
type FillResult struct {
	// Filled is the members who were given a role of the group.
	Filled []Filled
	// Errors is the failed role changes.
	Errors []*RoleError
}

// Fill gives a role of g to every member of guild who holds the eligible role
// but none of g's roles. If eligible is empty, every member is eligible.
// The role is chosen by choose. If marker is not empty,
// those members are also given the marker role, which identifies them as
// having been assigned automatically. A member whose color was added counts
// as filled even if the marker couldn't be added.
func (m *Manager) Fill(ctx context.Context, guild string, g *Group, eligible, marker string, choose func() Entry) (FillResult, error) {
	var r FillResult
	all, err := m.Dir.Members(ctx, guild)
	if err != nil {
		return r, err
	}
	log := m.logger().With(slog.String("group", g.Name()), slog.String("guild", guild))
	for _, h := range all {
		if eligible != "" && !slices.Contains(h.Roles, eligible) {
			continue
		}
		if slices.ContainsFunc(h.Roles, g.Has) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return r, err
		}
		e := choose()
		unlock, err := m.lock(ctx, h.Member)
		if err != nil {
			return r, err
		}
		// The marker is never held without a color.
		if err := m.Dir.AddRole(ctx, h.Member, e.Role); err != nil {
			unlock()
			r.Errors = append(r.Errors, m.fillError(ctx, log, h, e.Role, err))
			continue
		}
		m.observe("add", "ok")
		if marker != "" {
			if err := m.Dir.AddRole(ctx, h.Member, marker); err != nil {
				r.Errors = append(r.Errors, m.fillError(ctx, log, h, marker, err))
			} else {
				m.observe("add", "ok")
			}
		}
		unlock()
		log.InfoContext(ctx, "filled role", slog.String("member", h.User), slog.String("name", h.Name), slog.String("role", e.Role))
		r.Filled = append(r.Filled, Filled{Holder: h, Entry: e})
	}
	return r, nil
}

func (m *Manager) fillError(ctx context.Context, log *slog.Logger, h Holder, role string, err error) *RoleError {
	re := roleError("add", role, err)
	log.ErrorContext(ctx, "couldn't fill role",
		slog.String("member", h.User),
		slog.String("role", role),
		slog.String("kind", re.Kind.String()),
		slog.Any("err", err),
	)
	m.observe("add", re.Kind.String())
	return re
}

func (m *Manager) lock(ctx context.Context, who Member) (unlock func(), err error) {
	m.once.Do(func() { m.locks = keylock.New[Member]() })
	return m.locks.Lock(ctx, who)
}

func (m *Manager) logger() *slog.Logger {
	if m.Log == nil {
		return slog.Default()
	}
	return m.Log
}

func (m *Manager) observe(op, outcome string) {
	if m.Changes == nil {
		return
	}
	m.Changes.Observe(1, op, outcome)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
