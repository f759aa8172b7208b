package rolegroup

import (
	"errors"
	"fmt"
)

var (
	// ErrRoleNotFound is returned by directories when a named role does not
	// exist in the guild.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionDenied is returned by directories when the bot lacks the
	// rights to change a member's roles.
	ErrPermissionDenied = errors.New("permission denied")
)

// ErrorKind classifies a failed role change.
type ErrorKind int

const (
	// Transport is any failure other than the specific kinds, usually the
	// underlying API call failing or timing out.
	Transport ErrorKind = iota
	// RoleNotFound means the role does not exist in the guild.
	RoleNotFound
	// PermissionDenied means the bot may not modify the member's roles.
	PermissionDenied
)

func (k ErrorKind) String() string {
	switch k {
	case Transport:
		return "transport"
	case RoleNotFound:
		return "role not found"
	case PermissionDenied:
		return "permission denied"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// KindOf classifies an error returned by a [Directory].
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		return RoleNotFound
	case errors.Is(err, ErrPermissionDenied):
		return PermissionDenied
	default:
		return Transport
	}
}

// RoleError is a failure to add or remove a single role.
type RoleError struct {
	// Role is the name of the role that failed to change.
	Role string
	// Op is "add" or "remove".
	Op string
	// Kind is the classification of Err.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("couldn't %s role %q: %v", e.Op, e.Role, e.Err)
}

func (e *RoleError) Unwrap() error {
	return e.Err
}

func roleError(op, role string, err error) *RoleError {
	return &RoleError{Role: role, Op: op, Kind: KindOf(err), Err: err}
}
