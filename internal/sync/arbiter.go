package sync

import "errors"

// Role is the authority position a participant holds for a session.
type Role string

const (
	RoleAuthority   Role = "authority"
	RoleParticipant Role = "participant"
)

var (
	ErrAlreadyBound = errors.New("authority already bound for this session")
	ErrNoOwner      = errors.New("authority owner identity is empty")
	ErrUnbound      = errors.New("authority role undetermined")
)

// Arbiter pins the session authority exactly once. The owner is whichever
// participant was recorded first when the session became known locally; the
// stored value is never recomputed from a live, possibly-reordered
// participant collection, which is what produces two simultaneous
// authorities.
type Arbiter struct {
	ownerID string
	localID string
	bound   bool
}

// Bind records the session owner and the local identity. It may be called
// once; later calls fail rather than silently reassigning authority.
func (a *Arbiter) Bind(ownerID, localID string) error {
	if a.bound {
		return ErrAlreadyBound
	}
	if ownerID == "" {
		return ErrNoOwner
	}
	a.ownerID = ownerID
	a.localID = localID
	a.bound = true
	return nil
}

// Bound reports whether the role has been determined.
func (a *Arbiter) Bound() bool {
	return a.bound
}

// OwnerID returns the bound authority identity, or "".
func (a *Arbiter) OwnerID() string {
	return a.ownerID
}

// IsLocalAuthority is a pure read of the stored assignment. Unbound arbiters
// answer false: a peer that cannot determine its role must never assume
// authority.
func (a *Arbiter) IsLocalAuthority() bool {
	return a.bound && a.ownerID == a.localID
}

// Role returns the local participant's role, defaulting to participant when
// undetermined.
func (a *Arbiter) Role() Role {
	if a.IsLocalAuthority() {
		return RoleAuthority
	}
	return RoleParticipant
}
