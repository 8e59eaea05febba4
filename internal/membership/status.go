// Package membership checks whether a user has joined every configured
// channel and reports the ones still missing.
package membership

// Status is the membership state reported by the Bot API for one chat.
type Status int

const (
	StatusUnknown Status = iota
	StatusCreator
	StatusAdministrator
	StatusMember
	StatusRestricted
	StatusLeft
	StatusKicked
)

func (s Status) String() string {
	switch s {
	case StatusCreator:
		return "creator"
	case StatusAdministrator:
		return "administrator"
	case StatusMember:
		return "member"
	case StatusRestricted:
		return "restricted"
	case StatusLeft:
		return "left"
	case StatusKicked:
		return "kicked"
	default:
		return "unknown"
	}
}

// MemberStatus pairs a Status with the is_member flag that restricted users
// carry.
type MemberStatus struct {
	Kind     Status
	IsMember bool
}

// IsQualifyingMember reports whether the status counts as having joined.
// Restricted users qualify only while they are still members.
func IsQualifyingMember(status MemberStatus) bool {
	switch status.Kind {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	case StatusRestricted:
		return status.IsMember
	default:
		return false
	}
}
