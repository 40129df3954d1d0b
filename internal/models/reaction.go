package models

// TargetKind names what a reaction is attached to.
type TargetKind string

const (
	TargetMessage TargetKind = "message"
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Valid reports whether k is a known target kind.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetMessage, TargetPost, TargetComment:
		return true
	}
	return false
}

// Reaction is one user's reaction on a target. A user holds at most one
// reaction per target.
type Reaction struct {
	ID       string       `json:"id"`
	UserID   string       `json:"userId"`
	Symbol   string       `json:"reaction"`
	TargetID string       `json:"targetId,omitempty"`
	User     *UserSummary `json:"user,omitempty"`
}

// FindReaction returns the index of userID's reaction, or -1.
func FindReaction(list []Reaction, userID string) int {
	for i, r := range list {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}
