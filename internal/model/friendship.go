package model

// Friendship is an unordered pair of distinct users. Stored as two
// directed rows (A->B and B->A) so relational queries stay single-key;
// both rows are created and removed as a unit (see internal/storage).
type Friendship struct {
	A UserID
	B UserID
}

// Normalize returns the pair ordered so that equal friendships (A,B) and
// (B,A) compare equal, useful for deduplication in tests and caches.
func (f Friendship) Normalize() Friendship {
	if f.A.String() <= f.B.String() {
		return f
	}
	return Friendship{A: f.B, B: f.A}
}

// FriendshipUpdateKind distinguishes the two FriendshipUpdate arms.
type FriendshipUpdateKind int

const (
	FriendshipNew FriendshipUpdateKind = iota
	FriendshipRemoved
)

func (k FriendshipUpdateKind) String() string {
	switch k {
	case FriendshipNew:
		return "new"
	case FriendshipRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// FriendshipUpdate is the bus-level event published on add-friend and
// remove-friend: New(a,b) | Removed(a,b). The published pair is directed
// the way the publisher observed it; the bidirectional publish on
// add-friend ensures both parties see it as directed at themselves.
type FriendshipUpdate struct {
	Kind FriendshipUpdateKind
	A    UserID
	B    UserID
}

// FriendUpdateKind distinguishes the two FriendUpdate arms.
type FriendUpdateKind int

const (
	FriendNew FriendUpdateKind = iota
	FriendRemoved
)

// FriendUpdate is the per-subscriber projection of a FriendshipUpdate:
// New(friend) | Removed(friend), already resolved relative to the
// subscribing user.
type FriendUpdate struct {
	Kind   FriendUpdateKind
	Friend UserID
}
