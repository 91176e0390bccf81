package model

// SeenTag records that a user has read a message. Presence implies read;
// tag-read creates it, tag-unread removes it, both idempotently.
type SeenTag struct {
	UserID    UserID
	MessageID MessageID
}
