package domain

// NoticeKind classifies an advisory notice.
type NoticeKind string

const (
	NoticeWishlistSyncFailed      NoticeKind = "wishlist_sync_failed"
	NoticeWishlistMigrationFailed NoticeKind = "wishlist_migration_failed"
)

// Notice is a passive, non-blocking message for the shopper, e.g. that a
// wishlist change could not be saved and was undone.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	SessionID string     `json:"sessionId"`
	AccountID string     `json:"accountId,omitempty"`
	ProductID ProductID  `json:"productId,omitempty"`
	Message   string     `json:"message"`
}
