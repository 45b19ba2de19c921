package interfaces

import "github.com/inboxrelay/inboxrelay/internal/models"

// MailSource is one authenticated mailbox session, scoped to a single
// poll cycle.
type MailSource interface {
	// Search returns UIDs strictly greater than sinceUID matching the
	// configured server-side filter.
	Search(sinceUID uint32) ([]uint32, error)
	// Fetch retrieves one full message. An error means this message is
	// skipped; it never aborts the batch.
	Fetch(uid uint32) (*models.MailMessage, error)
	// MarkSeen and AddLabel are best-effort post-processing; the boolean
	// reports whether the store succeeded.
	MarkSeen(uid uint32) bool
	AddLabel(uid uint32, label string) bool
	Close()
}

// Notifier delivers a formatted notification downstream.
type Notifier interface {
	Send(text string) bool
}

// CursorStore persists the highest handled UID across restarts.
type CursorStore interface {
	// Load never fails: a missing or corrupt record reads as zero.
	Load() uint32
	Save(uid uint32) error
}
