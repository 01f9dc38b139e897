// AngelaMos | 2026
// event.go

package webhook

import (
	"time"
)

type Kind string

const (
	KindDirectMessage Kind = "direct_message"
	KindMention       Kind = "mention"
	KindComment       Kind = "comment"
)

type Attachment struct {
	Type string
	URL  string
}

// Event is one addressed sub-event extracted from a delivery. ID is the
// platform's identifier for the message, mention, or comment and is what
// handlers deduplicate on.
type Event struct {
	Kind        Kind
	ID          string
	SenderID    string
	RecipientID string
	Text        string
	MediaID     string
	Attachments []Attachment
	Timestamp   time.Time
}

// SharedMedia returns attachments that reference a post or reel.
func (e Event) SharedMedia() []Attachment {
	var shared []Attachment
	for _, a := range e.Attachments {
		switch a.Type {
		case "share", "ig_reel", "reel":
			if a.URL != "" {
				shared = append(shared, a)
			}
		}
	}
	return shared
}
