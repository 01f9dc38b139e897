// AngelaMos | 2026
// classify.go

package webhook

import (
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

const objectInstagram = "instagram"

var ErrMalformedDelivery = errors.New("malformed delivery")

// Classify extracts the events in body addressed to ownID. Echoes of our own
// messages, events for other recipients, and unknown shapes are dropped.
func Classify(body []byte, ownID string) ([]Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedDelivery
	}

	root := gjson.ParseBytes(body)
	if root.Get("object").String() != objectInstagram {
		return nil, ErrMalformedDelivery
	}

	var events []Event
	root.Get("entry").ForEach(func(_, entry gjson.Result) bool {
		entryID := entry.Get("id").String()

		entry.Get("messaging").ForEach(func(_, m gjson.Result) bool {
			if ev, ok := classifyMessaging(m, ownID); ok {
				events = append(events, ev)
			}
			return true
		})

		if entryID != ownID {
			return true
		}

		entry.Get("changes").ForEach(func(_, c gjson.Result) bool {
			if ev, ok := classifyChange(c, ownID, entry.Get("time")); ok {
				events = append(events, ev)
			}
			return true
		})

		return true
	})

	return events, nil
}

func classifyMessaging(m gjson.Result, ownID string) (Event, bool) {
	if m.Get("recipient.id").String() != ownID {
		return Event{}, false
	}

	msg := m.Get("message")
	if !msg.IsObject() || msg.Get("is_echo").Bool() {
		return Event{}, false
	}

	mid := msg.Get("mid")
	sender := m.Get("sender.id").String()
	if !mid.Exists() || mid.String() == "" || sender == "" || sender == ownID {
		return Event{}, false
	}

	ev := Event{
		Kind:        KindDirectMessage,
		ID:          mid.String(),
		SenderID:    sender,
		RecipientID: ownID,
		Text:        msg.Get("text").String(),
		Timestamp:   millis(m.Get("timestamp")),
	}

	msg.Get("attachments").ForEach(func(_, a gjson.Result) bool {
		ev.Attachments = append(ev.Attachments, Attachment{
			Type: a.Get("type").String(),
			URL:  a.Get("payload.url").String(),
		})
		return true
	})

	return ev, true
}

func classifyChange(c gjson.Result, ownID string, entryTime gjson.Result) (Event, bool) {
	value := c.Get("value")
	if !value.IsObject() {
		return Event{}, false
	}

	switch c.Get("field").String() {
	case "mentions":
		mediaID := value.Get("media_id").String()
		if mediaID == "" {
			return Event{}, false
		}
		id := mediaID
		if commentID := value.Get("comment_id").String(); commentID != "" {
			id = commentID
		}
		return Event{
			Kind:        KindMention,
			ID:          id,
			RecipientID: ownID,
			MediaID:     mediaID,
			Timestamp:   seconds(entryTime),
		}, true

	case "comments":
		id := value.Get("id").String()
		sender := value.Get("from.id").String()
		if id == "" || sender == ownID {
			return Event{}, false
		}
		return Event{
			Kind:        KindComment,
			ID:          id,
			SenderID:    sender,
			RecipientID: ownID,
			Text:        value.Get("text").String(),
			MediaID:     value.Get("media.id").String(),
			Timestamp:   seconds(entryTime),
		}, true
	}

	return Event{}, false
}

func millis(r gjson.Result) time.Time {
	if !r.Exists() {
		return time.Time{}
	}
	return time.UnixMilli(r.Int()).UTC()
}

func seconds(r gjson.Result) time.Time {
	if !r.Exists() {
		return time.Time{}
	}
	return time.Unix(r.Int(), 0).UTC()
}
