// AngelaMos | 2026
// classify_test.go

package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownID = "17841400000000000"

func TestClassifyDirectMessage(t *testing.T) {
	body := `{
		"object": "instagram",
		"entry": [{
			"id": "17841400000000000",
			"time": 1717232400,
			"messaging": [{
				"sender": {"id": "123"},
				"recipient": {"id": "17841400000000000"},
				"timestamp": 1717232700000,
				"message": {
					"mid": "mid.1",
					"text": "A1B2C3",
					"attachments": [{"type": "ig_reel", "payload": {"url": "https://cdn.example/r.mp4"}}]
				}
			}]
		}]
	}`

	events, err := Classify([]byte(body), ownID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, KindDirectMessage, ev.Kind)
	assert.Equal(t, "mid.1", ev.ID)
	assert.Equal(t, "123", ev.SenderID)
	assert.Equal(t, "A1B2C3", ev.Text)
	assert.Equal(t, int64(1717232700), ev.Timestamp.Unix())
	require.Len(t, ev.SharedMedia(), 1)
	assert.Equal(t, "https://cdn.example/r.mp4", ev.SharedMedia()[0].URL)
}

func TestClassifyDropsEchoesAndForeignRecipients(t *testing.T) {
	body := `{
		"object": "instagram",
		"entry": [{
			"id": "17841400000000000",
			"messaging": [
				{"sender": {"id": "17841400000000000"}, "recipient": {"id": "123"},
				 "message": {"mid": "mid.echo", "text": "hi", "is_echo": true}},
				{"sender": {"id": "123"}, "recipient": {"id": "999"},
				 "message": {"mid": "mid.other", "text": "hi"}},
				{"sender": {"id": "123"}, "recipient": {"id": "17841400000000000"},
				 "read": {"mid": "mid.read"}},
				{"sender": {"id": "123"}, "recipient": {"id": "17841400000000000"},
				 "message": {"text": "no mid"}}
			]
		}]
	}`

	events, err := Classify([]byte(body), ownID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClassifyChanges(t *testing.T) {
	body := `{
		"object": "instagram",
		"entry": [
			{"id": "17841400000000000", "time": 1717232400, "changes": [
				{"field": "mentions", "value": {"media_id": "m1", "comment_id": "c1"}},
				{"field": "comments", "value": {"id": "c2", "text": "nice", "from": {"id": "555"}, "media": {"id": "m2"}}},
				{"field": "comments", "value": {"id": "c3", "text": "thanks", "from": {"id": "17841400000000000"}}},
				{"field": "story_insights", "value": {"media_id": "m3"}}
			]},
			{"id": "999", "changes": [
				{"field": "mentions", "value": {"media_id": "m4"}}
			]}
		]
	}`

	events, err := Classify([]byte(body), ownID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, KindMention, events[0].Kind)
	assert.Equal(t, "c1", events[0].ID)
	assert.Equal(t, "m1", events[0].MediaID)

	assert.Equal(t, KindComment, events[1].Kind)
	assert.Equal(t, "c2", events[1].ID)
	assert.Equal(t, "555", events[1].SenderID)
	assert.Equal(t, "m2", events[1].MediaID)
}

func TestClassifyRejectsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `{"object":`,
		"wrong object": `{"object":"page","entry":[]}`,
		"no object":    `{"entry":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Classify([]byte(body), ownID)
			require.ErrorIs(t, err, ErrMalformedDelivery)
		})
	}
}
