package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEventMessageWithAttachment(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "page-1",
			"time": 1741000000000,
			"messaging": [{
				"sender": {"id": "user-1"},
				"recipient": {"id": "self-1"},
				"timestamp": 1741000000123,
				"message": {
					"mid": "m-1",
					"attachments": [{
						"type": "ig_reel",
						"payload": {"url": "https://cdn.example/reel.mp4", "title": "look at this"}
					}]
				}
			}]
		}]
	}`)

	ev, err := ParseEvent(body)
	require.NoError(t, err)
	require.Equal(t, "instagram", ev.Object)
	require.Len(t, ev.Entry, 1)
	require.Len(t, ev.Entry[0].Messaging, 1)

	m := ev.Entry[0].Messaging[0]
	require.Equal(t, "user-1", m.Sender.ID)
	require.Equal(t, "m-1", m.Message.MID)
	require.Len(t, m.Message.Attachments, 1)
	require.Equal(t, "ig_reel", m.Message.Attachments[0].Type)
	require.Equal(t, "https://cdn.example/reel.mp4", m.Message.Attachments[0].Payload["url"])
	require.False(t, m.IsReceipt())
}

func TestParseEventRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	_, err := ParseEvent([]byte(`{"entry": [`))
	require.Error(t, err)
}

func TestIsReceipt(t *testing.T) {
	t.Parallel()

	read := MessagingEvent{Read: []byte(`{"watermark": 1741000000000}`)}
	require.True(t, read.IsReceipt())

	delivery := MessagingEvent{Delivery: []byte(`{"watermark": 1741000000000}`)}
	require.True(t, delivery.IsReceipt())

	msg := MessagingEvent{Message: &Message{MID: "m-1", Text: "hi"}}
	require.False(t, msg.IsReceipt())

	// A bare event with no payload at all is not a receipt either.
	require.False(t, (&MessagingEvent{}).IsReceipt())
}
