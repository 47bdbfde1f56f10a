package intel

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func broadcast(session uint32, text string) BroadcastRequest {
	return BroadcastRequest{SessionID: session, InstanceID: "inst", Category: "info", Message: text}
}

func TestAddBroadcast(t *testing.T) {
	h := New()

	t.Run("assigns id and timestamp", func(t *testing.T) {
		req := broadcast(1, "found the config loader")
		req.Metadata = json.RawMessage(`{"file":"config.go"}`)

		msg, err := h.AddBroadcast(req)
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.NotEmpty(t, msg.Timestamp)
		assert.Equal(t, uint32(1), msg.SessionID)
		assert.Equal(t, "inst", msg.InstanceID)
		assert.JSONEq(t, `{"file":"config.go"}`, string(msg.Metadata))
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		req := broadcast(1, "x")
		req.Category = "gossip"

		_, err := h.AddBroadcast(req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "category", verr.Field)
	})

	t.Run("rejects oversized message", func(t *testing.T) {
		_, err := h.AddBroadcast(broadcast(1, strings.Repeat("a", MaxMessageLen+1)))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "message", verr.Field)
	})

	t.Run("accepts message at the limit", func(t *testing.T) {
		_, err := h.AddBroadcast(broadcast(1, strings.Repeat("a", MaxMessageLen)))
		assert.NoError(t, err)
	})
}

func TestBroadcastRingBuffer(t *testing.T) {
	h := New()
	for i := 0; i < 250; i++ {
		_, err := h.AddBroadcast(broadcast(1, fmt.Sprintf("msg-%d", i)))
		require.NoError(t, err)
	}

	all := h.AllMessages()
	require.Len(t, all, MaxMessages)
	assert.Equal(t, "msg-50", all[0].Message)
	assert.Equal(t, "msg-249", all[len(all)-1].Message)
	for i, m := range all {
		assert.Equal(t, fmt.Sprintf("msg-%d", i+50), m.Message)
	}
}

func TestMessagesForSuppressesEcho(t *testing.T) {
	h := New()
	for _, s := range []uint32{1, 2, 1, 3, 2} {
		_, err := h.AddBroadcast(broadcast(s, fmt.Sprintf("from %d", s)))
		require.NoError(t, err)
	}

	for _, s := range []uint32{1, 2, 3, 4} {
		msgs := h.MessagesFor(s)
		for _, m := range msgs {
			assert.NotEqual(t, s, m.SessionID)
		}
	}

	msgs := h.MessagesFor(1)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"from 2", "from 3", "from 2"},
		[]string{msgs[0].Message, msgs[1].Message, msgs[2].Message})
	assert.Len(t, h.MessagesFor(4), 5)
}

func TestMessagesForEmptyIsNotNil(t *testing.T) {
	b, err := json.Marshal(New().MessagesFor(1))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestScratchpad(t *testing.T) {
	h := New()

	entry, err := h.WriteScratchpad(ScratchpadWriteRequest{
		SessionID: 2, Category: "decision", Title: "Use chi", Content: "router choice",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Use chi", entry.Title)

	entries := h.ReadScratchpad()
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])

	h.ClearScratchpad()
	assert.Empty(t, h.ReadScratchpad())
}

func TestScratchpadValidation(t *testing.T) {
	h := New()
	cases := []struct {
		name  string
		req   ScratchpadWriteRequest
		field string
	}{
		{"bad category", ScratchpadWriteRequest{Category: "todo"}, "category"},
		{"long title", ScratchpadWriteRequest{Category: "note", Title: strings.Repeat("t", MaxTitleLen+1)}, "title"},
		{"long content", ScratchpadWriteRequest{Category: "api", Content: strings.Repeat("c", MaxContentLen+1)}, "content"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.WriteScratchpad(tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	assert.Empty(t, h.ReadScratchpad())
}

func TestScratchpadRingBuffer(t *testing.T) {
	h := New()
	for i := 0; i < MaxScratchpad+10; i++ {
		_, err := h.WriteScratchpad(ScratchpadWriteRequest{Category: "note", Title: fmt.Sprintf("n%d", i)})
		require.NoError(t, err)
	}
	entries := h.ReadScratchpad()
	require.Len(t, entries, MaxScratchpad)
	assert.Equal(t, "n10", entries[0].Title)
}

func TestConcurrentBroadcasts(t *testing.T) {
	h := New()
	var wg sync.WaitGroup
	for s := uint32(1); s <= 8; s++ {
		wg.Add(1)
		go func(s uint32) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = h.AddBroadcast(broadcast(s, "m"))
				_ = h.MessagesFor(s)
			}
		}(s)
	}
	wg.Wait()
	assert.Len(t, h.AllMessages(), MaxMessages)
}
