package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VentureIA/chorus/internal/eventbus"
	"github.com/VentureIA/chorus/internal/intel"
	"github.com/VentureIA/chorus/internal/logging"
	"github.com/VentureIA/chorus/internal/store"
	"github.com/VentureIA/chorus/internal/webaccess"
)

func TestUnknownCommand(t *testing.T) {
	r := New()
	_, err := r.Dispatch(context.Background(), "spawn_shell", nil)
	require.Error(t, err)
	assert.Equal(t, "Command 'spawn_shell' not yet supported via web access", err.Error())

	var unknown *UnknownCommandError
	assert.True(t, errors.As(err, &unknown))
}

func TestDispatchEncodesResults(t *testing.T) {
	r := New()
	r.Register("nil", func(context.Context, Args) (any, error) { return nil, nil })
	r.Register("raw", func(context.Context, Args) (any, error) { return json.RawMessage(`{"a":1}`), nil })
	r.Register("nilraw", func(context.Context, Args) (any, error) { return json.RawMessage(nil), nil })
	r.Register("struct", func(context.Context, Args) (any, error) {
		return struct {
			N int `json:"n"`
		}{7}, nil
	})
	r.Register("fail", func(context.Context, Args) (any, error) { return nil, errors.New("nope") })

	ctx := context.Background()
	for name, want := range map[string]string{"nil": "null", "raw": `{"a":1}`, "nilraw": "null", "struct": `{"n":7}`} {
		got, err := r.Dispatch(ctx, name, nil)
		require.NoError(t, err, name)
		assert.JSONEq(t, want, string(got), name)
	}

	_, err := r.Dispatch(ctx, "fail", nil)
	assert.EqualError(t, err, "nope")
	assert.Equal(t, []string{"fail", "nil", "nilraw", "raw", "struct"}, r.Commands())
}

func TestArgs(t *testing.T) {
	r := New()
	r.Register("echo", func(_ context.Context, a Args) (any, error) {
		s, err := a.String("name")
		if err != nil {
			return nil, err
		}
		n, err := a.Uint32("sessionId")
		if err != nil {
			return nil, err
		}
		return map[string]any{"name": s, "sessionId": n}, nil
	})
	ctx := context.Background()

	got, err := r.Dispatch(ctx, "echo", json.RawMessage(`{"name":"x","sessionId":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","sessionId":3}`, string(got))

	for args, key := range map[string]string{
		`null`:                             "name",
		`{}`:                               "name",
		`{"name":5,"sessionId":1}`:         "name",
		`{"name":"x"}`:                     "sessionId",
		`{"name":"x","sessionId":-1}`:      "sessionId",
		`{"name":"x","sessionId":1.5}`:     "sessionId",
		`{"name":"x","sessionId":"three"}`: "sessionId",
	} {
		_, err := r.Dispatch(ctx, "echo", json.RawMessage(args))
		assert.EqualError(t, err, "Missing or invalid '"+key+"' argument", args)
	}

	_, err = r.Dispatch(ctx, "echo", json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestIntelCommands(t *testing.T) {
	hub := intel.New()
	bus := eventbus.New(16)
	rx := bus.Subscribe()
	defer rx.Close()

	r := New()
	RegisterIntel(r, hub, bus, logging.Discard())
	ctx := context.Background()

	_, err := hub.AddBroadcast(intel.BroadcastRequest{SessionID: 1, Category: "info", Message: "hello"})
	require.NoError(t, err)

	got, err := r.Dispatch(ctx, "get_intel_broadcasts", nil)
	require.NoError(t, err)
	var msgs []intel.BroadcastMessage
	require.NoError(t, json.Unmarshal(got, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Message)

	got, err = r.Dispatch(ctx, "write_intel_scratchpad",
		json.RawMessage(`{"category":"decision","title":"db","content":"use postgres"}`))
	require.NoError(t, err)
	var entry intel.ScratchpadEntry
	require.NoError(t, json.Unmarshal(got, &entry))
	assert.Equal(t, uint32(0), entry.SessionID)
	assert.Equal(t, "db", entry.Title)

	ev, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, intel.EventScratchpad, ev.Name)

	_, err = r.Dispatch(ctx, "write_intel_scratchpad",
		json.RawMessage(`{"category":"bogus","title":"t","content":"c"}`))
	var verr *intel.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category", verr.Field)

	_, err = r.Dispatch(ctx, "write_intel_scratchpad", json.RawMessage(`{"category":"note","title":"t"}`))
	assert.EqualError(t, err, "Missing or invalid 'content' argument")

	got, err = r.Dispatch(ctx, "get_intel_scratchpad", nil)
	require.NoError(t, err)
	assert.Contains(t, string(got), "use postgres")

	got, err = r.Dispatch(ctx, "clear_intel_scratchpad", nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(got))
	assert.Empty(t, hub.ReadScratchpad())

	got, err = r.Dispatch(ctx, "get_intel_conflicts", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(got))
}

type fixedStatus webaccess.Status

func (s fixedStatus) Status() webaccess.Status { return webaccess.Status(s) }

func TestIntelMessagesForSession(t *testing.T) {
	hub := intel.New()
	r := New()
	RegisterIntel(r, hub, nil, logging.Discard())
	ctx := context.Background()

	for _, id := range []uint32{1, 2} {
		_, err := hub.AddBroadcast(intel.BroadcastRequest{SessionID: id, Category: "info", Message: fmt.Sprintf("from %d", id)})
		require.NoError(t, err)
	}

	got, err := r.Dispatch(ctx, "get_intel_messages", json.RawMessage(`{"sessionId":1}`))
	require.NoError(t, err)
	var msgs []intel.BroadcastMessage
	require.NoError(t, json.Unmarshal(got, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "from 2", msgs[0].Message)

	got, err = r.Dispatch(ctx, "get_intel_messages", json.RawMessage(`{"sessionId":7}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(got, &msgs))
	assert.Len(t, msgs, 2)

	_, err = r.Dispatch(ctx, "get_intel_messages", json.RawMessage(`{"sessionId":"1"}`))
	assert.EqualError(t, err, "Missing or invalid 'sessionId' argument")
}

func TestStatusCommand(t *testing.T) {
	r := New()
	RegisterStatus(r, fixedStatus{Running: true, Port: 8801, ConnectedClients: 2})

	got, err := r.Dispatch(context.Background(), "get_web_access_status", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"running":true,"port":8801,"connectedClients":2,"hasValidToken":false}`, string(got))
}

func TestStoreCommands(t *testing.T) {
	r := New()
	RegisterStore(r, store.NewMemory())
	ctx := context.Background()

	got, err := r.Dispatch(ctx, "store_get", json.RawMessage(`{"fileName":"settings.json","key":"theme"}`))
	require.NoError(t, err)
	assert.Equal(t, "null", string(got))

	got, err = r.Dispatch(ctx, "store_set",
		json.RawMessage(`{"fileName":"settings.json","key":"theme","value":{"mode":"dark"}}`))
	require.NoError(t, err)
	assert.Equal(t, "null", string(got))

	got, err = r.Dispatch(ctx, "store_get", json.RawMessage(`{"fileName":"settings.json","key":"theme"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"dark"}`, string(got))

	_, err = r.Dispatch(ctx, "store_set", json.RawMessage(`{"fileName":"settings.json","key":"theme"}`))
	assert.EqualError(t, err, "Missing 'value' argument")

	_, err = r.Dispatch(ctx, "store_get", json.RawMessage(`{"fileName":"../etc/passwd","key":"k"}`))
	assert.ErrorIs(t, err, store.ErrInvalidFile)

	_, err = r.Dispatch(ctx, "store_get", json.RawMessage(`{"key":"k"}`))
	assert.EqualError(t, err, "Missing or invalid 'fileName' argument")
}
