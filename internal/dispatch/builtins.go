package dispatch

import (
	"context"
	"log/slog"

	"github.com/VentureIA/chorus/internal/eventbus"
	"github.com/VentureIA/chorus/internal/intel"
	"github.com/VentureIA/chorus/internal/store"
	"github.com/VentureIA/chorus/internal/webaccess"
)

// uiSessionID marks scratchpad entries written from the UI rather than a
// worker session.
const uiSessionID = 0

// RegisterIntel adds the hub read commands and the UI's scratchpad writes.
// bus may be nil.
func RegisterIntel(r *Registry, hub *intel.Hub, bus *eventbus.Bus, log *slog.Logger) {
	r.Register("get_intel_broadcasts", func(context.Context, Args) (any, error) {
		return hub.AllMessages(), nil
	})
	// A session's inbox: everything except its own broadcasts.
	r.Register("get_intel_messages", func(_ context.Context, a Args) (any, error) {
		id, err := a.Uint32("sessionId")
		if err != nil {
			return nil, err
		}
		return hub.MessagesFor(id), nil
	})
	r.Register("get_intel_conflicts", func(context.Context, Args) (any, error) {
		return hub.AllConflicts(), nil
	})
	r.Register("get_intel_scratchpad", func(context.Context, Args) (any, error) {
		return hub.ReadScratchpad(), nil
	})
	r.Register("write_intel_scratchpad", func(_ context.Context, a Args) (any, error) {
		category, err := a.String("category")
		if err != nil {
			return nil, err
		}
		title, err := a.String("title")
		if err != nil {
			return nil, err
		}
		content, err := a.String("content")
		if err != nil {
			return nil, err
		}
		entry, err := hub.WriteScratchpad(intel.ScratchpadWriteRequest{
			SessionID: uiSessionID,
			Category:  category,
			Title:     title,
			Content:   content,
		})
		if err != nil {
			return nil, err
		}
		publish(bus, log, intel.EventScratchpad, entry)
		return entry, nil
	})
	r.Register("clear_intel_scratchpad", func(context.Context, Args) (any, error) {
		hub.ClearScratchpad()
		return nil, nil
	})
}

// StatusProvider is satisfied by *webaccess.Server.
type StatusProvider interface {
	Status() webaccess.Status
}

func RegisterStatus(r *Registry, p StatusProvider) {
	r.Register("get_web_access_status", func(context.Context, Args) (any, error) {
		return p.Status(), nil
	})
}

// RegisterStore proxies the UI's key-value files.
func RegisterStore(r *Registry, kv store.KV) {
	r.Register("store_get", func(ctx context.Context, a Args) (any, error) {
		file, err := a.String("fileName")
		if err != nil {
			return nil, err
		}
		key, err := a.String("key")
		if err != nil {
			return nil, err
		}
		v, err := kv.Get(ctx, file, key)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	r.Register("store_set", func(ctx context.Context, a Args) (any, error) {
		file, err := a.String("fileName")
		if err != nil {
			return nil, err
		}
		key, err := a.String("key")
		if err != nil {
			return nil, err
		}
		value, err := a.Raw("value")
		if err != nil {
			return nil, err
		}
		return nil, kv.Set(ctx, file, key, value)
	})
}

// publish sends v on bus if there is one. Failures only cost an event.
func publish(bus *eventbus.Bus, log *slog.Logger, name string, v any) {
	if bus == nil {
		return
	}
	if err := bus.PublishJSON(name, v); err != nil {
		log.Warn("publish event", "event", name, "err", err)
	}
}
