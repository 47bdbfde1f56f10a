// Package api is the loopback HTTP surface of the daemon: the hub ingress
// that session processes post to, and the local control channel for web
// access tokens.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/VentureIA/chorus/internal/eventbus"
	"github.com/VentureIA/chorus/internal/exporter"
	"github.com/VentureIA/chorus/internal/intel"
	"github.com/VentureIA/chorus/internal/webaccess"
)

// maxBodyBytes leaves room for a full scratchpad entry plus JSON escaping.
const maxBodyBytes = 1 << 20

// AccessControl is satisfied by *webaccess.Server.
type AccessControl interface {
	GenerateToken() webaccess.TokenResult
	Revoke()
	Status() webaccess.Status
}

type API struct {
	hub    *intel.Hub
	bus    *eventbus.Bus
	access AccessControl
	log    *slog.Logger
	now    func() time.Time
}

// New wires the handlers. access is nil when web access is disabled.
func New(hub *intel.Hub, bus *eventbus.Bus, access AccessControl, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{hub: hub, bus: bus, access: access, log: log, now: time.Now}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// POST /broadcast {"session_id":1,"category":"warning","message":"..."}
	r.Post("/broadcast", func(w http.ResponseWriter, r *http.Request) {
		var req intel.BroadcastRequest
		if !decode(w, r, &req) {
			return
		}
		msg, err := a.hub.AddBroadcast(req)
		if err != nil {
			a.fail(w, err)
			return
		}
		a.publish(intel.EventBroadcast, msg)
		writeJSON(w, http.StatusOK, msg)
	})

	r.Get("/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.hub.AllMessages())
	})

	r.Get("/messages/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "sessionID"), 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, &intel.ValidationError{Field: "session_id", Message: "must be an unsigned 32-bit integer"})
			return
		}
		writeJSON(w, http.StatusOK, a.hub.MessagesFor(uint32(id)))
	})

	r.Route("/scratchpad", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, a.hub.ReadScratchpad())
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req intel.ScratchpadWriteRequest
			if !decode(w, r, &req) {
				return
			}
			entry, err := a.hub.WriteScratchpad(req)
			if err != nil {
				a.fail(w, err)
				return
			}
			a.publish(intel.EventScratchpad, entry)
			writeJSON(w, http.StatusOK, entry)
		})
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			a.hub.ClearScratchpad()
			w.WriteHeader(http.StatusNoContent)
		})
	})

	// POST /file-activity answers with the conflicts the report caused.
	r.Post("/file-activity", func(w http.ResponseWriter, r *http.Request) {
		var req intel.FileActivityRequest
		if !decode(w, r, &req) {
			return
		}
		conflicts, err := a.hub.ReportFile(req)
		if err != nil {
			a.fail(w, err)
			return
		}
		for _, c := range conflicts {
			a.publish(intel.EventFileConflict, c)
		}
		writeJSON(w, http.StatusOK, conflicts)
	})

	r.Get("/conflicts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.hub.AllConflicts())
	})

	// SSE stream of bus events for local tooling.
	r.Get("/events", a.streamEvents)

	// GET /export?format=json|csv|yaml
	r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "json"
		}
		snap := exporter.Take(a.hub, a.now().UTC().Format(time.RFC3339))
		b, ct, err := exporter.Export(snap, format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	})

	r.Route("/web-access", func(r chi.Router) {
		r.Use(a.requireAccess)
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, a.access.Status())
		})
		r.Post("/token", func(w http.ResponseWriter, r *http.Request) {
			res := a.access.GenerateToken()
			a.log.Info("web access token issued", "url", res.URL, "expires_in_secs", res.ExpiresInSecs)
			writeJSON(w, http.StatusOK, res)
		})
		r.Delete("/token", func(w http.ResponseWriter, r *http.Request) {
			a.access.Revoke()
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func (a *API) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.access == nil {
			http.Error(w, "web access disabled", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rx := a.bus.Subscribe()
	defer rx.Close()

	// send a comment to open stream
	_, _ = w.Write([]byte(": ok\n\n"))
	flusher.Flush()

	for {
		ev, err := rx.Recv(r.Context())
		var lagged *eventbus.LaggedError
		switch {
		case errors.As(err, &lagged):
			a.log.Warn("event stream lagged", "dropped", lagged.Dropped)
			continue
		case err != nil:
			return
		}
		b, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("event: " + ev.Name + "\ndata: "))
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func (a *API) publish(name string, v any) {
	if err := a.bus.PublishJSON(name, v); err != nil {
		a.log.Warn("publish event", "event", name, "err", err)
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	var verr *intel.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, verr)
		return
	}
	a.log.Error("request failed", "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, &intel.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
