package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/uber-go/tally/v4"

	"github.com/matthewbaird/recordview/internal/controller"
	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/eventbus"
	"github.com/matthewbaird/recordview/internal/orchestrator"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/value"
)

// RowLoader fetches the record a screen is opened on.
type RowLoader interface {
	Get(ctx context.Context, ref record.Ref) (*record.Row, error)
}

// Config carries the collaborators of a Handler.
type Config struct {
	Factory  *controller.Factory
	Bus      *eventbus.Bus
	Rows     RowLoader
	Saver    orchestrator.Saver
	Recorder event.Recorder
	Scope    tally.Scope
}

// Handler manages WebSocket connections. Every screen call is made on the
// bus thread through Bus.Do.
type Handler struct {
	sessions *Manager
	cfg      Config
}

// NewHandler creates a WebSocket handler.
func NewHandler(sessions *Manager, cfg Config) *Handler {
	return &Handler{sessions: sessions, cfg: cfg}
}

// RegisterRoutes mounts the WebSocket endpoint under /v1/screens.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/screens/ws", h.ServeHTTP)
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("wire: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := h.sessions.Create()
	defer h.release(sess)
	go h.writeLoop(ctx, conn, sess)

	sess.push(ServerMessage{Type: "session", Data: SessionData{SessionID: sess.ID}})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("wire: connection closed: %v", websocket.CloseStatus(err))
			}
			return
		}
		sess.Touch()
		h.dispatch(ctx, sess, msg)
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *Session) {
	for {
		select {
		case msg := <-sess.out:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				log.Printf("wire: write error: %v", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// release detaches the open screen so late completions are dropped.
func (h *Handler) release(sess *Session) {
	h.sessions.Remove(sess.ID)
	err := h.cfg.Bus.Do(context.Background(), func() {
		if sess.screen != nil {
			sess.screen.Close()
			sess.screen = nil
		}
	})
	if err != nil && !errors.Is(err, eventbus.ErrStopped) {
		log.Printf("wire: releasing session %s: %v", sess.ID, err)
	}
}

func (h *Handler) dispatch(ctx context.Context, sess *Session, msg ClientMessage) {
	switch msg.Type {
	case "open":
		h.handleOpen(ctx, sess, msg)
	case "set_value":
		h.handleSetValue(ctx, sess, msg)
	case "set_field":
		h.handleSetField(ctx, sess, msg)
	case "insert_child", "delete_child", "set_child_field":
		h.handleChild(ctx, sess, msg)
	case "validate":
		h.handleValidate(ctx, sess, msg)
	case "save":
		h.handleSave(ctx, sess, msg)
	case "ping":
		sess.push(ServerMessage{Type: "pong", RequestID: msg.ID})
	default:
		sess.pushError(msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// onScreen runs fn on the bus thread with the open screen.
func (h *Handler) onScreen(ctx context.Context, sess *Session, requestID string, fn func(scr *orchestrator.Screen)) {
	err := h.cfg.Bus.Do(ctx, func() {
		if sess.screen == nil {
			sess.pushError(requestID, "no_screen", "no screen is open")
			return
		}
		fn(sess.screen)
	})
	if err != nil {
		sess.pushError(requestID, "unavailable", err.Error())
	}
}

func decode(sess *Session, msg ClientMessage, into any) bool {
	if err := json.Unmarshal(msg.Data, into); err != nil {
		sess.pushError(msg.ID, "invalid_data", fmt.Sprintf("invalid %s data", msg.Type))
		return false
	}
	return true
}

func (h *Handler) handleOpen(ctx context.Context, sess *Session, msg ClientMessage) {
	var data OpenData
	if !decode(sess, msg, &data) {
		return
	}
	if data.Tab == "" {
		sess.pushError(msg.ID, "missing_tab", "open requires a tab")
		return
	}
	mode, err := controller.ParseMode(data.Mode)
	if err != nil {
		sess.pushError(msg.ID, "invalid_mode", err.Error())
		return
	}

	// Loading may block on the network, so it happens before the bus call.
	var row *record.Row
	if data.Record != nil {
		if h.cfg.Rows == nil {
			sess.pushError(msg.ID, "no_records", "record loading is not configured")
			return
		}
		row, err = h.cfg.Rows.Get(ctx, *data.Record)
		if err != nil {
			sess.pushError(msg.ID, "load_failed", err.Error())
			return
		}
	}

	err = h.cfg.Bus.Do(ctx, func() {
		if sess.screen != nil {
			sess.screen.Close()
		}
		scr := orchestrator.New(h.cfg.Factory, data.Tab, orchestrator.Options{
			Mode:     mode,
			Saver:    h.cfg.Saver,
			Recorder: h.cfg.Recorder,
			Scope:    h.cfg.Scope,
			Listener: sess,
		})
		sess.screen = scr
		if row != nil {
			scr.OpenRecord(ctx, row)
		} else {
			scr.OpenContext(ctx, value.FromStrings(data.Values))
		}
		sess.push(ServerMessage{Type: "ack", RequestID: msg.ID, Data: AckData{ScreenID: scr.ID()}})
	})
	if err != nil {
		sess.pushError(msg.ID, "unavailable", err.Error())
	}
}

func (h *Handler) handleSetValue(ctx context.Context, sess *Session, msg ClientMessage) {
	var data SetValueData
	if !decode(sess, msg, &data) {
		return
	}
	h.onScreen(ctx, sess, msg.ID, func(scr *orchestrator.Screen) {
		n := scr.SetValue(ctx, data.Key, data.Value)
		sess.push(ServerMessage{Type: "ack", RequestID: msg.ID, Data: AckData{ScreenID: scr.ID(), Reapplied: n}})
	})
}

func (h *Handler) handleSetField(ctx context.Context, sess *Session, msg ClientMessage) {
	var data SetFieldData
	if !decode(sess, msg, &data) {
		return
	}
	h.onScreen(ctx, sess, msg.ID, func(scr *orchestrator.Screen) {
		changed, err := scr.SetFieldValue(data.Field, data.Value)
		if err != nil {
			sess.pushError(msg.ID, "edit_failed", err.Error())
			return
		}
		sess.push(ServerMessage{Type: "ack", RequestID: msg.ID, Data: AckData{ScreenID: scr.ID(), Changed: changed}})
		if changed {
			sess.pushGroup(scr, msg.ID)
		}
	})
}

func (h *Handler) handleChild(ctx context.Context, sess *Session, msg ClientMessage) {
	var data ChildData
	if !decode(sess, msg, &data) {
		return
	}
	h.onScreen(ctx, sess, msg.ID, func(scr *orchestrator.Screen) {
		ack := AckData{ScreenID: scr.ID(), ChildID: data.ChildID}
		var err error
		switch msg.Type {
		case "insert_child":
			var child *edit.ChildContext
			child, err = scr.InsertChild(ctx, data.Tab, value.FromStrings(data.Values))
			if child != nil {
				ack.ChildID, ack.Changed = child.ID, true
			}
		case "delete_child":
			err = scr.DeleteChild(data.Tab, data.ChildID)
			ack.Changed = err == nil
		default:
			ack.Changed, err = scr.SetChildFieldValue(data.Tab, data.ChildID, data.Field, data.Value)
		}
		if err != nil {
			sess.pushError(msg.ID, "edit_failed", err.Error())
			return
		}
		sess.push(ServerMessage{Type: "ack", RequestID: msg.ID, Data: ack})
		if ack.Changed {
			sess.pushGroup(scr, msg.ID)
		}
	})
}

func (h *Handler) handleValidate(ctx context.Context, sess *Session, msg ClientMessage) {
	h.onScreen(ctx, sess, msg.ID, func(scr *orchestrator.Screen) {
		vs := scr.Violations()
		if vs == nil {
			vs = []edit.Violation{}
		}
		sess.push(ServerMessage{Type: "violations", RequestID: msg.ID, Data: ViolationsData{Violations: vs}})
	})
}

// handleSave persists on the bus thread, so a slow remote stalls other
// screens for the duration of the call.
func (h *Handler) handleSave(ctx context.Context, sess *Session, msg ClientMessage) {
	h.onScreen(ctx, sess, msg.ID, func(scr *orchestrator.Screen) {
		out, err := scr.Save(ctx)
		var ve *edit.ValidationError
		switch {
		case errors.As(err, &ve):
			sess.push(ServerMessage{Type: "violations", RequestID: msg.ID, Data: ViolationsData{Violations: ve.Violations}})
		case errors.Is(err, controller.ErrNotEditing):
			sess.pushError(msg.ID, "not_editing", err.Error())
		case err != nil:
			sess.pushError(msg.ID, "save_failed", err.Error())
		default:
			sess.push(ServerMessage{Type: "saved", RequestID: msg.ID, Data: SavedData{
				Refs:      out.Refs,
				Offline:   out.Offline,
				RequestID: out.RequestID,
			}})
		}
	})
}
