package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/metaoverlayfs/panel/internal/daemon/store"
	"github.com/metaoverlayfs/panel/pkg/daemon"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// toMessage converts a store update to its wire form.
func toMessage(u store.Update) daemon.StreamMessage {
	if u.Event != nil {
		return daemon.MessageFromEvent(*u.Event)
	}
	msg := daemon.StreamMessage{Source: u.Source, Detail: u.Detail}
	switch u.Type {
	case store.UpdateTick:
		msg.Type = daemon.MessageTick
	case store.UpdateFileChanged:
		msg.Type = daemon.MessageFileChanged
	default:
		msg.Type = string(u.Type)
	}
	return msg
}

func (s *Server) initialMessage() daemon.StreamMessage {
	prefs := s.panel.Prefs()
	return daemon.StreamMessage{
		Type:     daemon.MessageInitial,
		Snapshot: s.store.Get(),
		Prefs:    &prefs,
		Surface:  s.panel.Surface(),
	}
}

// handleStream serves state updates as Server-Sent Events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	sub := s.store.Subscribe()
	defer s.store.Unsubscribe(sub)

	writeEvent := func(msg daemon.StreamMessage) bool {
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.WithError(err).Error("Failed to encode stream message")
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeEvent(s.initialMessage()) {
		return
	}

	keepalive := time.NewTicker(pingInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-keepalive.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case u, ok := <-sub:
			if !ok {
				return
			}
			if !writeEvent(toMessage(u)) {
				return
			}
		}
	}
}

// handleWebsocket serves the same stream over a websocket. Clients may
// send {"surface": "..."} to switch the active surface.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.store.Subscribe()
	defer s.store.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var body daemon.SurfaceBody
			if err := conn.ReadJSON(&body); err != nil {
				return
			}
			if body.Surface == "" {
				continue
			}
			if err := s.panel.SetSurface(body.Surface); err != nil {
				s.logger.WithError(err).Debug("Rejected surface from websocket client")
			}
		}
	}()

	write := func(msg daemon.StreamMessage) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	if err := write(s.initialMessage()); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-s.closing:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"),
				time.Now().Add(writeWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case u, ok := <-sub:
			if !ok {
				return
			}
			if err := write(toMessage(u)); err != nil {
				return
			}
		}
	}
}
