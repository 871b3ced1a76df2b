package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/praxislabs/praxis/internal/bus"
)

const (
	// eventBacklog is how much history a new connection gets before live
	// events start.
	eventBacklog = 50
	// feedBuffer absorbs bursts per connection; a client that cannot keep
	// up skips live events rather than stalling the bus.
	feedBuffer = 64
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
)

// handleEvents streams bus events over a websocket: recent history
// first, then live traffic. One goroutine owns all writes per
// connection, as gorilla requires.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	feed := make(chan bus.Event, feedBuffer)
	sub := s.bus.Subscribe(bus.AllEvents, func(e bus.Event) {
		select {
		case feed <- e:
		default:
		}
	})
	defer func() {
		_ = s.bus.Unsubscribe(sub)
		_ = conn.Close()
	}()

	// Reader drains control frames and surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, e := range s.bus.Recent(eventBacklog) {
		if writeEvent(conn, e) != nil {
			return
		}
	}
	for {
		select {
		case e := <-feed:
			if writeEvent(conn, e) != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, e bus.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}
