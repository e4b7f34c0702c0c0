package adapthttp

import (
	"context"
	"net/http"
	"time"

	"tictactoe/internal/logger"
	"tictactoe/internal/notify"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleGameStream(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	s.stream(w, r, notify.GameUpdatedTopic(id), func(ctx context.Context) (*notify.Event, error) {
		g, err := s.requests.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &notify.Event{
			Topic:   notify.GameUpdatedTopic(g.ID),
			Type:    notify.GameUpdated,
			Payload: g,
			At:      time.Now().UTC(),
		}, nil
	})
}

func (s *Server) handleRequestStream(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !requireSelf(w, r, id) {
		return
	}
	s.stream(w, r, notify.GameRequestTopic(id), nil)
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.stream(w, r, notify.UserStatusTopic, nil)
}

// stream upgrades the connection and relays topic events until either side
// goes away. snapshot, when set, is loaded after subscribing and sent before
// any live event, so an update racing the load arrives after it.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, topic string, snapshot func(context.Context) (*notify.Event, error)) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.bus.Subscribe(ctx, topic)
	defer sub.Close()

	var first *notify.Event
	if snapshot != nil {
		ev, err := snapshot(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		first = ev
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", logger.Fields{"topic": topic, "error": err})
		return
	}
	defer conn.Close()

	go func() {
		readPump(conn)
		cancel()
	}()
	writePump(ctx, conn, sub, first)
}

// readPump drains client frames so control messages are processed. Clients
// have nothing to say on these streams.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, sub *notify.Subscription, first *notify.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(ev notify.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev) == nil
	}
	if first != nil && !write(*first) {
		return
	}

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if !write(ev) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
