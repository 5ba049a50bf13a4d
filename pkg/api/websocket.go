package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rubiojr/topicsync/pkg/log"
	"github.com/rubiojr/topicsync/pkg/realtime"
)

const (
	sessionBuffer = 64
	writeWait     = 10 * time.Second
)

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSession is one websocket client. Every topic it subscribes to is a
// subscription on the server hub that forwards published invalidations as
// event frames.
type wsSession struct {
	id     string
	srv    *Server
	ws     *websocket.Conn
	logger *log.Logger

	out       chan realtime.Frame
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	topics map[string]func()
}

func (s *Server) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("problem initiating websocket: %v", err)
		return
	}

	id := uuid.NewString()
	sess := &wsSession{
		id:     id,
		srv:    s,
		ws:     ws,
		logger: logger.Named("ws"),
		out:    make(chan realtime.Frame, sessionBuffer),
		done:   make(chan struct{}),
		topics: make(map[string]func()),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	sess.logger.Debugf("session %s connected from %s", id, r.RemoteAddr)

	go sess.writeLoop()
	sess.readLoop()
}

func (sess *wsSession) readLoop() {
	defer sess.close()
	for {
		var f realtime.Frame
		if err := sess.ws.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Debugf("session %s read: %v", sess.id, err)
			}
			return
		}

		switch f.Type {
		case realtime.FrameSubscribe:
			sub, err := f.Subscription()
			if err != nil {
				sess.send(realtime.ErrorFrame("bad subscribe frame", err.Error()))
				continue
			}
			token := ""
			if sub.Token != nil {
				token = *sub.Token
			}
			if !sess.srv.tokenMatches(token) {
				sess.send(realtime.ErrorFrame("unauthorized", "subscription to "+sub.Topic+" refused"))
				continue
			}
			sess.subscribe(sub.Topic)
		case realtime.FrameUnsubscribe:
			topic, err := f.Topic()
			if err != nil {
				sess.send(realtime.ErrorFrame("bad unsubscribe frame", err.Error()))
				continue
			}
			sess.unsubscribe(topic)
		default:
			sess.send(realtime.ErrorFrame("unknown frame type", f.Type))
		}
	}
}

func (sess *wsSession) subscribe(topic string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := sess.topics[topic]; ok {
		return
	}
	sess.topics[topic] = sess.srv.hub.Subscribe(topic, func(topic string, data interface{}) {
		f, err := realtime.EventFrame(topic, data)
		if err != nil {
			sess.logger.Errorf("encoding %s event: %v", topic, err)
			return
		}
		sess.send(f)
	})
	sess.logger.Debugf("session %s subscribed to %s", sess.id, topic)
}

func (sess *wsSession) unsubscribe(topic string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if unsub, ok := sess.topics[topic]; ok {
		unsub()
		delete(sess.topics, topic)
		sess.logger.Debugf("session %s unsubscribed from %s", sess.id, topic)
	}
}

// send never blocks: hub handlers call it, and a stuck client must not hold
// up publishing. Frames beyond the buffer are dropped.
func (sess *wsSession) send(f realtime.Frame) {
	select {
	case <-sess.done:
	case sess.out <- f:
	default:
		sess.logger.Warnf("session %s is not keeping up, dropping %s frame", sess.id, f.Type)
	}
}

func (sess *wsSession) writeLoop() {
	defer sess.close()
	heartbeat := sess.srv.clock.After(sess.srv.heartbeat)
	for {
		var f realtime.Frame
		select {
		case <-sess.done:
			return
		case f = <-sess.out:
		case <-heartbeat:
			f = realtime.HeartbeatFrame(sess.srv.clock.Now())
			heartbeat = sess.srv.clock.After(sess.srv.heartbeat)
		}
		_ = sess.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sess.ws.WriteJSON(f); err != nil {
			sess.logger.Debugf("session %s write: %v", sess.id, err)
			return
		}
	}
}

func (sess *wsSession) close() {
	sess.closeOnce.Do(func() {
		close(sess.done)

		sess.mu.Lock()
		for topic, unsub := range sess.topics {
			unsub()
			delete(sess.topics, topic)
		}
		sess.mu.Unlock()

		sess.srv.mu.Lock()
		delete(sess.srv.sessions, sess.id)
		sess.srv.mu.Unlock()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = sess.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = sess.ws.Close()
		sess.logger.Debugf("session %s closed", sess.id)
	})
}
