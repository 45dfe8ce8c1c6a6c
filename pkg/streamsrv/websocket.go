package streamsrv

import (
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vtengine/core/pkg/backend"
	"github.com/vtengine/core/pkg/diffrender"
	"github.com/vtengine/core/pkg/engine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; callers front this with their own auth.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Frame kinds tag every message on the wire, client->server and
// server->client alike, so a single binary channel can carry drawlists,
// raw input, resizes, rendered output and packed event batches without
// a second connection.
const (
	frameDrawlist byte = 0x01 // client -> server: one drawlist to submit+present
	frameInput    byte = 0x02 // client -> server: raw host input bytes to parse
	frameResize   byte = 0x03 // client -> server: 4-byte cols, 4-byte rows, little-endian

	frameOutput byte = 0x81 // server -> client: rendered diff bytes for one present
	frameEvents byte = 0x82 // server -> client: one packed event batch
	frameError  byte = 0x83 // server -> client: JSON {"message": "..."}
	frameHello  byte = 0x84 // server -> client: JSON {"session": "<id for /events>"}
)

// connSession owns one WebSocket connection's dedicated Engine. Unlike
// the teacher's session.Manager, which multiplexes many PTYs behind one
// handler, each connection here gets its own engine and backend: the
// wire protocol is small enough that per-connection state is simpler
// than a shared registry.
type connSession struct {
	eng *engine.Engine
	be  *backend.MemBackend

	mu sync.Mutex // serializes everything but Wake, matching spec §9
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[streamsrv] websocket upgrade failed: %v", err)
		return
	}

	cols, rows := 80, 24
	be := backend.NewMemBackend(cols, rows, diffrender.Caps{ColorMode: diffrender.ColorRGB})
	eng, err := engine.Create(s.newEngineConfig(), be)
	if err != nil {
		log.Printf("[streamsrv] engine create failed: %v", err)
		conn.Close()
		return
	}
	cs := &connSession{eng: eng, be: be}

	sessionID, unregister := s.registerMetricsSource(cs.eng)
	hello, _ := json.Marshal(map[string]string{"session": sessionID})

	send := make(chan []byte, 64)
	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	ticker := time.NewTicker(pingPeriod)
	go s.writer(conn, send, ticker, done)
	go s.pollLoop(cs, send, done)
	safeSend(send, append([]byte{frameHello}, hello...), done)

	defer func() {
		closeDone()
		// pollLoop may be blocked inside MemBackend's condition wait
		// until its poll timeout; Wake ends that wait at once so it can
		// observe the closed done channel and return.
		be.Wake()
		ticker.Stop()
		unregister()
		eng.Destroy()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage || len(msg) == 0 {
			continue
		}
		if err := cs.handleFrame(msg[0], msg[1:], send, done); err != nil {
			safeSend(send, errorFrame(err), done)
		}
	}
}

func (cs *connSession) handleFrame(kind byte, payload []byte, send chan []byte, done chan struct{}) error {
	switch kind {
	case frameDrawlist:
		cs.mu.Lock()
		err := cs.eng.SubmitDrawlist(payload)
		if err == nil {
			err = cs.eng.Present()
		}
		out := cs.be.DrainOutput()
		cs.mu.Unlock()
		if err != nil {
			return err
		}
		if len(out) > 0 {
			safeSend(send, append([]byte{frameOutput}, out...), done)
		}
		return nil

	case frameInput:
		cs.be.Feed(payload)
		return nil

	case frameResize:
		if len(payload) < 8 {
			return errShortResize
		}
		cols := int(binary.LittleEndian.Uint32(payload[0:4]))
		rows := int(binary.LittleEndian.Uint32(payload[4:8]))
		cs.mu.Lock()
		cs.be.Cols, cs.be.Rows = cols, rows
		err := cs.eng.Resize(cols, rows)
		cs.mu.Unlock()
		return err

	default:
		return nil
	}
}

// pollLoop drains parsed input events into packed batches and relays
// them to the client as they arrive, independent of the drawlist/
// present request-response flow above.
func (s *Server) pollLoop(cs *connSession, send chan []byte, done chan struct{}) {
	buf := make([]byte, 16<<10)
	for {
		select {
		case <-done:
			return
		default:
		}
		cs.mu.Lock()
		n, err := cs.eng.PollEvents(50, buf)
		cs.mu.Unlock()
		if err != nil {
			return
		}
		if n > 0 {
			batch := make([]byte, n)
			copy(batch, buf[:n])
			if !safeSend(send, append([]byte{frameEvents}, batch...), done) {
				return
			}
		}
	}
}

func (s *Server) writer(conn *websocket.Conn, send chan []byte, ticker *time.Ticker, done chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// safeSend recovers from a send on a closed channel, which can happen
// when the writer goroutine exits just as a handler tries one more
// send (mirrors the teacher's panic-recovering send guard).
func safeSend(send chan []byte, data []byte, done chan struct{}) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case send <- data:
		return true
	case <-done:
		return false
	}
}

func errorFrame(err error) []byte {
	msg, _ := json.Marshal(map[string]string{"message": err.Error()})
	return append([]byte{frameError}, msg...)
}

var errShortResize = shortResizeError{}

type shortResizeError struct{}

func (shortResizeError) Error() string { return "resize frame shorter than 8 bytes" }
