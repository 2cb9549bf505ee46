// Package websocket is the live feed gateway: every connected rider and
// driver holds filtered store subscriptions, and matching state changes are
// pushed as JSON frames. Clients never poll.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	authWindow     = 5 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	ctrlTimeout    = 5 * time.Second
	maxFrameSize   = 1 << 20 // 1 MiB
	pushQueueDepth = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Gateway authenticates WebSocket clients against the first auth frame and
// bridges store subscriptions to outbound pushes. Inbound driver frames feed
// the lifecycle and dispatch services.
type Gateway struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	store      ports.Store
	lifecycle  ports.LifecycleService
	dispatch   ports.DispatchService
	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex
}

func NewGateway(log *logger.Logger, jwtMgr *jwt.Manager, store ports.Store, lifecycle ports.LifecycleService, dispatch ports.DispatchService) *Gateway {
	return &Gateway{
		logger:    log,
		jwtMgr:    jwtMgr,
		store:     store,
		lifecycle: lifecycle,
		dispatch:  dispatch,
	}
}

// ----- connection plumbing -----

// authenticate upgrades the request and runs first-frame JWT auth for the
// given role. The path id, when present, must match the token subject. On
// failure the connection is already answered and closed; callers just return.
func (gw *Gateway) authenticate(w http.ResponseWriter, r *http.Request, role user.Role, pathParam string) (*websocket.Conn, string, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.logger.Error(r.Context(), "ws_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return nil, "", false
	}

	conn.SetReadLimit(maxFrameSize)
	if err := conn.SetReadDeadline(time.Now().Add(authWindow)); err != nil {
		gw.sendAuthError(conn, "internal server error")
		conn.Close()
		return nil, "", false
	}

	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		gw.logger.Error(r.Context(), "ws_auth_read_failed", "Failed to read auth frame", err, nil)
		gw.sendAuthError(conn, "authentication timeout: send auth frame within 5 seconds")
		conn.Close()
		return nil, "", false
	}
	if msgType != websocket.TextMessage {
		gw.sendAuthError(conn, "auth frame must be text")
		conn.Close()
		return nil, "", false
	}

	res, err := jwt.ValidateWSAuth(firstFrame, gw.jwtMgr, role)
	if err != nil {
		gw.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth frame or token", err, nil)
		gw.sendAuthError(conn, "authentication failed: invalid token")
		conn.Close()
		return nil, "", false
	}
	subject := res.Claims.Subject

	if pathID := r.PathValue(pathParam); pathID != "" && pathID != subject {
		gw.logger.Error(r.Context(), "ws_auth_failed", "Path id does not match token subject", nil, map[string]any{
			"path_id":       pathID,
			"token_subject": subject,
		})
		gw.sendAuthError(conn, "id mismatch")
		conn.Close()
		return nil, "", false
	}

	if err := gw.sendAuthSuccess(conn, subject); err != nil {
		conn.Close()
		return nil, "", false
	}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	return conn, subject, true
}

// keepAlive pings until a write fails, then closes the socket so the read
// loop unblocks. Runs as its own goroutine; stop() ends it.
func (gw *Gateway) keepAlive(conn *websocket.Conn) (stop func()) {
	ticker := time.NewTicker(pingInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				mu := gw.lockOf(conn)
				mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
				mu.Unlock()
				if err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

func (gw *Gateway) lockOf(conn *websocket.Conn) *sync.Mutex {
	mu, _ := gw.writeLocks.LoadOrStore(conn, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (gw *Gateway) writeJSON(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	mu := gw.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (gw *Gateway) writeRaw(conn *websocket.Conn, payload string) {
	mu := gw.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func (gw *Gateway) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	mu := gw.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ctrlTimeout))
}

func (gw *Gateway) sendAuthError(conn *websocket.Conn, message string) {
	_ = gw.writeJSON(conn, map[string]any{
		"type":    "auth_error",
		"error":   message,
		"success": false,
	})
}

func (gw *Gateway) sendAuthSuccess(conn *websocket.Conn, subject string) error {
	return gw.writeJSON(conn, map[string]any{
		"type":      "auth_success",
		"success":   true,
		"user_id":   subject,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// inboundFrame is the minimal envelope every client frame carries.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readLoop pumps inbound frames into handle until the connection dies.
func (gw *Gateway) readLoop(conn *websocket.Conn, handle func(frame inboundFrame)) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				gw.closeWith(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				gw.closeWith(conn, websocket.CloseNormalClosure, "bye")
			}
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			gw.writeRaw(conn, `{"type":"error","error":"bad json"}`)
			continue
		}
		handle(frame)
	}
}
