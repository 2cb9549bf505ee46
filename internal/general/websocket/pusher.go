package websocket

import (
	"context"

	"github.com/gorilla/websocket"
)

// startPusher decouples store subscription callbacks from socket writes: the
// callback enqueues, a dedicated goroutine writes. A consumer that cannot
// drain pushQueueDepth frames is disconnected instead of blocking the store's
// change dispatch.
func (gw *Gateway) startPusher(conn *websocket.Conn, subject string) (push func(v any), stop func()) {
	frames := make(chan any, pushQueueDepth)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case frame := <-frames:
				if err := gw.writeJSON(conn, frame); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	push = func(v any) {
		select {
		case frames <- v:
		case <-done:
		default:
			gw.logger.Error(context.Background(), "ws_push_overflow", "Client too slow, dropping connection", nil, map[string]any{
				"subject": subject,
			})
			_ = conn.Close()
		}
	}
	stop = func() { close(done) }
	return push, stop
}
