// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/thaasbai/thaasbai/internal/admission"
	"github.com/thaasbai/thaasbai/internal/coordinator"
	"github.com/thaasbai/thaasbai/internal/protocol"
	"github.com/thaasbai/thaasbai/internal/session"
)

// Custom WebSocket close codes for admission refusals and inactivity.
const (
	CloseTooManyConnections websocket.StatusCode = 4000
	CloseRateLimited        websocket.StatusCode = 4001
	CloseIdleTimeout        websocket.StatusCode = 4002
	CloseOutboxOverflow     websocket.StatusCode = 4003
)

// Transport-level timing.
const (
	readIdleTimeout = 45 * time.Second
	pingInterval    = 25 * time.Second
	writeTimeout    = 5 * time.Second
)

// WS upgrades the connection, runs it through admission, registers a
// session with the coordinator, and pumps frames until the transport dies.
func WS(logger *logrus.Logger, c *coordinator.Coordinator, lim *admission.Limiter) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ip := clientIP(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error from %s: %v", r.RemoteAddr, err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "handler finished")
		conn.SetReadLimit(protocol.MaxFrameBytes)

		if err := lim.Admit(ip); err != nil {
			c.Counters.ConnectionsRefused.Add(1)
			label, code := protocol.ErrTooManyConnections, CloseTooManyConnections
			if err == admission.ErrRateLimited {
				label, code = protocol.ErrRateLimited, CloseRateLimited
			}
			logger.WithFields(logrus.Fields{"ip": ip, "reason": label}).Warn("connection refused")
			writeFrameDirect(conn, protocol.ErrorFrame(label))
			conn.Close(code, label)
			return
		}
		defer lim.Release(ip)

		sess := session.New(ip)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		sess.SetOverflowHandler(func() {
			cancel()
			conn.Close(CloseOutboxOverflow, "send buffer overflow")
		})

		c.HandleConnect(sess)
		logger.WithFields(logrus.Fields{"remote": r.RemoteAddr, "sid": sess.SID}).
			Info("WebSocket connected")

		go writePump(ctx, conn, sess, logger)
		readErr := readPump(ctx, conn, sess, c, logger)

		fields := logrus.Fields{"remote": r.RemoteAddr, "sid": sess.SID}
		if b, ok := sess.Binding(); ok {
			fields["gameType"] = b.GameType
			fields["room"] = b.RoomCode
			fields["position"] = b.Position
		}
		if readErr != nil {
			fields["error"] = readErr
		}
		c.HandleDisconnect(sess)
		logger.WithFields(fields).Info("WebSocket disconnected")
	}
}

// readPump decodes inbound frames and hands them to the dispatcher. Each
// read carries an idle deadline; a quiet connection is closed with the
// timeout error label.
func readPump(ctx context.Context, conn *websocket.Conn, sess *session.Session, c *coordinator.Coordinator, logger *logrus.Logger) error {
	for {
		readCtx, cancel := context.WithTimeout(ctx, readIdleTimeout)
		typ, data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				return nil
			case ctx.Err() != nil:
				return nil
			case strings.Contains(err.Error(), "context deadline exceeded"):
				writeFrameDirect(conn, protocol.ErrorFrame(protocol.ErrTimeout))
				conn.Close(CloseIdleTimeout, protocol.ErrTimeout)
				return err
			default:
				return err
			}
		}

		if typ != websocket.MessageText {
			logger.Warnf("ignoring non-text message from sid %s", sess.SID)
			continue
		}

		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			sess.SendError(protocol.ErrInvalidPayload)
			continue
		}
		c.Dispatch(sess, frame)
	}
}

// writePump drains the session outbox onto the wire and keeps the
// connection alive with periodic pings.
func writePump(ctx context.Context, conn *websocket.Conn, sess *session.Session, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sess.Out():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				logger.Warnf("failed to marshal outbound frame for sid %s: %v", sess.SID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// writeFrameDirect writes a frame outside the pump, used before a session's
// outbox exists or during teardown. Best effort.
func writeFrameDirect(conn *websocket.Conn, frame protocol.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, data)
}

// clientIP resolves the remote IP, honoring X-Forwarded-For from a fronting
// proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
