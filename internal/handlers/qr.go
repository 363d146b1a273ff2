// internal/handlers/qr.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/thaasbai/thaasbai/internal/coordinator"
	"github.com/thaasbai/thaasbai/internal/game"
	"github.com/thaasbai/thaasbai/internal/protocol"
)

const qrSize = 256

// JoinQR renders a PNG QR code for a waiting room's join link so a room
// code can be shared across the table without typing it.
func JoinQR(c *coordinator.Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameType := ps.ByName("gameType")
		if gameType != protocol.GameDhihaEi && gameType != protocol.GameDigu {
			http.NotFound(w, r)
			return
		}
		code := protocol.NormalizeRoomCode(ps.ByName("code"))
		if !protocol.IsRoomCode(code) {
			http.NotFound(w, r)
			return
		}

		room, ok := c.Rooms.Get(gameType, code)
		if !ok {
			http.NotFound(w, r)
			return
		}
		room.Mu.Lock()
		joinable := room.Status == game.StatusWaiting
		room.Mu.Unlock()
		if !joinable {
			http.NotFound(w, r)
			return
		}

		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		url := fmt.Sprintf("%s://%s/join/%s/%s", scheme, r.Host, gameType, code)

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
