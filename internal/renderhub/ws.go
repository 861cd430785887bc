package renderhub

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // OK for demo; restrict in production
	},
}

// WSHandler upgrades a render client and keeps it subscribed until
// the socket drops. Incoming messages are ignored; the stream is
// one-way.
func WSHandler(hub *Hub, minChapter func() float64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		hub.AddWS(ws)
		log.Println("[ws] render client connected")

		if minChapter != nil {
			_ = ws.WriteJSON(gin.H{"type": "welcome", "min_chapter": minChapter()})
		}

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		log.Println("[ws] render client disconnected")
	}
}
