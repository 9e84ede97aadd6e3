package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"Melodex/logger"
	"Melodex/model"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressHub 把同步进度事件推送给所有已连接的前端
type ProgressHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{clients: make(map[*websocket.Conn]bool)}
}

// Broadcast 实现 library.ProgressFunc，可直接接到控制器上
func (h *ProgressHub) Broadcast(event model.SyncProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *ProgressHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *ProgressHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// SyncProgressWSHandler 升级连接并保持到客户端断开
func (h *APIHandler) SyncProgressWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	h.progress.add(conn)
	defer h.progress.remove(conn)

	// 只推不收：读循环仅用于感知断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
