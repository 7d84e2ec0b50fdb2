package server

import (
	"sync"
	"time"

	"github.com/TheEntropyCollective/huffpool/pkg/core/compressor"
	"github.com/gorilla/websocket"
)

// Event is one message pushed to websocket clients.
type Event struct {
	Type string      `json:"type"` // stats, stage, job
	Data interface{} `json:"data"`
}

// StageEvent reports a finished stage of a running job.
type StageEvent struct {
	JobID      string  `json:"job_id"`
	Stage      string  `json:"stage"`
	DurationMS float64 `json:"duration_ms"`
}

// hub fans events out to connected websocket clients. Slow clients miss
// events rather than block the compression path.
type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan Event
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan Event)}
}

func (h *hub) add(conn *websocket.Conn) chan Event {
	ch := make(chan Event, 100)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

// remove unregisters conn and closes its channel. Closing under the write
// lock keeps broadcast from sending on a closed channel.
func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
}

func (h *hub) broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// stageTimer returns a timer that broadcasts each stage of jobID.
func (h *hub) stageTimer(jobID string) compressor.StageTimer {
	return compressor.TimerFunc(func(stage compressor.Stage, elapsed time.Duration) {
		h.broadcast(Event{
			Type: "stage",
			Data: StageEvent{
				JobID:      jobID,
				Stage:      string(stage),
				DurationMS: float64(elapsed) / float64(time.Millisecond),
			},
		})
	})
}
