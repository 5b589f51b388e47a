// ABOUTME: WebSocket remote-control bridge for the playback transport
// ABOUTME: Accepts transport commands over /playback and pushes state and session stats to clients
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cutplane/playback-go/internal/monitor"
	"github.com/cutplane/playback-go/internal/transport"
)

// Message is the JSON envelope for all control traffic
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Snapshot is one outbound state push
type Snapshot struct {
	State       transport.State      `json:"state"`
	Stats       monitor.SessionStats `json:"stats"`
	LiveSources int                  `json:"liveSources"`
}

// SnapshotFunc supplies the current playback snapshot
type SnapshotFunc func() Snapshot

type seekPayload struct {
	TimeSec float64 `json:"timeSec"`
}

type volumePayload struct {
	Volume float64 `json:"volume"`
}

type mutePayload struct {
	Muted bool `json:"muted"`
}

type ratePayload struct {
	Rate float64 `json:"rate"`
}

// Config holds bridge configuration
type Config struct {
	Port int
	// Interval between outbound state pushes
	StateInterval time.Duration
}

// Server bridges WebSocket clients to the playback transport
type Server struct {
	config    Config
	serverID  string
	transport *transport.Transport
	snapshot  SnapshotFunc

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*client
	clientsMu sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type client struct {
	id       string
	conn     *websocket.Conn
	sendChan chan Message
}

// New creates a bridge over the given transport
func New(config Config, tr *transport.Transport, snapshot SnapshotFunc) *Server {
	if config.StateInterval <= 0 {
		config.StateInterval = 250 * time.Millisecond
	}

	return &Server{
		config:    config,
		serverID:  uuid.New().String(),
		transport: tr,
		snapshot:  snapshot,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local control surface, no origin allowlist
				return true
			},
		},
		mux:      http.NewServeMux(),
		clients:  make(map[string]*client),
		stopChan: make(chan struct{}),
	}
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	s.mux.HandleFunc("/playback", s.HandleWebSocket)

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	log.Printf("Remote control listening on %s", addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Remote control shutting down...")
	case err := <-errChan:
		serverErr = err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Remote control shutdown error: %v", err)
	}

	s.wg.Wait()

	if serverErr != nil {
		return fmt.Errorf("remote control server failed: %w", serverErr)
	}
	return nil
}

// Stop shuts the bridge down
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// HandleWebSocket upgrades and services one control connection
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &client{
		id:       uuid.New().String(),
		conn:     conn,
		sendChan: make(chan Message, 32),
	}

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	log.Printf("Control client connected from %s", r.RemoteAddr)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		close(c.sendChan)
		log.Printf("Control client disconnected")
	}()

	if err := s.send(c, "playback/hello", map[string]string{"serverId": s.serverID}); err != nil {
		log.Printf("Error sending hello: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		s.handleCommand(c, data)
	}
}

// clientWriter drains the send queue and pushes periodic state snapshots
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(s.config.StateInterval)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing control message: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(Message{Type: "playback/state", Payload: s.snapshot()}); err != nil {
				return
			}

		case <-s.stopChan:
			return
		}
	}
}

// handleCommand dispatches one inbound control message to the transport
func (s *Server) handleCommand(c *client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling control message: %v", err)
		return
	}

	switch msg.Type {
	case "playback/play":
		s.transport.Play()
	case "playback/pause":
		s.transport.Pause()
	case "playback/toggle":
		s.transport.TogglePlay()
	case "playback/seek":
		var p seekPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			log.Printf("Bad seek payload: %v", err)
			return
		}
		s.transport.Seek(p.TimeSec)
	case "playback/volume":
		var p volumePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			log.Printf("Bad volume payload: %v", err)
			return
		}
		s.transport.SetVolume(p.Volume)
	case "playback/mute":
		var p mutePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			log.Printf("Bad mute payload: %v", err)
			return
		}
		s.transport.SetMuted(p.Muted)
	case "playback/rate":
		var p ratePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			log.Printf("Bad rate payload: %v", err)
			return
		}
		s.transport.SetRate(p.Rate)
	case "playback/query":
		if err := s.send(c, "playback/state", s.snapshot()); err != nil {
			log.Printf("Error sending state: %v", err)
		}
	default:
		log.Printf("Unknown control message type: %s", msg.Type)
	}
}

// decodePayload round-trips an envelope payload into a typed struct
func decodePayload(payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// send queues a JSON message; drops when the client's buffer is full
func (s *Server) send(c *client, msgType string, payload interface{}) error {
	select {
	case c.sendChan <- Message{Type: msgType, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}
