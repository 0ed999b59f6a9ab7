// notifier: push gateway. Konsumsi topic notifikasi lalu dorong ke client
// websocket per channel (user-<id> atau staff). Best-effort: client lambat
// di-drop, tidak ada ack ke core.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/campus-eats/internal/config"
	kafkax "github.com/ariefcatur/campus-eats/internal/kafka"
	"github.com/ariefcatur/campus-eats/internal/orders"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS dihandle gateway di depan
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	channel string
}

func (c *client) writePump(h *hub) {
	defer func() {
		h.unsubscribe(c)
		_ = c.conn.Close()
	}()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump(h *hub) {
	defer func() {
		h.unsubscribe(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		// cuma heartbeat/close yang kita pedulikan dari client
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// hub: banyak koneksi boleh nempel di satu channel (beberapa layar staff).
type hub struct {
	mu   sync.RWMutex
	subs map[string]map[*client]bool
}

func newHub() *hub {
	return &hub{subs: map[string]map[*client]bool{}}
}

func (h *hub) subscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[c.channel] == nil {
		h.subs[c.channel] = map[*client]bool{}
	}
	h.subs[c.channel][c] = true
}

func (h *hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[c.channel]; ok && set[c] {
		delete(set, c)
		close(c.send)
		if len(set) == 0 {
			delete(h.subs, c.channel)
		}
	}
}

func (h *hub) broadcast(channel string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[channel] {
		select {
		case c.send <- msg:
		default:
			// client lambat: drop pesan, bukan block consumer
		}
	}
}

func serveWs(h *hub, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			http.Error(w, "channel is required", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("ws upgrade")
			return
		}
		c := &client{conn: conn, send: make(chan []byte, 64), channel: channel}
		h.subscribe(c)
		go c.writePump(h)
		go c.readPump(h)
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName+"-notifier").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHub()

	group := getenv("NOTIFIER_GROUP", "notifier")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group,
		[]string{orders.TopicUserNotifications, orders.TopicStaffNotifications}, workers, log)

	go func() {
		log.Info().Str("group", group).Int("workers", workers).Msg("notification consumer started")
		err := cons.Start(ctx, func(ctx context.Context, m kafkago.Message) error {
			var env orders.Envelope
			if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
				log.Warn().Err(err).Msg("skip malformed envelope")
				return nil // jangan retry pesan rusak
			}
			h.broadcast(env.Channel, m.Value)
			return nil
		})
		if err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	addr := getenv("WS_ADDR", ":8090")
	srv := &http.Server{Addr: addr}
	http.HandleFunc("/ws", serveWs(h, log))
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		log.Info().Str("addr", addr).Msg("websocket listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
