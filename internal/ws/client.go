package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/service"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
)

// bufPool pools bytes.Buffer for JSON encoding in the hot-path (writePump).
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Client - одно WebSocket-соединение сессии. Держит два слушателя:
// "мои чаты" (всегда) и "открытый чат" (не больше одного).
// Lifecycle: NewClient -> Start(ctx, cancel) -> [readPump, writePump] -> Close -> Wait.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan OutgoingMessage
	email    string
	session  string
	mu       sync.Mutex
	openChat string
	// refreshed: после установки слушателя уже ушёл снапшот по событию шины
	refreshed bool

	// done is used as a non-blocking guard in sendToClient.
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, id *service.Identity) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan OutgoingMessage, sendBufSize),
		email:   id.Email,
		session: id.SessionID,
		done:    make(chan struct{}),
	}
}

// OpenChat - id открытого чата или "".
func (c *Client) OpenChat() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openChat
}

// setOpenChat заменяет слушателя открытого чата; предыдущий снимается сразу.
func (c *Client) setOpenChat(chatID string) {
	c.mu.Lock()
	c.openChat = chatID
	c.refreshed = false
	c.mu.Unlock()
}

// pushRefresh отправляет снапшот по событию, если chatID всё ещё открыт.
func (c *Client) pushRefresh(chatID string, out OutgoingMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openChat != chatID {
		return
	}
	c.refreshed = true
	c.hub.sendToClient(c, out)
}

// pushOpenSnapshot отправляет снапшот открытия чата. Если событие шины уже
// доставило более свежий снапшот, старый не отправляется.
func (c *Client) pushOpenSnapshot(chatID string, out OutgoingMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openChat != chatID || c.refreshed {
		return
	}
	c.hub.sendToClient(c, out)
}

// clearOpenChatIf снимает слушателя, только если открыт именно chatID.
func (c *Client) clearOpenChatIf(chatID string) {
	c.mu.Lock()
	if c.openChat == chatID {
		c.openChat = ""
	}
	c.mu.Unlock()
}

// Start launches readPump and writePump goroutines with controlled lifecycle.
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// Wait blocks until both pump goroutines have exited.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close signals the client to stop. Safe to call multiple times from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline user=%s: %v", middleware.MaskEmail(c.email), err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error user=%s: %v", middleware.MaskEmail(c.email), err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "malformed message"})
			continue
		}
		c.hub.HandleMessage(ctx, c, msg)
	}
}

func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			if err := json.NewEncoder(buf).Encode(msg); err != nil {
				bufPool.Put(buf)
				logger.Errorf("ws marshal error user=%s: %v", middleware.MaskEmail(c.email), err)
				continue
			}
			data := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
			writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if writeErr != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
