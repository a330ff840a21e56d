package bridge

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("ws not connected")

type EventCallback func(ev Event)

type StateCallback func(state State)

type callbackEntry struct {
	id       int
	callback EventCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// WebSocket is the bridge event feed. It reconnects on read or ping failure and
// doubles as a write path for outgoing chat frames.
type WebSocket struct {
	wsURL  string
	logger *zap.Logger

	conn       *websocket.Conn
	connCancel context.CancelFunc
	connM      sync.Mutex
	writeM     sync.Mutex

	state  State
	stateM sync.RWMutex

	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	reconnecting         bool

	pingInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	headerProvider HeaderProvider
}

func NewWebSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *WebSocket {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	return &WebSocket{
		wsURL:                wsURL,
		logger:               zap.NewNop(),
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

// SetHeaderProvider injects headers into every handshake.
func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) { ws.headerProvider = h }

func (ws *WebSocket) SetLogger(l *zap.Logger) {
	if l != nil {
		ws.logger = l
	}
}

func (ws *WebSocket) State() State {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state
}

func (ws *WebSocket) Connected() bool { return ws.State() == StateConnected }

// Connect dials once. On failure a background reconnect is scheduled and the
// dial error is returned.
func (ws *WebSocket) Connect(ctx context.Context) error {
	switch ws.State() {
	case StateConnected, StateConnecting:
		return nil
	}
	ws.setState(StateConnecting)

	if err := ws.dial(ctx); err != nil {
		ws.setState(StateFailed)
		ws.logger.Warn("ws_connect_failed", zap.String("url", ws.wsURL), zap.Error(err))
		ws.scheduleReconnect()
		return err
	}
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	if err != nil {
		return err
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	ws.connM.Lock()
	ws.conn = conn
	ws.connCancel = connCancel
	ws.reconnecting = false
	ws.connM.Unlock()

	ws.setState(StateConnected)
	ws.logger.Info("ws_connected", zap.String("url", ws.wsURL))

	ws.wg.Add(2)
	go ws.listen(connCtx, conn)
	go ws.pingLoop(connCtx, conn)
	return nil
}

func (ws *WebSocket) listen(ctx context.Context, conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ws.isStopping() {
				return
			}
			ws.logger.Warn("ws_read_failed", zap.Error(err))
			ws.drop(conn, "reconnect")
			return
		}

		ws.cbM.RLock()
		callbacks := make([]callbackEntry, len(ws.msgCbs))
		copy(callbacks, ws.msgCbs)
		ws.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(ev)
			}
		}
	}
}

func (ws *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if ws.isStopping() {
					return
				}
				ws.logger.Warn("ws_ping_failed", zap.Error(err))
				ws.drop(conn, "ping failure")
				return
			}
		}
	}
}

// drop closes conn if it is still current and starts reconnecting. Only the
// first caller for a given connection does anything.
func (ws *WebSocket) drop(conn *websocket.Conn, reason string) {
	ws.connM.Lock()
	if ws.conn != conn {
		ws.connM.Unlock()
		return
	}
	ws.conn = nil
	cancel := ws.connCancel
	ws.connCancel = nil
	ws.connM.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = conn.Close(websocket.StatusGoingAway, reason)
	ws.setState(StateDisconnected)
	ws.scheduleReconnect()
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.maxReconnectAttempts <= 0 || ws.isStopping() {
		return
	}
	ws.connM.Lock()
	if ws.reconnecting {
		ws.connM.Unlock()
		return
	}
	ws.reconnecting = true
	ws.connM.Unlock()
	ws.setState(StateReconnecting)

	go func() {
		giveUp := func() {
			ws.connM.Lock()
			ws.reconnecting = false
			ws.connM.Unlock()
		}
		for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
			select {
			case <-ws.stopCh:
				giveUp()
				return
			case <-time.After(ws.reconnectBackoff(attempt)):
			}
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				select {
				case <-ws.stopCh:
					cancel()
				case <-ctx.Done():
				}
			}()
			err := ws.dial(ctx)
			cancel()
			if err == nil {
				return
			}
			ws.logger.Warn("ws_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		giveUp()
		ws.setState(StateFailed)
	}()
}

func (ws *WebSocket) reconnectBackoff(attempt int) time.Duration {
	d := ws.reconnectDelay
	for i := 1; i < attempt && d < 30*time.Second; i++ {
		d *= 2
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// WriteJSON sends one frame. Writes are serialized; without a ctx deadline a
// 5s bound applies.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	ws.connM.Lock()
	conn := ws.conn
	ws.connM.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) OnEvent(cb EventCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.msgCbs = append(ws.msgCbs, callbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveEventCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.msgCbs {
		if cb.id == id {
			ws.msgCbs = append(ws.msgCbs[:i], ws.msgCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.stateCbs = append(ws.stateCbs, stateCallbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) setState(state State) {
	ws.stateM.Lock()
	ws.state = state
	ws.stateM.Unlock()

	ws.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(ws.stateCbs))
	copy(callbacks, ws.stateCbs)
	ws.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })

	ws.connM.Lock()
	conn, cancel := ws.conn, ws.connCancel
	ws.conn, ws.connCancel = nil, nil
	ws.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		ws.setState(StateDisconnected)
		return nil
	}
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headerProvider == nil {
		return hdr
	}
	for k, v := range ws.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
