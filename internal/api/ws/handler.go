package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TabForge/internal/browser"
	"github.com/GriffinCanCode/TabForge/internal/domain/clone"
	"github.com/GriffinCanCode/TabForge/internal/domain/netcache"
	"github.com/GriffinCanCode/TabForge/internal/domain/record"
	"github.com/GriffinCanCode/TabForge/internal/domain/session"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/config"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced at the gateway
	},
}

// Handler owns the control-channel protocol: one WebSocket connection drives
// exactly one browser session for its whole lifetime.
type Handler struct {
	engine       *browser.Engine
	sessions     *session.Manager
	pending      *session.PendingStore
	orchestrator *clone.Orchestrator
	cfg          *config.Config
	logger       *logging.Logger
	metrics      *monitoring.Metrics
}

// NewHandler wires the connection handler.
func NewHandler(
	engine *browser.Engine,
	sessions *session.Manager,
	pending *session.PendingStore,
	orchestrator *clone.Orchestrator,
	cfg *config.Config,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
) *Handler {
	return &Handler{
		engine:       engine,
		sessions:     sessions,
		pending:      pending,
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       logger.Named("ws"),
		metrics:      metrics,
	}
}

// conn serializes writes: the read loop, the frame sink, and fork progress
// all write concurrently.
type conn struct {
	mu      sync.Mutex
	ws      *websocket.Conn
	metrics *monitoring.Metrics
}

func (c *conn) send(kind string, v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.WSMessages.WithLabelValues("out", kind).Inc()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// HandleConnection upgrades the request and binds it to a session: a fresh
// one by default, or a parked clone when ?session= names one.
func (h *Handler) HandleConnection(c *gin.Context) {
	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	cn := &conn{ws: wsConn, metrics: h.metrics}
	defer wsConn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	sess, err := h.attach(c.Query("session"))
	if err != nil {
		_ = cn.send("error", errorMsg(err.Error()))
		return
	}
	h.sessions.Add(sess)
	defer func() {
		h.sessions.Remove(sess.ID())
		sess.Teardown()
	}()

	logger := h.logger.With(zap.String("session_id", sess.ID()))
	logger.Info("connection attached")

	sess.SetFrameSink(func(f session.Frame) {
		err := cn.send("frame", Frame{Type: "frame", Data: f.Data, Width: f.Width, Height: f.Height})
		if err != nil {
			logger.Debug("frame send failed", zap.Error(err))
		}
	})

	profile := sess.Profile()
	_ = cn.send("ready", Ready{
		Type:      "ready",
		SessionID: sess.ID(),
		URL:       sess.URL(),
		Tier:      sess.CurrentTier(),
		Recording: sess.Recording(),
		Width:     profile.Width,
		Height:    profile.Height,
		Scale:     profile.Scale,
	})

	if err := sess.StartScreencast(sess.CurrentTier()); err != nil {
		logger.Warn("screencast start failed", zap.Error(err))
	}

	h.readLoop(cn, sess, logger)
	logger.Info("connection closed")
}

// attach resolves the session for a new connection.
func (h *Handler) attach(pendingID string) (*session.Context, error) {
	if pendingID != "" {
		sess, ok := h.pending.Take(pendingID)
		if !ok {
			return nil, &protocolError{"unknown or expired session: " + pendingID}
		}
		return sess, nil
	}

	return session.New(h.engine, session.Options{
		Profile: browser.DefaultProfile(
			h.cfg.Browser.ViewportWidth,
			h.cfg.Browser.ViewportHeight,
			h.cfg.Browser.DeviceScale,
		),
		NavTimeout: h.cfg.Browser.NavigationTimeout,
		CachePolicy: netcache.Policy{
			MaxTotalBytes:     h.cfg.Cache.MaxTotalBytes,
			MaxEntryBytes:     h.cfg.Cache.MaxEntryBytes,
			CompressThreshold: h.cfg.Cache.CompressThreshold,
		},
		Logger:  h.logger,
		Metrics: h.metrics,
	})
}

// readLoop processes inbound messages until the socket dies. Operation
// failures are reported as error frames; only transport errors end the loop.
func (h *Handler) readLoop(cn *conn, sess *session.Context, logger *logging.Logger) {
	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = cn.send("error", errorMsg("malformed message"))
			continue
		}

		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("in", msg.Type).Inc()
		}
		h.dispatch(cn, sess, msg, logger)
	}
}

func (h *Handler) dispatch(cn *conn, sess *session.Context, msg Message, logger *logging.Logger) {
	switch msg.Type {
	case MsgNavigate:
		h.handleNavigate(cn, sess, msg)
	case MsgInput:
		sess.HandleInput(msg.Event, msg.Payload)
	case MsgSetQualityTier:
		h.handleSetTier(cn, sess, msg)
	case MsgCloneSession:
		h.handleClone(cn, sess, msg, logger)
	case MsgCaptureSnapshot:
		_ = cn.send("snapshotCaptured", SnapshotCaptured{Type: "snapshotCaptured", Snapshot: sess.Snapshot()})
	case MsgGetCacheStats:
		_ = cn.send("cacheStats", CacheStats{Type: "cacheStats", Stats: sess.Cache().Stats()})
	case MsgToggleRecording:
		recording := sess.SetRecording(msg.Enabled)
		_ = cn.send("recordingStatus", RecordingStatus{Type: "recordingStatus", Recording: recording})
	case MsgPing:
		_ = cn.send("pong", Status{Type: "pong", Timestamp: time.Now().UnixMilli()})
	default:
		if t, ok := rawInput(msg); ok {
			sess.HandleInput(t, msg.inputPayload())
			return
		}
		_ = cn.send("error", errorMsg("unknown message type: "+msg.Type))
	}
}

// rawInput resolves a top-level input message (mousePressed, keyDown, paste,
// ...) onto its recorded event type.
func rawInput(msg Message) (record.EventType, bool) {
	t := record.EventType(msg.Type)
	return t, record.Replayable(t)
}

func (h *Handler) handleNavigate(cn *conn, sess *session.Context, msg Message) {
	url := normalizeURL(msg.URL)
	if url == "" {
		_ = cn.send("error", errorMsg("navigate requires a url"))
		return
	}
	if err := sess.Navigate(url); err != nil {
		_ = cn.send("error", errorMsg(err.Error()))
		return
	}
	_ = cn.send("status", status("navigated to "+url))
}

func (h *Handler) handleSetTier(cn *conn, sess *session.Context, msg Message) {
	if !session.ValidTier(msg.Tier) {
		_ = cn.send("error", errorMsg("unknown quality tier: "+string(msg.Tier)))
		return
	}
	if err := sess.SetTier(msg.Tier); err != nil {
		_ = cn.send("error", errorMsg(err.Error()))
		return
	}
	_ = cn.send("qualityTierChanged", TierChanged{Type: "qualityTierChanged", Tier: msg.Tier})
}

// handleClone forks in the background so the source connection stays
// responsive while the copy materializes.
func (h *Handler) handleClone(cn *conn, sess *session.Context, msg Message, logger *logging.Logger) {
	go func() {
		cloned, err := h.orchestrator.Fork(context.Background(), sess, clone.Options{
			Speed:          msg.Options.PlaybackSpeed,
			SkipAnimations: msg.Options.SkipAnimations,
			NavTimeout:     h.cfg.Browser.NavigationTimeout,
			OnProgress: func(p clone.Progress) {
				_ = cn.send("cloneProgress", CloneProgress{Type: "cloneProgress", Progress: p})
			},
		})
		if err != nil {
			logger.Error("fork failed", zap.Error(err))
			_ = cn.send("error", errorMsg("clone failed: "+err.Error()))
			return
		}

		h.pending.Add(cloned)
		_ = cn.send("cloneCreated", CloneCreated{
			Type:      "cloneCreated",
			SessionID: cloned.ID(),
			URL:       cloned.URL(),
			ExpiresIn: h.cfg.Pending.TTL.Milliseconds(),
		})
	}()
}

// normalizeURL defaults bare hostnames to https.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

type protocolError struct{ msg string }

func (e *protocolError) Error() string { return e.msg }
