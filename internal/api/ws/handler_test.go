package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TabForge/internal/domain/record"
	"github.com/GriffinCanCode/TabForge/internal/domain/session"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/monitoring"
)

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com", normalizeURL("example.com"))
	assert.Equal(t, "https://example.com/path", normalizeURL(" example.com/path "))
	assert.Equal(t, "http://example.com", normalizeURL("http://example.com"))
	assert.Equal(t, "https://example.com", normalizeURL("https://example.com"))
	assert.Equal(t, "", normalizeURL("   "))
}

func TestMessageDecoding(t *testing.T) {
	raw := `{"type":"input","event":"mousePressed","payload":{"x":10,"y":20,"button":"left","clickCount":1}}`
	var msg Message
	require.NoError(t, sonic.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, MsgInput, msg.Type)
	assert.Equal(t, record.MousePressed, msg.Event)
	assert.Equal(t, 10.0, msg.Payload.X)
	assert.Equal(t, "left", msg.Payload.Button)
}

func TestMessageToggleRecordingEnabled(t *testing.T) {
	var explicit Message
	require.NoError(t, sonic.Unmarshal([]byte(`{"type":"toggleRecording","enabled":false}`), &explicit))
	require.NotNil(t, explicit.Enabled)
	assert.False(t, *explicit.Enabled)

	var toggle Message
	require.NoError(t, sonic.Unmarshal([]byte(`{"type":"toggleRecording"}`), &toggle))
	assert.Nil(t, toggle.Enabled, "absent flag means toggle")
}

func TestMessageTierDecoding(t *testing.T) {
	var msg Message
	require.NoError(t, sonic.Unmarshal([]byte(`{"type":"setQualityTier","tier":"primary"}`), &msg))
	assert.Equal(t, session.TierPrimary, msg.Tier)
	assert.True(t, session.ValidTier(msg.Tier))
}

func TestRawInputCoversReplayableTypes(t *testing.T) {
	for _, raw := range []string{
		"mousePressed", "mouseReleased", "mouseMoved", "mouseWheel",
		"keyDown", "keyUp", "paste",
	} {
		et, ok := rawInput(Message{Type: raw})
		require.True(t, ok, raw)
		assert.Equal(t, record.EventType(raw), et)
	}

	_, ok := rawInput(Message{Type: "middleClickDrag"})
	assert.False(t, ok)
}

func TestRawInputMessageDecoding(t *testing.T) {
	raw := `{"type":"mousePressed","x":10,"y":20,"button":"left","clickCount":2,"modifiers":1}`
	var msg Message
	require.NoError(t, sonic.Unmarshal([]byte(raw), &msg))

	p := msg.inputPayload()
	assert.Equal(t, 10.0, p.X)
	assert.Equal(t, 20.0, p.Y)
	assert.Equal(t, "left", p.Button)
	assert.Equal(t, 2, p.ClickCount)
	assert.Equal(t, 1, p.Modifiers)
}

func TestRawWheelKeyAndPasteDecoding(t *testing.T) {
	var wheel Message
	require.NoError(t, sonic.Unmarshal([]byte(`{"type":"mouseWheel","x":5,"y":6,"deltaX":-3,"deltaY":120}`), &wheel))
	p := wheel.inputPayload()
	assert.Equal(t, -3.0, p.DeltaX)
	assert.Equal(t, 120.0, p.DeltaY)

	var key Message
	require.NoError(t, sonic.Unmarshal([]byte(`{"type":"keyDown","key":"a","code":"KeyA","text":"a"}`), &key))
	kp := key.inputPayload()
	assert.Equal(t, "a", kp.Key)
	assert.Equal(t, "KeyA", kp.Code)
	assert.Equal(t, "a", kp.Text)

	var paste Message
	require.NoError(t, sonic.Unmarshal([]byte(`{"type":"paste","text":"hello"}`), &paste))
	assert.Equal(t, "hello", paste.inputPayload().Text)
}

func TestCloneOptionsDecoding(t *testing.T) {
	var msg Message
	require.NoError(t, sonic.Unmarshal([]byte(`{"type":"cloneSession","options":{"playbackSpeed":2.5,"skipAnimations":true}}`), &msg))
	assert.Equal(t, 2.5, msg.Options.PlaybackSpeed)
	assert.True(t, msg.Options.SkipAnimations)

	var bare Message
	require.NoError(t, sonic.Unmarshal([]byte(`{"type":"cloneSession"}`), &bare))
	assert.Zero(t, bare.Options.PlaybackSpeed)
	assert.False(t, bare.Options.SkipAnimations)
}

func TestConnSendCountsOutboundMessages(t *testing.T) {
	upgraded := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := upgrader.Upgrade(w, r, nil)
		upgraded <- c
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	server := <-upgraded
	require.NotNil(t, server)
	defer server.Close()

	m := monitoring.NewMetrics()
	cn := &conn{ws: server, metrics: m}
	require.NoError(t, cn.send("status", status("ok")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSMessages.WithLabelValues("out", "status")))

	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status"`)
}
