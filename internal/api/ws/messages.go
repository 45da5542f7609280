package ws

import (
	"time"

	"github.com/GriffinCanCode/TabForge/internal/domain/clone"
	"github.com/GriffinCanCode/TabForge/internal/domain/netcache"
	"github.com/GriffinCanCode/TabForge/internal/domain/record"
	"github.com/GriffinCanCode/TabForge/internal/domain/session"
)

// Inbound message types.
const (
	MsgNavigate        = "navigate"
	MsgInput           = "input"
	MsgSetQualityTier  = "setQualityTier"
	MsgCloneSession    = "cloneSession"
	MsgCaptureSnapshot = "captureSnapshot"
	MsgGetCacheStats   = "getCacheStats"
	MsgToggleRecording = "toggleRecording"
	MsgPing            = "ping"
)

// Message is one client-to-server frame. Type selects which fields apply.
// Raw input types (mousePressed, mouseReleased, mouseMoved, mouseWheel,
// keyDown, keyUp, paste) carry their event fields at the top level; the
// equivalent enveloped form uses event+payload.
type Message struct {
	Type string `json:"type"`

	// navigate
	URL string `json:"url,omitempty"`

	// raw input
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Button     string  `json:"button,omitempty"`
	ClickCount int     `json:"clickCount,omitempty"`
	Modifiers  int     `json:"modifiers,omitempty"`
	DeltaX     float64 `json:"deltaX,omitempty"`
	DeltaY     float64 `json:"deltaY,omitempty"`
	Key        string  `json:"key,omitempty"`
	Code       string  `json:"code,omitempty"`
	Text       string  `json:"text,omitempty"`

	// input (enveloped form)
	Event   record.EventType `json:"event,omitempty"`
	Payload record.Payload   `json:"payload,omitempty"`

	// setQualityTier
	Tier session.Tier `json:"tier,omitempty"`

	// cloneSession
	Options CloneOptions `json:"options"`

	// toggleRecording; nil toggles, otherwise sets
	Enabled *bool `json:"enabled,omitempty"`
}

// CloneOptions tunes a cloneSession request.
type CloneOptions struct {
	PlaybackSpeed  float64 `json:"playbackSpeed,omitempty"`
	SkipAnimations bool    `json:"skipAnimations,omitempty"`
}

// inputPayload assembles the payload of a raw input message.
func (m Message) inputPayload() record.Payload {
	return record.Payload{
		X:          m.X,
		Y:          m.Y,
		Button:     m.Button,
		ClickCount: m.ClickCount,
		Modifiers:  m.Modifiers,
		DeltaX:     m.DeltaX,
		DeltaY:     m.DeltaY,
		Key:        m.Key,
		Code:       m.Code,
		Text:       m.Text,
	}
}

// Ready is sent once after attachment, before any other frame.
type Ready struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId"`
	URL       string       `json:"url,omitempty"`
	Tier      session.Tier `json:"tier"`
	Recording bool         `json:"recording"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Scale     float64      `json:"scale"`
}

// Frame carries one screencast frame; Data is base64 in transit.
type Frame struct {
	Type   string `json:"type"`
	Data   []byte `json:"data"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Status is a generic acknowledgement.
type Status struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Error reports a failed operation without closing the connection.
type Error struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TierChanged confirms a quality-tier switch.
type TierChanged struct {
	Type string       `json:"type"`
	Tier session.Tier `json:"tier"`
}

// CloneProgress relays fork stage transitions to the requesting client.
type CloneProgress struct {
	Type     string         `json:"type"`
	Progress clone.Progress `json:"progress"`
}

// CloneCreated announces the parked clone; the client opens a second
// connection with ?session=<SessionID> to claim it.
type CloneCreated struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url,omitempty"`
	ExpiresIn int64  `json:"expiresInMs"`
}

// SnapshotCaptured returns the page identity snapshot.
type SnapshotCaptured struct {
	Type     string               `json:"type"`
	Snapshot session.PageSnapshot `json:"snapshot"`
}

// CacheStats returns the session cache summary.
type CacheStats struct {
	Type  string         `json:"type"`
	Stats netcache.Stats `json:"stats"`
}

// RecordingStatus confirms the recording flag.
type RecordingStatus struct {
	Type      string `json:"type"`
	Recording bool   `json:"recording"`
}

func status(msg string) Status {
	return Status{Type: "status", Message: msg, Timestamp: time.Now().UnixMilli()}
}

func errorMsg(msg string) Error {
	return Error{Type: "error", Message: msg, Timestamp: time.Now().UnixMilli()}
}
