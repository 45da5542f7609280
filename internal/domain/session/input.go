package session

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/GriffinCanCode/TabForge/internal/domain/record"
)

// DispatchTo translates one recorded interaction into the engine's input
// protocol and fires it at the page. Shared by the live input path and
// clone replay so both produce identical page behavior.
func DispatchTo(page *rod.Page, t record.EventType, p record.Payload) error {
	switch t {
	case record.MousePressed, record.MouseReleased, record.MouseMoved, record.MouseWheel:
		return dispatchMouse(page, t, p)
	case record.KeyDown, record.KeyUp:
		return dispatchKey(page, t, p)
	case record.Paste:
		return proto.InputInsertText{Text: p.Text}.Call(page)
	default:
		return fmt.Errorf("undispatchable event type %q", t)
	}
}

func dispatchMouse(page *rod.Page, t record.EventType, p record.Payload) error {
	ev := proto.InputDispatchMouseEvent{
		X:         p.X,
		Y:         p.Y,
		Modifiers: p.Modifiers,
	}

	switch t {
	case record.MousePressed:
		ev.Type = proto.InputDispatchMouseEventTypeMousePressed
		ev.Button = mouseButton(p.Button)
		ev.ClickCount = clickCount(p.ClickCount)
	case record.MouseReleased:
		ev.Type = proto.InputDispatchMouseEventTypeMouseReleased
		ev.Button = mouseButton(p.Button)
		ev.ClickCount = clickCount(p.ClickCount)
	case record.MouseMoved:
		ev.Type = proto.InputDispatchMouseEventTypeMouseMoved
	case record.MouseWheel:
		ev.Type = proto.InputDispatchMouseEventTypeMouseWheel
		ev.DeltaX = p.DeltaX
		ev.DeltaY = p.DeltaY
	}

	return ev.Call(page)
}

func dispatchKey(page *rod.Page, t record.EventType, p record.Payload) error {
	ev := proto.InputDispatchKeyEvent{
		Key:       p.Key,
		Code:      p.Code,
		Modifiers: p.Modifiers,
	}

	if t == record.KeyDown {
		// keyDown with printable text produces the character; rawKeyDown
		// would suppress it.
		ev.Type = proto.InputDispatchKeyEventTypeKeyDown
		ev.Text = p.Text
	} else {
		ev.Type = proto.InputDispatchKeyEventTypeKeyUp
	}

	return ev.Call(page)
}

func mouseButton(name string) proto.InputMouseButton {
	switch name {
	case "left", "right", "middle", "back", "forward":
		return proto.InputMouseButton(name)
	default:
		return proto.InputMouseButtonLeft
	}
}

func clickCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
