package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key codes follow the virtual-key numbering so letters and digits map to
// their ASCII value.
type KeyCode uint16

const (
	KEY_ENTER  KeyCode = 0x0D
	KEY_SHIFT  KeyCode = 0x10
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_LEFT   KeyCode = 0x25
	KEY_UP     KeyCode = 0x26
	KEY_RIGHT  KeyCode = 0x27
	KEY_DOWN   KeyCode = 0x28
	KEY_0      KeyCode = 0x30
	KEY_1      KeyCode = 0x31
	KEY_2      KeyCode = 0x32
	KEY_3      KeyCode = 0x33
	KEY_A      KeyCode = 0x41
	KEY_D      KeyCode = 0x44
	KEY_F      KeyCode = 0x46
	KEY_O      KeyCode = 0x4F
	KEY_Q      KeyCode = 0x51
	KEY_R      KeyCode = 0x52
	KEY_S      KeyCode = 0x53
	KEY_W      KeyCode = 0x57
)

// Mouse state structure
type MouseState struct {
	X       int32
	Y       int32
	Buttons [BUTTON_MAX_BUTTONS]bool
}

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// Input holds the current and previous keyboard and mouse state. Platform
// callbacks write into it; the engine reads it once per frame and then calls
// Update to roll the current state into the previous one.
type Input struct {
	mu sync.Mutex

	keyboardCurrent  KeyboardState
	keyboardPrevious KeyboardState
	mouseCurrent     MouseState
	mousePrevious    MouseState

	events *EventBus
}

func NewInput(events *EventBus) *Input {
	return &Input{events: events}
}

// Update copies current states to previous states.
func (in *Input) Update() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.keyboardPrevious = in.keyboardCurrent
	in.mousePrevious = in.mouseCurrent
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.keyboardCurrent.Keys[uint8(key)]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.keyboardPrevious.Keys[uint8(key)]
}

// KeyPressed is true on the frame a key goes down.
func (in *Input) KeyPressed(key KeyCode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.keyboardCurrent.Keys[uint8(key)] && !in.keyboardPrevious.Keys[uint8(key)]
}

func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	in.mu.Lock()
	changed := in.keyboardCurrent.Keys[uint8(key)] != pressed
	in.keyboardCurrent.Keys[uint8(key)] = pressed
	in.mu.Unlock()

	if !changed || in.events == nil {
		return
	}
	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	ctx := EventContext{}
	ctx.Data.U16[0] = uint16(key)
	in.events.Fire(code, in, ctx)
}

func (in *Input) IsButtonDown(button Button) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.mouseCurrent.Buttons[button]
}

func (in *Input) ProcessButton(button Button, pressed bool) {
	in.mu.Lock()
	changed := in.mouseCurrent.Buttons[button] != pressed
	in.mouseCurrent.Buttons[button] = pressed
	in.mu.Unlock()

	if !changed || in.events == nil {
		return
	}
	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	ctx := EventContext{}
	ctx.Data.U16[0] = uint16(button)
	in.events.Fire(code, in, ctx)
}

func (in *Input) ProcessMouseMove(x, y int32) {
	in.mu.Lock()
	in.mouseCurrent.X = x
	in.mouseCurrent.Y = y
	in.mu.Unlock()
}

// MouseDelta returns how far the cursor moved since the last Update.
func (in *Input) MouseDelta() (int32, int32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.mouseCurrent.X - in.mousePrevious.X, in.mouseCurrent.Y - in.mousePrevious.Y
}

func (in *Input) MousePosition() (int32, int32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.mouseCurrent.X, in.mouseCurrent.Y
}
