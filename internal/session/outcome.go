package session

// ActionKind selects how the transport renders an Action.
type ActionKind uint8

const (
	ActionText ActionKind = iota
	ActionKeyboard
	ActionPhoto
	ActionVideo
)

func (k ActionKind) String() string {
	switch k {
	case ActionText:
		return "text"
	case ActionKeyboard:
		return "keyboard"
	case ActionPhoto:
		return "photo"
	case ActionVideo:
		return "video"
	}
	return "unknown"
}

// Action is one outbound message. Keyboard rows are reply-button labels. File is a local
// path for photos and videos.
type Action struct {
	Kind     ActionKind
	ChatID   int64
	Text     string
	Markdown bool
	Keyboard [][]string
	File     string
	Caption  string
}

// Outcome is what one Handle call decided. Actions are delivered in order before the
// state is written.
type Outcome struct {
	Next    State
	Persist bool
	// Reset asks the store to recreate the chat record at Start before Next is written.
	Reset bool
	// Language is the newly chosen language code, empty when unchanged.
	Language string
	Actions  []Action
}
