// Package message turns raw Telegram updates into the normalized form the session
// state machine consumes.
package message

import (
	"errors"
	"fmt"
)

// Type discriminates the kind of inbound event.
type Type string

const (
	TypeMessage           Type = "MESSAGE"
	TypeEditedMessage     Type = "EDITED_MESSAGE"
	TypeInline            Type = "INLINE"
	TypeCallback          Type = "CALLBACK"
	TypeMemberUpdate      Type = "MEMBER_UPDATE"
	TypeChannelPost       Type = "CHANNEL_POST"
	TypeEditedChannelPost Type = "EDITED_CHANNEL_POST"
)

// BodyType records which payload populated Body.
type BodyType string

const (
	BodyText     BodyType = "TEXT"
	BodyDocument BodyType = "DOCUMENT"
	BodyLocation BodyType = "LOCATION"
	BodyPhoto    BodyType = "PHOTO"
	BodyVoice    BodyType = "VOICE"
	BodyUnknown  BodyType = "UNKNOWN"
)

// Document is the file reference of a document message.
type Document struct {
	FileID string
	MIME   string
}

// Location is a shared map point.
type Location struct {
	Lat float64
	Lon float64
}

// Message is one inbound event in platform-agnostic form.
//
// ChatID is 0 when the event has no user-addressable chat; callers must not reply then.
// UserUID is the raw platform identifier and has to be hashed before it is logged or
// handed to any downstream service.
type Message struct {
	Type     Type
	UpdateID int
	ChatID   int64
	UserUID  string
	Username string
	Lang     string
	Date     int64

	Body       string
	BodyType   BodyType
	Command    string
	CommandArg string

	Document     *Document
	Location     *Location
	PhotoID      string
	VoiceID      string
	MemberStatus string
	QueryID      string
	CallbackID   string
}

// IsCommand reports whether the message carried a leading slash command.
func (m Message) IsCommand() bool {
	return m.Command != ""
}

// WithBody returns a copy carrying body as plain text with the command cleared.
func (m Message) WithBody(body string) Message {
	m.Body = body
	m.BodyType = BodyText
	m.Command = ""
	m.CommandArg = ""
	return m
}

// RejectKind classifies why an update could not be parsed.
type RejectKind string

const (
	// Malformed marks updates that violate structural expectations, including group chats.
	Malformed RejectKind = "malformed"
	// Unsupported marks recognized update kinds the bot does not handle.
	Unsupported RejectKind = "unsupported"
)

var (
	// ErrMalformedEvent matches every Malformed rejection under errors.Is.
	ErrMalformedEvent = errors.New("message: malformed event")
	// ErrUnsupportedEvent matches every Unsupported rejection under errors.Is.
	ErrUnsupportedEvent = errors.New("message: unsupported event")
)

// Rejection is the error returned by Parse when an update is not turned into a Message.
type Rejection struct {
	Kind   RejectKind
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("message: %s event: %s", r.Kind, r.Reason)
}

// Unwrap maps the rejection onto its sentinel.
func (r *Rejection) Unwrap() error {
	if r.Kind == Unsupported {
		return ErrUnsupportedEvent
	}
	return ErrMalformedEvent
}

// Code exposes the rejection kind to log summaries.
func (r *Rejection) Code() string {
	return "EVENT_" + string(r.Kind)
}

func malformed(format string, args ...any) error {
	return &Rejection{Kind: Malformed, Reason: fmt.Sprintf(format, args...)}
}

func unsupported(reason string) error {
	return &Rejection{Kind: Unsupported, Reason: reason}
}
