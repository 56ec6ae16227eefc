// Package bot implements the chat dialog that collects a document and the
// user's choices, runs the map pipeline and reports the result.
package bot

import "context"

// Button is one keyboard key. WebAppURL opens a web app; Data is sent back
// as a callback for inline keyboards.
type Button struct {
	Text      string
	WebAppURL string
	Data      string
}

// Keyboard is attached to an outgoing message. Remove hides any reply
// keyboard the user currently sees.
type Keyboard struct {
	Rows   [][]Button
	Inline bool
	Remove bool
}

// Message is one outgoing chat message. HTML enables HTML parse mode.
type Message struct {
	ChatID   int64
	Text     string
	HTML     bool
	Keyboard *Keyboard
}

// Messenger is the chat transport.
type Messenger interface {
	Send(ctx context.Context, msg Message) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Download(ctx context.Context, fileID string) ([]byte, error)
	AnswerCallback(ctx context.Context, callbackID string) error
}

// File is an attachment reference.
type File struct {
	ID   string
	Name string
	Size int64
}

// Callback is an inline button press.
type Callback struct {
	ID   string
	Data string
}

// Update is one incoming event from a user.
type Update struct {
	UserID   int64
	ChatID   int64
	Text     string
	Document *File
	Photo    *File
	Callback *Callback
}
