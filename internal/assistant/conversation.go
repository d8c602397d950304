package assistant

import (
	"regexp"
	"sync"

	"github.com/google/uuid"
)

// Role identifies who a conversation message belongs to.
type Role string

const (
	RoleUser  Role = "user"
	RoleBot   Role = "bot"
	RoleError Role = "error"
)

// Message is one entry of the in-memory conversation.
type Message struct {
	ID          string
	Role        Role
	Text        string
	Sources     []string
	Hash        string
	OfflineNote string
	Loading     bool
}

// View renders conversation changes and the status line.
type View interface {
	// Show renders a newly appended message.
	Show(msg Message)
	// Update re-renders a message that replaced a loading placeholder.
	Update(msg Message)
	// SetStatus renders the connectivity indicator and status text.
	SetStatus(online bool, text string)
}

// NopView discards all rendering.
type NopView struct{}

var _ View = NopView{}

// Show does nothing.
func (NopView) Show(Message) {}

// Update does nothing.
func (NopView) Update(Message) {}

// SetStatus does nothing.
func (NopView) SetStatus(bool, string) {}

// Conversation is the ordered list of messages for one session.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	view     View
}

// NewConversation creates an empty conversation rendered to view.
func NewConversation(view View) *Conversation {
	if view == nil {
		view = NopView{}
	}
	return &Conversation{view: view}
}

// Append adds msg with a fresh ID and renders it.
func (c *Conversation) Append(msg Message) Message {
	msg.ID = uuid.NewString()

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	c.view.Show(msg)
	return msg
}

// Replace swaps the message with id for msg, keeping its position and ID.
// It reports false when id is unknown.
func (c *Conversation) Replace(id string, msg Message) bool {
	msg.ID = id

	c.mu.Lock()
	found := false
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i] = msg
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		c.view.Update(msg)
	}
	return found
}

// Messages returns a copy of the conversation.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Segment is a run of answer text with uniform emphasis.
type Segment struct {
	Text string
	Bold bool
}

var boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

// Segments splits answer text on **bold** markers.
func Segments(text string) []Segment {
	var out []Segment
	last := 0
	for _, loc := range boldPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			out = append(out, Segment{Text: text[last:loc[0]]})
		}
		if loc[3] > loc[2] {
			out = append(out, Segment{Text: text[loc[2]:loc[3]], Bold: true})
		}
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}
