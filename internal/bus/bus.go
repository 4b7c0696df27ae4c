// Package bus carries the envelope messaging the popup protocol uses:
// every message is {type, values:[...]}, where type routes the message and
// each value is an action with options. In the extension this rode the
// runtime messaging transport; here it is an in-process pub/sub that the
// server bridges to websocket clients and the CLI taps for log output.
package bus

import "sync"

// Message types.
const (
	TypePopupAction = "popup-action"
	TypeFeedback    = "feedback"
)

// Feedback actions.
const (
	ActionFeedbackMessage   = "feedback-message"
	ActionDownloadStart     = "download-start"
	ActionDownloadIncrement = "download-increment"
	ActionDownloadEnd       = "download-end"
	ActionDownloadAbort     = "download-abort"
	ActionSearchStart       = "search-start"
	ActionSearchIncrement   = "search-increment"
	ActionSearchEnd         = "search-end"
)

// DisplayAs values for feedback-message.
const (
	DisplayStatus  = "status"
	DisplaySuccess = "success"
	DisplayError   = "error"
)

// Value is one action inside a message envelope.
type Value struct {
	Action    string `json:"action"`
	Message   string `json:"message,omitempty"`
	DisplayAs string `json:"displayAs,omitempty"`
	Total     int    `json:"total,omitempty"`
	VIN       string `json:"vin,omitempty"`
	LotNumber string `json:"lotNumber,omitempty"`
	OpenURL   string `json:"openUrl,omitempty"`
}

// Message is the envelope.
type Message struct {
	Type   string  `json:"type"`
	Values []Value `json:"values"`
}

// Bus is a broadcast pub/sub. Publishing never blocks: slow subscribers
// drop messages rather than stalling the pipeline.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Message
	next int
}

func New() *Bus {
	return &Bus{subs: make(map[int]chan Message)}
}

// Subscribe registers a receiver. The returned cancel func must be called
// to release the channel.
func (b *Bus) Subscribe() (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Message, 64)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish broadcasts msg to all current subscribers.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Feedback publishes a single-value feedback envelope.
func (b *Bus) Feedback(v Value) {
	b.Publish(Message{Type: TypeFeedback, Values: []Value{v}})
}

// Notify publishes a feedback-message with the given display class.
func (b *Bus) Notify(message, displayAs string) {
	b.Feedback(Value{Action: ActionFeedbackMessage, Message: message, DisplayAs: displayAs})
}
