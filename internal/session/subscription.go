package session

import (
	"sync"

	"estate-inquiries-backend/internal/model"
	"estate-inquiries-backend/internal/service/inquiry"
)

// EventSource is the bus side of a live conversation. Join registers a
// callback for that conversation's events and returns the leave func.
// Joining is transport membership only; authorization happened when the
// caller fetched the history.
type EventSource interface {
	Join(conversationID string, fn func(inquiry.Event)) (func(), error)
}

// Subscription ties one Session to its broadcast-group membership so the
// subscribe/unsubscribe pair lives in a single place instead of being
// repeated by every surface that shows a conversation.
type Subscription struct {
	Session *Session

	once  sync.Once
	leave func()
}

// Open builds the session for a conversation the viewer just opened:
// seeds it with the fetched history, joins the broadcast group and marks
// the viewer active.
func Open(source EventSource, conversationID, selfID string, selfRole model.Role, history []model.MessageItem, ack AckFunc) (*Subscription, error) {
	s := New(conversationID, selfID, selfRole, ack)
	s.Seed(history)

	leave, err := source.Join(conversationID, s.Apply)
	if err != nil {
		return nil, err
	}
	s.SetActive(true)

	return &Subscription{Session: s, leave: leave}, nil
}

// Close leaves the broadcast group and deactivates the session. Safe to
// call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.Session.SetActive(false)
		if sub.leave != nil {
			sub.leave()
		}
	})
}
