// Package session reconciles the three message sources a client sees for
// an open conversation: optimistic local sends, server confirmations and
// inbound realtime events. Every surface displaying a conversation is a
// view over one Session; none of them merge on their own.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"estate-inquiries-backend/internal/model"
	"estate-inquiries-backend/internal/service/inquiry"

	"github.com/google/uuid"
)

const localIDPrefix = "local-"

// AckFunc is invoked (outside the session lock) when a counterpart
// message lands while the viewer is actively looking, so the caller can
// issue the read-acknowledgement without the message sitting unread.
type AckFunc func(conversationID string)

type Session struct {
	mu             sync.Mutex
	conversationID string
	selfID         string
	selfRole       model.Role
	now            func() time.Time

	messages    []model.MessageItem
	provisional map[string]bool
	serverIDs   map[string]bool

	active bool
	closed bool
	ack    AckFunc
}

func New(conversationID, selfID string, selfRole model.Role, ack AckFunc) *Session {
	return &Session{
		conversationID: conversationID,
		selfID:         selfID,
		selfRole:       selfRole,
		now:            time.Now,
		provisional:    make(map[string]bool),
		serverIDs:      make(map[string]bool),
		ack:            ack,
	}
}

// Seed loads the fetched history. Called on open and after a reconnect;
// already-merged messages are skipped so a re-fetch never duplicates.
func (s *Session) Seed(history []model.MessageItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range history {
		s.mergeLocked(message)
	}
}

// AppendLocal inserts a provisional message with a temporary id and
// returns it. The caller sends the persist call; the entry survives until
// ConfirmLocal, FailLocal or the authoritative broadcast supplants it.
func (s *Session) AppendLocal(body string) model.MessageItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	message := model.MessageItem{
		ConversationID: s.conversationID,
		MessageID:      localIDPrefix + uuid.NewString(),
		SenderID:       s.selfID,
		SenderRole:     s.selfRole,
		Body:           body,
		Read:           false,
		CreatedAt:      s.now().UTC().Format(time.RFC3339),
	}
	s.provisional[message.MessageID] = true
	s.messages = append(s.messages, message)
	return message
}

// ConfirmLocal swaps the provisional entry for the server-confirmed row.
// If the matching broadcast already arrived the provisional is simply
// dropped.
func (s *Session) ConfirmLocal(tempID string, confirmed model.MessageItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(tempID)
	s.mergeLocked(confirmed)
}

// FailLocal rolls back a provisional send whose persist call failed and
// returns the body so the composer can keep the text for retry.
func (s *Session) FailLocal(tempID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, message := range s.messages {
		if message.MessageID == tempID {
			s.removeLocked(tempID)
			return message.Body, true
		}
	}
	return "", false
}

// Apply merges one inbound bus event. Duplicate deliveries are harmless:
// message merges are idempotent by server id and read flips are monotonic.
func (s *Session) Apply(event inquiry.Event) {
	if event.ConversationID != s.conversationID {
		return
	}

	notifyAck := false

	s.mu.Lock()
	switch event.Type {
	case inquiry.EventMessageCreated:
		if event.Message != nil {
			merged := s.mergeLocked(*event.Message)
			if merged && s.active && event.Message.SenderRole.Side() != s.selfRole.Side() {
				notifyAck = true
			}
		}
	case inquiry.EventReadAck:
		// An ack from one side means that side has caught up: everything
		// the other side sent is now read. This also covers the echo of
		// our own sweep, so acknowledged counterpart messages do not sit
		// unread locally until a refetch.
		ackSide := event.Role.Side()
		for i := range s.messages {
			if s.messages[i].SenderRole.Side() != ackSide {
				s.messages[i].Read = true
			}
		}
	case inquiry.EventDeleted:
		s.closed = true
	}
	s.mu.Unlock()

	if notifyAck && s.ack != nil {
		s.ack(s.conversationID)
	}
}

// SetActive marks whether the viewer currently has the conversation on
// screen; while active, inbound counterpart messages trigger the ack hook.
func (s *Session) SetActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

// Closed reports that the conversation was hard-deleted under the session.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Messages returns the merged list in stable chronological order.
func (s *Session) Messages() []model.MessageItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.MessageItem, len(s.messages))
	copy(out, s.messages)
	return out
}

// UnreadFromCounterpart counts merged messages from the other side still
// awaiting this viewer's acknowledgement.
func (s *Session) UnreadFromCounterpart() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, message := range s.messages {
		if message.SenderRole.Side() != s.selfRole.Side() && !message.Read {
			count++
		}
	}
	return count
}

// DateGroup is one calendar day's slice of the merged list, for display.
type DateGroup struct {
	Date     string
	Messages []model.MessageItem
}

// GroupedByDate partitions the merged list by calendar date of creation,
// preserving chronological order within and across groups.
func (s *Session) GroupedByDate() []DateGroup {
	messages := s.Messages()

	var groups []DateGroup
	for _, message := range messages {
		date := messageDate(message)
		if len(groups) == 0 || groups[len(groups)-1].Date != date {
			groups = append(groups, DateGroup{Date: date})
		}
		last := len(groups) - 1
		groups[last].Messages = append(groups[last].Messages, message)
	}
	return groups
}

// mergeLocked inserts an authoritative message, dropping any provisional
// stand-in, and reports whether the message was new to the session.
func (s *Session) mergeLocked(message model.MessageItem) bool {
	if s.serverIDs[message.MessageID] {
		return false
	}

	// A broadcast can beat the sender's own HTTP response; match the
	// provisional by sender and body so the optimistic entry is supplanted
	// rather than duplicated.
	if message.SenderID == s.selfID {
		for _, existing := range s.messages {
			if s.provisional[existing.MessageID] && existing.Body == message.Body {
				s.removeLocked(existing.MessageID)
				break
			}
		}
	}

	s.serverIDs[message.MessageID] = true
	s.messages = append(s.messages, message)
	s.sortLocked()
	return true
}

func (s *Session) removeLocked(id string) {
	for i, message := range s.messages {
		if message.MessageID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	delete(s.provisional, id)
}

// sortLocked keeps creation order with the server sequence as tie-break;
// provisional entries (seq 0) sink below confirmed rows of the same
// second so a slightly-early local clock never reorders history.
func (s *Session) sortLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		a, b := s.messages[i], s.messages[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		if a.Seq != b.Seq {
			if a.Seq == 0 || b.Seq == 0 {
				return b.Seq == 0
			}
			return a.Seq < b.Seq
		}
		return a.MessageID < b.MessageID
	})
}

func messageDate(message model.MessageItem) string {
	if t, err := time.Parse(time.RFC3339, message.CreatedAt); err == nil {
		return t.Format("2006-01-02")
	}
	// Fall back to the lexical date prefix of the RFC3339 string.
	if i := strings.IndexByte(message.CreatedAt, 'T'); i > 0 {
		return message.CreatedAt[:i]
	}
	return message.CreatedAt
}
