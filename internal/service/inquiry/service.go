package inquiry

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"estate-inquiries-backend/internal/database"
	"estate-inquiries-backend/internal/model"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeConflict     ErrorCode = "conflict"
	ErrorCodeUnavailable  ErrorCode = "unavailable"
	ErrorCodeInternal     ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Viewer is the verified identity a collaborator hands to every operation.
// The core trusts it and performs no authentication itself.
type Viewer struct {
	UserID   string
	Role     model.Role
	AgencyID string
}

// AgencyDirectory answers "does this admin's agency employ that agent".
// Backed by the marketplace's agency membership service.
type AgencyDirectory interface {
	SameAgency(ctx context.Context, adminID, agentID string) (bool, error)
}

// PropertyDirectory resolves property titles for display. A missing
// property must degrade to the general-inquiry label, never an error.
type PropertyDirectory interface {
	PropertyTitle(ctx context.Context, propertyID string) (string, error)
}

const GeneralInquiryLabel = "General Inquiry"

type CreateConversationParams struct {
	Viewer         Viewer
	ClientID       string
	AgentID        string
	PropertyID     string
	InitialMessage string
}

type CreateConversationResult struct {
	Conversation model.ConversationItem
	Message      *model.MessageItem
	Created      bool
}

type MessageResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
}

type ListOptions struct {
	Archived bool
	Search   string
	SortKey  string
	SortAsc  bool
	Page     int
	PageSize int
}

type ConversationSummary struct {
	Conversation    model.ConversationItem
	PropertyTitle   string
	Status          model.ConversationStatus
	Access          AccessLevel
	UnreadCount     int
	UnreadSinceOpen bool
}

type ListConversationsResult struct {
	Conversations []ConversationSummary
	Total         int
	Page          int
	PageSize      int
}

type ListMessagesResult struct {
	Conversation model.ConversationItem
	Messages     []model.MessageItem
	Access       AccessLevel
}

type Service struct {
	repo       Repository
	agencies   AgencyDirectory
	properties PropertyDirectory
	bus        Publisher
	locks      *keyedMutex
	now        func() time.Time
}

func New(db *database.Database, agencies AgencyDirectory, properties PropertyDirectory, bus Publisher) *Service {
	return NewWithRepository(NewDynamoRepository(db), agencies, properties, bus, time.Now)
}

func NewWithRepository(repo Repository, agencies AgencyDirectory, properties PropertyDirectory, bus Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if bus == nil {
		bus = NopPublisher{}
	}
	return &Service{
		repo:       repo,
		agencies:   agencies,
		properties: properties,
		bus:        bus,
		locks:      newKeyedMutex(),
		now:        now,
	}
}

// CreateConversation creates the conversation for the given identity tuple,
// or returns the existing active one (idempotent by identity: the domain
// must not fork a second thread for the same client/agent/property triple).
func (s *Service) CreateConversation(ctx context.Context, params CreateConversationParams) (CreateConversationResult, error) {
	viewer := params.Viewer
	if viewer.UserID == "" {
		return CreateConversationResult{}, newError(ErrorCodeUnauthorized, "invalid identity", nil)
	}

	clientID := strings.TrimSpace(params.ClientID)
	agentID := strings.TrimSpace(params.AgentID)
	propertyID := strings.TrimSpace(params.PropertyID)
	body := strings.TrimSpace(params.InitialMessage)

	switch viewer.Role {
	case model.RoleClient:
		clientID = viewer.UserID
	case model.RoleAgent:
		if agentID == "" {
			agentID = viewer.UserID
		}
	case model.RoleAgencyAdmin:
		// Admin-initiated general inquiries need an explicit agent.
	default:
		return CreateConversationResult{}, newError(ErrorCodeUnauthorized, "unknown role", nil)
	}

	if clientID == "" {
		return CreateConversationResult{}, newError(ErrorCodeValidation, "clientId is required", nil)
	}
	if viewer.Role == model.RoleClient && body == "" {
		return CreateConversationResult{}, newError(ErrorCodeValidation, "message body is required", nil)
	}

	threadKey := model.ThreadKey(clientID, agentID, propertyID)

	unlock := s.locks.Lock(threadKey)
	defer unlock()

	if existing, err := s.repo.FindActiveByThreadKey(ctx, threadKey); err == nil {
		result := CreateConversationResult{Conversation: existing, Created: false}
		// A duplicate create still delivers the composed text; dropping it
		// would force the sender to retype on retry.
		if body != "" {
			access, err := s.accessFor(ctx, existing, viewer, false)
			if err != nil {
				return CreateConversationResult{}, err
			}
			if access != AccessFull {
				return CreateConversationResult{}, newError(ErrorCodeForbidden, "viewer may not post to this conversation", nil)
			}
			unlockConv := s.locks.Lock(existing.ConversationID)
			message, updated, err := s.appendLocked(ctx, existing, viewer, body)
			unlockConv()
			if err != nil {
				return CreateConversationResult{}, err
			}
			result.Conversation = updated
			result.Message = &message
		}
		return result, nil
	} else if !errors.Is(err, ErrNotFound) {
		return CreateConversationResult{}, newError(ErrorCodeUnavailable, "failed to look up conversation", err)
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	conversation := model.ConversationItem{
		PK:            uuid.NewString(),
		ThreadKey:     threadKey,
		ClientID:      clientID,
		AgentID:       agentID,
		PropertyID:    propertyID,
		LastMessageAt: nowStr,
		CreatedAt:     nowStr,
		UpdatedAt:     nowStr,
	}
	conversation.ConversationID = conversation.PK

	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return CreateConversationResult{}, newError(ErrorCodeUnavailable, "failed to create conversation", err)
	}
	conversationsCreated.Inc()

	result := CreateConversationResult{Conversation: conversation, Created: true}

	if body != "" {
		message, updated, err := s.appendLocked(ctx, conversation, viewer, body)
		if err != nil {
			return CreateConversationResult{}, err
		}
		result.Conversation = updated
		result.Message = &message
	}

	return result, nil
}

// AppendMessage persists a message from a current party of the
// conversation. A reassigned-away agent holds ViewOnly access and is
// rejected with a forbidden error.
func (s *Service) AppendMessage(ctx context.Context, viewer Viewer, conversationID, body string) (MessageResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	body = strings.TrimSpace(body)

	if viewer.UserID == "" {
		return MessageResult{}, newError(ErrorCodeUnauthorized, "invalid identity", nil)
	}
	if conversationID == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if body == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "message body is required", nil)
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return MessageResult{}, err
	}

	access, err := s.accessFor(ctx, conversation, viewer, false)
	if err != nil {
		return MessageResult{}, err
	}
	if access != AccessFull {
		return MessageResult{}, newError(ErrorCodeForbidden, "not a current party of this conversation", nil)
	}

	message, updated, err := s.appendLocked(ctx, conversation, viewer, body)
	if err != nil {
		return MessageResult{}, err
	}

	return MessageResult{Conversation: updated, Message: message}, nil
}

// appendLocked writes the message and the denormalized conversation fields.
// Callers hold the conversation lock.
func (s *Service) appendLocked(ctx context.Context, conversation model.ConversationItem, sender Viewer, body string) (model.MessageItem, model.ConversationItem, error) {
	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	messageID := uuid.NewString()
	message := model.MessageItem{
		PK:             model.MessagePK(conversation.ConversationID, messageID),
		ConversationID: conversation.ConversationID,
		MessageID:      messageID,
		SenderID:       sender.UserID,
		SenderRole:     sender.Role,
		Body:           body,
		Seq:            conversation.MessageCount + 1,
		Read:           false,
		CreatedAt:      nowStr,
	}

	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return model.MessageItem{}, model.ConversationItem{}, newError(ErrorCodeUnavailable, "failed to store message", err)
	}
	messagesAppended.Inc()

	conversation.MessageCount = message.Seq
	conversation.LastMessageText = body
	conversation.LastMessageAt = nowStr
	conversation.LastMessageSenderID = sender.UserID
	conversation.UpdatedAt = nowStr
	if sender.Role.Side() == model.RoleAgent && conversation.AgentRespondedAt == "" {
		conversation.AgentRespondedAt = nowStr
	}

	if err := s.repo.PutConversation(ctx, conversation); err != nil {
		return model.MessageItem{}, model.ConversationItem{}, newError(ErrorCodeUnavailable, "failed to update conversation", err)
	}

	s.publish(conversation.ConversationID, Event{
		Type:           EventMessageCreated,
		ConversationID: conversation.ConversationID,
		Message:        &message,
	})

	return message, conversation, nil
}

// ListConversationsFor returns the page of conversations visible to the
// viewer, each annotated with unread count, derived status and property
// label.
func (s *Service) ListConversationsFor(ctx context.Context, viewer Viewer, opts ListOptions) (ListConversationsResult, error) {
	if viewer.UserID == "" {
		return ListConversationsResult{}, newError(ErrorCodeUnauthorized, "invalid identity", nil)
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 25
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}

	var candidates []model.ConversationItem
	var err error
	switch viewer.Role {
	case model.RoleClient:
		candidates, err = s.repo.ListConversationsByClient(ctx, viewer.UserID)
	case model.RoleAgent:
		candidates, err = s.repo.ListConversationsByAgent(ctx, viewer.UserID)
	case model.RoleAgencyAdmin:
		candidates, err = s.repo.ListAllConversations(ctx)
	default:
		return ListConversationsResult{}, newError(ErrorCodeUnauthorized, "unknown role", nil)
	}
	if err != nil {
		return ListConversationsResult{}, newError(ErrorCodeUnavailable, "failed to list conversations", err)
	}

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	summaries := make([]ConversationSummary, 0, len(candidates))
	for _, conversation := range candidates {
		access, err := s.accessFor(ctx, conversation, viewer, opts.Archived)
		if err != nil {
			return ListConversationsResult{}, err
		}
		if access == AccessNone {
			continue
		}
		// The archived view shows archived threads only; the default view
		// hides them.
		if conversation.HiddenForViewer(viewer.UserID, viewer.Role) != opts.Archived {
			continue
		}

		summary, err := s.summarize(ctx, conversation, viewer, access)
		if err != nil {
			return ListConversationsResult{}, err
		}

		if search != "" &&
			!strings.Contains(strings.ToLower(summary.PropertyTitle), search) &&
			!strings.Contains(strings.ToLower(conversation.LastMessageText), search) {
			continue
		}

		summaries = append(summaries, summary)
	}

	sortSummaries(summaries, opts.SortKey, opts.SortAsc)

	total := len(summaries)
	start := (opts.Page - 1) * opts.PageSize
	if start > total {
		start = total
	}
	end := start + opts.PageSize
	if end > total {
		end = total
	}

	return ListConversationsResult{
		Conversations: summaries[start:end],
		Total:         total,
		Page:          opts.Page,
		PageSize:      opts.PageSize,
	}, nil
}

// ListMessages returns the full ordered history for any viewer the
// resolver lets in, including ViewOnly.
func (s *Service) ListMessages(ctx context.Context, viewer Viewer, conversationID string) (ListMessagesResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return ListMessagesResult{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return ListMessagesResult{}, err
	}

	access, err := s.accessFor(ctx, conversation, viewer, true)
	if err != nil {
		return ListMessagesResult{}, err
	}
	if access == AccessNone {
		return ListMessagesResult{}, newError(ErrorCodeForbidden, "conversation is not visible to this viewer", nil)
	}

	messages, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return ListMessagesResult{}, newError(ErrorCodeUnavailable, "failed to list messages", err)
	}

	return ListMessagesResult{
		Conversation: conversation,
		Messages:     messages,
		Access:       access,
	}, nil
}

// MarkRead sweeps every unread message from the other side. It is a no-op
// when nothing is unread. The sweep holds the conversation lock so a
// message appended after the sweep snapshot is never retroactively marked.
// Each sweep that flips at least one message broadcasts exactly one
// read-acknowledgement.
func (s *Service) MarkRead(ctx context.Context, viewer Viewer, conversationID string) (int, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return 0, newError(ErrorCodeValidation, "conversationId is required", nil)
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}

	access, err := s.accessFor(ctx, conversation, viewer, false)
	if err != nil {
		return 0, err
	}
	// A reassigned-away agent must not consume the client's unread signal
	// intended for the new owner.
	if access != AccessFull {
		return 0, newError(ErrorCodeForbidden, "viewer may not mark this conversation read", nil)
	}

	messages, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return 0, newError(ErrorCodeUnavailable, "failed to list messages", err)
	}

	side := viewer.Role.Side()
	flipped := 0
	for _, message := range messages {
		if message.SenderRole.Side() == side || message.Read {
			continue
		}
		if err := s.repo.MarkMessageRead(ctx, conversationID, message.MessageID); err != nil {
			return flipped, newError(ErrorCodeUnavailable, "failed to mark message read", err)
		}
		flipped++
	}

	if flipped > 0 {
		readSweeps.Inc()
		s.publish(conversationID, Event{
			Type:           EventReadAck,
			ConversationID: conversationID,
			Role:           side,
			UserID:         viewer.UserID,
		})
	}

	return flipped, nil
}

// MarkOpened records the advisory "the party has viewed the thread UI at
// least once" flag. It is distinct from the message-level read sweep.
func (s *Service) MarkOpened(ctx context.Context, viewer Viewer, conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return newError(ErrorCodeValidation, "conversationId is required", nil)
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	access, err := s.accessFor(ctx, conversation, viewer, true)
	if err != nil {
		return err
	}
	// The opened flag belongs to the thread's current parties. A
	// reassigned-away agent shares the agent-side field, so letting them
	// write it would suppress the new owner's unread-since-open signal.
	if access != AccessFull {
		return newError(ErrorCodeForbidden, "viewer may not mark this conversation opened", nil)
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	if viewer.Role.Side() == model.RoleClient {
		conversation.ClientOpenedAt = nowStr
	} else {
		conversation.AgentOpenedAt = nowStr
	}
	conversation.UpdatedAt = nowStr

	if err := s.repo.PutConversation(ctx, conversation); err != nil {
		return newError(ErrorCodeUnavailable, "failed to update conversation", err)
	}
	return nil
}

// OpenConversation is the one rule collapsing the opened/read ambiguity:
// opening a thread records the advisory flag and always triggers the read
// sweep, then returns the post-sweep history. The two underlying writes
// stay separate operations so a crash between them under-counts correctly
// on reload.
func (s *Service) OpenConversation(ctx context.Context, viewer Viewer, conversationID string) (ListMessagesResult, error) {
	// The opened/read writes are advisory and forbidden to ViewOnly
	// openers: suppress those failures so the history still loads.
	// ListMessages stays the visibility gate.
	if err := s.MarkOpened(ctx, viewer, conversationID); err != nil && !advisoryError(err) {
		return ListMessagesResult{}, err
	}

	if _, err := s.MarkRead(ctx, viewer, conversationID); err != nil && !advisoryError(err) {
		return ListMessagesResult{}, err
	}

	return s.ListMessages(ctx, viewer, conversationID)
}

func advisoryError(err error) bool {
	var svcErr *Error
	return errors.As(err, &svcErr) && (svcErr.Code == ErrorCodeForbidden || svcErr.Code == ErrorCodeUnavailable)
}

// ArchiveForParty sets the viewer side's hidden flag. The conversation
// stays fully functional for the other party.
func (s *Service) ArchiveForParty(ctx context.Context, viewer Viewer, conversationID string) (model.ConversationItem, error) {
	return s.setHidden(ctx, viewer, conversationID, true, false)
}

// RestoreForParty clears the viewer side's hidden flag, returning the
// conversation to its pre-archive visibility.
func (s *Service) RestoreForParty(ctx context.Context, viewer Viewer, conversationID string) (model.ConversationItem, error) {
	return s.setHidden(ctx, viewer, conversationID, false, false)
}

// DeleteForParty hides the conversation for the viewer's side; once both
// sides have hidden it, the conversation and its messages are permanently
// removed.
func (s *Service) DeleteForParty(ctx context.Context, viewer Viewer, conversationID string) (model.ConversationItem, error) {
	return s.setHidden(ctx, viewer, conversationID, true, true)
}

func (s *Service) setHidden(ctx context.Context, viewer Viewer, conversationID string, hidden, hardDeleteWhenBothHidden bool) (model.ConversationItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return model.ConversationItem{}, err
	}

	access, err := s.accessFor(ctx, conversation, viewer, true)
	if err != nil {
		return model.ConversationItem{}, err
	}
	// ViewOnly still permits removing the thread from one's own list.
	if access == AccessNone {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "conversation is not visible to this viewer", nil)
	}

	side := viewer.Role.Side()
	switch {
	case side == model.RoleClient:
		conversation.HiddenFromClient = hidden
	case viewer.Role == model.RoleAgent && conversation.Reassigned() && conversation.OriginalAgentID == viewer.UserID:
		// A reassigned-away agent only clears their own list; the current
		// owner keeps the thread.
		conversation.HiddenFromOriginalAgent = hidden
	default:
		conversation.HiddenFromAgent = hidden
	}

	if hidden && hardDeleteWhenBothHidden && conversation.HiddenByBoth() {
		if err := s.repo.DeleteMessages(ctx, conversationID); err != nil {
			return model.ConversationItem{}, newError(ErrorCodeUnavailable, "failed to delete messages", err)
		}
		if err := s.repo.DeleteConversation(ctx, conversationID); err != nil {
			return model.ConversationItem{}, newError(ErrorCodeUnavailable, "failed to delete conversation", err)
		}
		hardDeletes.Inc()
		s.publish(conversationID, Event{
			Type:           EventDeleted,
			ConversationID: conversationID,
		})
		return conversation, nil
	}

	conversation.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := s.repo.PutConversation(ctx, conversation); err != nil {
		return model.ConversationItem{}, newError(ErrorCodeUnavailable, "failed to update conversation", err)
	}

	if hidden {
		s.publish(conversationID, Event{
			Type:           EventArchived,
			ConversationID: conversationID,
			Role:           side,
			UserID:         viewer.UserID,
		})
	}

	return conversation, nil
}

// Reassign transfers ownership to another agent in the admin's agency. The
// original agent keeps ViewOnly access to the history.
func (s *Service) Reassign(ctx context.Context, viewer Viewer, conversationID, newAgentID string) (model.ConversationItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	newAgentID = strings.TrimSpace(newAgentID)

	if viewer.Role != model.RoleAgencyAdmin {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "only an agency admin may reassign", nil)
	}
	if conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if newAgentID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "newAgentId is required", nil)
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return model.ConversationItem{}, err
	}

	access, err := s.accessFor(ctx, conversation, viewer, false)
	if err != nil {
		return model.ConversationItem{}, err
	}
	if access != AccessFull {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "admin does not manage this conversation's agent", nil)
	}

	sameAgency, err := s.agencies.SameAgency(ctx, viewer.UserID, newAgentID)
	if err != nil {
		return model.ConversationItem{}, newError(ErrorCodeUnavailable, "failed to check agency membership", err)
	}
	if !sameAgency {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "target agent is outside the admin's agency", nil)
	}

	if conversation.HiddenFromAgent {
		return model.ConversationItem{}, newError(ErrorCodeConflict, "conversation is archived on the agent side", nil)
	}
	if conversation.AgentID == newAgentID {
		return model.ConversationItem{}, newError(ErrorCodeConflict, "conversation already belongs to this agent", nil)
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	if conversation.OriginalAgentID == "" {
		conversation.OriginalAgentID = conversation.AgentID
	}
	conversation.AgentID = newAgentID
	conversation.AgencyAdminID = viewer.UserID
	conversation.ReassignedByAdminID = viewer.UserID
	conversation.ReassignedAt = nowStr
	conversation.UpdatedAt = nowStr
	// The identity tuple follows the responsible agent.
	conversation.ThreadKey = model.ThreadKey(conversation.ClientID, conversation.AgentID, conversation.PropertyID)

	if err := s.repo.PutConversation(ctx, conversation); err != nil {
		return model.ConversationItem{}, newError(ErrorCodeUnavailable, "failed to update conversation", err)
	}
	reassignments.Inc()

	s.publish(conversationID, Event{
		Type:           EventReassigned,
		ConversationID: conversationID,
		UserID:         viewer.UserID,
	})

	return conversation, nil
}

// AccessTo resolves the viewer's access level for a single conversation,
// for callers that gate transport membership (websocket join).
func (s *Service) AccessTo(ctx context.Context, viewer Viewer, conversationID string) (AccessLevel, error) {
	conversation, err := s.getConversation(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return AccessNone, err
	}
	return s.accessFor(ctx, conversation, viewer, true)
}

// UnreadCountFor counts messages from the other side of the thread that
// the given role has not read yet.
func UnreadCountFor(messages []model.MessageItem, role model.Role) int {
	side := role.Side()
	count := 0
	for _, message := range messages {
		if message.SenderRole.Side() != side && !message.Read {
			count++
		}
	}
	return count
}

func (s *Service) getConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeUnavailable, "failed to fetch conversation", err)
	}
	return conversation, nil
}

func (s *Service) accessFor(ctx context.Context, conversation model.ConversationItem, viewer Viewer, includeArchived bool) (AccessLevel, error) {
	adminAgencyMatch := false
	if viewer.Role == model.RoleAgencyAdmin && conversation.AgentID != "" {
		match, err := s.agencies.SameAgency(ctx, viewer.UserID, conversation.AgentID)
		if err != nil {
			return AccessNone, newError(ErrorCodeUnavailable, "failed to check agency membership", err)
		}
		adminAgencyMatch = match
	}
	return ResolveAccess(conversation, viewer.UserID, viewer.Role, adminAgencyMatch, includeArchived), nil
}

func (s *Service) summarize(ctx context.Context, conversation model.ConversationItem, viewer Viewer, access AccessLevel) (ConversationSummary, error) {
	messages, err := s.repo.ListMessages(ctx, conversation.ConversationID)
	if err != nil {
		return ConversationSummary{}, newError(ErrorCodeUnavailable, "failed to list messages", err)
	}

	unread := UnreadCountFor(messages, viewer.Role)
	unreadFromClient := 0
	for _, message := range messages {
		if message.SenderRole.Side() == model.RoleClient && !message.Read {
			unreadFromClient++
		}
	}

	return ConversationSummary{
		Conversation:    conversation,
		PropertyTitle:   s.propertyLabel(ctx, conversation.PropertyID),
		Status:          model.DeriveStatus(conversation, viewer.UserID, viewer.Role, unreadFromClient),
		Access:          access,
		UnreadCount:     unread,
		UnreadSinceOpen: unreadSinceOpen(conversation, messages, viewer.Role),
	}, nil
}

func (s *Service) propertyLabel(ctx context.Context, propertyID string) string {
	if propertyID == "" {
		return GeneralInquiryLabel
	}
	title, err := s.properties.PropertyTitle(ctx, propertyID)
	if err != nil || title == "" {
		// A missing property degrades to the general label, never an error.
		return GeneralInquiryLabel
	}
	return title
}

func unreadSinceOpen(conversation model.ConversationItem, messages []model.MessageItem, role model.Role) bool {
	openedAt := conversation.AgentOpenedAt
	if role.Side() == model.RoleClient {
		openedAt = conversation.ClientOpenedAt
	}

	side := role.Side()
	for _, message := range messages {
		if message.SenderRole.Side() == side || message.Read {
			continue
		}
		if openedAt == "" || message.CreatedAt > openedAt {
			return true
		}
	}
	return false
}

func sortSummaries(summaries []ConversationSummary, sortKey string, asc bool) {
	key := func(s ConversationSummary) string {
		switch sortKey {
		case "createdAt":
			return s.Conversation.CreatedAt
		default:
			return s.Conversation.LastMessageAt
		}
	}
	less := func(i, j int) bool {
		a, b := key(summaries[i]), key(summaries[j])
		if a != b {
			if asc {
				return a < b
			}
			return a > b
		}
		return summaries[i].Conversation.ConversationID < summaries[j].Conversation.ConversationID
	}
	sort.SliceStable(summaries, less)
}

func (s *Service) publish(conversationID string, event Event) {
	if err := s.bus.Publish(conversationID, event); err != nil {
		// Best effort: the store is authoritative, delivery failures only
		// cost latency until the next fetch.
		log.Printf("inquiry: broadcast %s for conversation %s failed: %v", event.Type, conversationID, err)
	}
}
