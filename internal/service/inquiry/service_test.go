package inquiry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"estate-inquiries-backend/internal/model"
)

type memoryRepository struct {
	mu            sync.Mutex
	conversations map[string]model.ConversationItem
	messages      map[string][]model.MessageItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		conversations: make(map[string]model.ConversationItem),
		messages:      make(map[string][]model.MessageItem),
	}
}

func (m *memoryRepository) CreateConversation(_ context.Context, conversation model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversation.ConversationID] = conversation
	return nil
}

func (m *memoryRepository) PutConversation(_ context.Context, conversation model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversation.ConversationID] = conversation
	return nil
}

func (m *memoryRepository) GetConversation(_ context.Context, conversationID string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return conversation, nil
}

func (m *memoryRepository) FindActiveByThreadKey(_ context.Context, threadKey string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conversation := range m.conversations {
		if conversation.ThreadKey == threadKey && !conversation.HiddenByBoth() {
			return conversation, nil
		}
	}
	return model.ConversationItem{}, ErrNotFound
}

func (m *memoryRepository) DeleteConversation(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, conversationID)
	return nil
}

func (m *memoryRepository) ListConversationsByClient(_ context.Context, clientID string) ([]model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ConversationItem
	for _, conversation := range m.conversations {
		if conversation.ClientID == clientID {
			out = append(out, conversation)
		}
	}
	return out, nil
}

func (m *memoryRepository) ListConversationsByAgent(_ context.Context, agentID string) ([]model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ConversationItem
	for _, conversation := range m.conversations {
		if conversation.AgentID == agentID || conversation.OriginalAgentID == agentID {
			out = append(out, conversation)
		}
	}
	return out, nil
}

func (m *memoryRepository) ListAllConversations(_ context.Context) ([]model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ConversationItem
	for _, conversation := range m.conversations {
		out = append(out, conversation)
	}
	return out, nil
}

func (m *memoryRepository) CreateMessage(_ context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.ConversationID] = append(m.messages[message.ConversationID], message)
	return nil
}

func (m *memoryRepository) ListMessages(_ context.Context, conversationID string) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.MessageItem, len(m.messages[conversationID]))
	copy(out, m.messages[conversationID])
	sortMessages(out)
	return out, nil
}

func (m *memoryRepository) MarkMessageRead(_ context.Context, conversationID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, message := range m.messages[conversationID] {
		if message.MessageID == messageID {
			m.messages[conversationID][i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryRepository) DeleteMessages(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, conversationID)
	return nil
}

type fakeDirectory struct {
	agencies map[string]string
	titles   map[string]string
}

func (f fakeDirectory) SameAgency(_ context.Context, adminID, agentID string) (bool, error) {
	a, okA := f.agencies[adminID]
	b, okB := f.agencies[agentID]
	return okA && okB && a == b, nil
}

func (f fakeDirectory) PropertyTitle(_ context.Context, propertyID string) (string, error) {
	title, ok := f.titles[propertyID]
	if !ok {
		return "", errors.New("property not found")
	}
	return title, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []Event
}

func (b *recordingBus) Publish(_ string, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) byType(t EventType) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc   *Service
	repo  *memoryRepository
	bus   *recordingBus
	clock *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newFixture() *fixture {
	repo := newMemoryRepository()
	bus := &recordingBus{}
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	dir := fakeDirectory{
		agencies: map[string]string{
			"20": "acme",
			"30": "acme",
			"40": "acme",
			"41": "other",
		},
		titles: map[string]string{
			"5": "Sunny Loft Downtown",
		},
	}
	return &fixture{
		svc:   NewWithRepository(repo, dir, dir, bus, clock.Now),
		repo:  repo,
		bus:   bus,
		clock: clock,
	}
}

var (
	client = Viewer{UserID: "10", Role: model.RoleClient}
	agent  = Viewer{UserID: "20", Role: model.RoleAgent}
	agent2 = Viewer{UserID: "30", Role: model.RoleAgent}
	admin  = Viewer{UserID: "40", Role: model.RoleAgencyAdmin, AgencyID: "acme"}
)

func mustCreate(t *testing.T, f *fixture) model.ConversationItem {
	t.Helper()
	result, err := f.svc.CreateConversation(context.Background(), CreateConversationParams{
		Viewer:         client,
		AgentID:        "20",
		PropertyID:     "5",
		InitialMessage: "Is the loft still available?",
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if !result.Created {
		t.Fatalf("expected a fresh conversation")
	}
	return result.Conversation
}

func TestCreateConversationIdempotentByThread(t *testing.T) {
	f := newFixture()
	first := mustCreate(t, f)

	second, err := f.svc.CreateConversation(context.Background(), CreateConversationParams{
		Viewer:         client,
		AgentID:        "20",
		PropertyID:     "5",
		InitialMessage: "Still there?",
	})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.Created {
		t.Fatalf("second create must reuse the existing conversation")
	}
	if second.Conversation.ConversationID != first.ConversationID {
		t.Fatalf("expected conversation %s, got %s", first.ConversationID, second.Conversation.ConversationID)
	}
	if second.Message == nil || second.Message.Body != "Still there?" {
		t.Fatalf("duplicate create must still deliver the composed text: %+v", second.Message)
	}

	messages, _ := f.repo.ListMessages(context.Background(), first.ConversationID)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}

	// Without a body the duplicate create is a pure find.
	third, err := f.svc.CreateConversation(context.Background(), CreateConversationParams{
		Viewer:     agent,
		ClientID:   "10",
		PropertyID: "5",
	})
	if err != nil {
		t.Fatalf("bodyless create: %v", err)
	}
	if third.Created || third.Message != nil {
		t.Fatalf("bodyless duplicate create must not append: %+v", third)
	}
	messages, _ = f.repo.ListMessages(context.Background(), first.ConversationID)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after bodyless create, got %d", len(messages))
	}

	other, err := f.svc.CreateConversation(context.Background(), CreateConversationParams{
		Viewer:         client,
		AgentID:        "20",
		PropertyID:     "6",
		InitialMessage: "What about this one?",
	})
	if err != nil {
		t.Fatalf("create for other property: %v", err)
	}
	if !other.Created {
		t.Fatalf("a different property must get its own conversation")
	}
}

func TestCreateConversationRequiresBodyFromClient(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateConversation(context.Background(), CreateConversationParams{
		Viewer:  client,
		AgentID: "20",
	})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAppendMessageAssignsSequenceAndResponseMarker(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	if conv.AgentRespondedAt != "" {
		t.Fatalf("client message must not set the agent response marker")
	}

	reply, err := f.svc.AppendMessage(context.Background(), agent, conv.ConversationID, "Yes, viewings on Saturday.")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if reply.Message.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", reply.Message.Seq)
	}
	if reply.Conversation.AgentRespondedAt == "" {
		t.Fatalf("agent reply must set the response marker")
	}
	if reply.Conversation.LastMessageText != "Yes, viewings on Saturday." {
		t.Fatalf("denormalized preview not updated: %q", reply.Conversation.LastMessageText)
	}

	created := f.bus.byType(EventMessageCreated)
	if len(created) != 2 {
		t.Fatalf("expected 2 message events, got %d", len(created))
	}
	if created[1].Message == nil || created[1].Message.MessageID != reply.Message.MessageID {
		t.Fatalf("broadcast must carry the persisted message")
	}
}

func TestMarkReadSweepIsMonotonicAndAcksOnce(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)
	if _, err := f.svc.AppendMessage(context.Background(), client, conv.ConversationID, "Any parking?"); err != nil {
		t.Fatalf("append: %v", err)
	}

	flipped, err := f.svc.MarkRead(context.Background(), agent, conv.ConversationID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if flipped != 2 {
		t.Fatalf("expected 2 flipped messages, got %d", flipped)
	}
	if acks := f.bus.byType(EventReadAck); len(acks) != 1 {
		t.Fatalf("expected exactly one read_ack, got %d", len(acks))
	}

	// A repeated sweep has nothing to flip and stays silent.
	flipped, err = f.svc.MarkRead(context.Background(), agent, conv.ConversationID)
	if err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if flipped != 0 {
		t.Fatalf("expected no-op sweep, got %d", flipped)
	}
	if acks := f.bus.byType(EventReadAck); len(acks) != 1 {
		t.Fatalf("no-op sweep must not broadcast, got %d acks", len(acks))
	}

	messages, _ := f.repo.ListMessages(context.Background(), conv.ConversationID)
	for _, message := range messages {
		if !message.Read {
			t.Fatalf("message %s must stay read", message.MessageID)
		}
	}
}

func TestMarkReadOnlyFlipsCounterpartMessages(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)
	if _, err := f.svc.AppendMessage(context.Background(), agent, conv.ConversationID, "Happy to help."); err != nil {
		t.Fatalf("append: %v", err)
	}

	// The agent's sweep leaves their own message untouched for the client.
	if _, err := f.svc.MarkRead(context.Background(), agent, conv.ConversationID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	messages, _ := f.repo.ListMessages(context.Background(), conv.ConversationID)
	if messages[1].Read {
		t.Fatalf("agent sweep must not consume the client's unread signal")
	}
	if got := UnreadCountFor(messages, model.RoleClient); got != 1 {
		t.Fatalf("client unread count = %d, want 1", got)
	}
}

func TestReassignmentFlipsVisibility(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	updated, err := f.svc.Reassign(context.Background(), admin, conv.ConversationID, "30")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if updated.AgentID != "30" || updated.OriginalAgentID != "20" {
		t.Fatalf("ownership not transferred: %+v", updated)
	}
	if !updated.Reassigned() {
		t.Fatalf("conversation must report reassigned")
	}

	// The old agent keeps the history but loses write and read-ack rights.
	if _, err := f.svc.ListMessages(context.Background(), agent, conv.ConversationID); err != nil {
		t.Fatalf("old agent must keep read access: %v", err)
	}
	_, err = f.svc.AppendMessage(context.Background(), agent, conv.ConversationID, "wait")
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeForbidden {
		t.Fatalf("old agent append should be forbidden, got %v", err)
	}
	if _, err := f.svc.MarkRead(context.Background(), agent, conv.ConversationID); err == nil {
		t.Fatalf("old agent mark read should be forbidden")
	}

	// The new owner has full access.
	if _, err := f.svc.AppendMessage(context.Background(), agent2, conv.ConversationID, "Taking over from here."); err != nil {
		t.Fatalf("new agent append: %v", err)
	}

	if events := f.bus.byType(EventReassigned); len(events) != 1 {
		t.Fatalf("expected one reassigned event, got %d", len(events))
	}
}

func TestReassignRejections(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	_, err := f.svc.Reassign(context.Background(), agent, conv.ConversationID, "30")
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeForbidden {
		t.Fatalf("non-admin reassign should be forbidden, got %v", err)
	}

	otherAdmin := Viewer{UserID: "41", Role: model.RoleAgencyAdmin, AgencyID: "other"}
	if _, err := f.svc.Reassign(context.Background(), otherAdmin, conv.ConversationID, "30"); err == nil {
		t.Fatalf("cross-agency admin reassign should fail")
	}

	if _, err := f.svc.Reassign(context.Background(), admin, conv.ConversationID, "20"); !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeConflict {
		t.Fatalf("reassigning to the current owner should conflict, got %v", err)
	}

	if _, err := f.svc.ArchiveForParty(context.Background(), agent, conv.ConversationID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := f.svc.Reassign(context.Background(), admin, conv.ConversationID, "30"); !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeConflict {
		t.Fatalf("reassigning an agent-archived conversation should conflict, got %v", err)
	}
}

func TestArchiveIsPerSideAndReversible(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	if _, err := f.svc.ArchiveForParty(context.Background(), client, conv.ConversationID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	active, err := f.svc.ListConversationsFor(context.Background(), client, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active.Conversations) != 0 {
		t.Fatalf("archived conversation must leave the default list")
	}

	archived, err := f.svc.ListConversationsFor(context.Background(), client, ListOptions{Archived: true})
	if err != nil {
		t.Fatalf("archived list: %v", err)
	}
	if len(archived.Conversations) != 1 {
		t.Fatalf("archived view must show the conversation")
	}

	// The agent's side is untouched and stays fully functional.
	agentList, err := f.svc.ListConversationsFor(context.Background(), agent, ListOptions{})
	if err != nil {
		t.Fatalf("agent list: %v", err)
	}
	if len(agentList.Conversations) != 1 {
		t.Fatalf("agent must still see the conversation")
	}
	if _, err := f.svc.AppendMessage(context.Background(), agent, conv.ConversationID, "Following up."); err != nil {
		t.Fatalf("agent append after client archive: %v", err)
	}

	if _, err := f.svc.RestoreForParty(context.Background(), client, conv.ConversationID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	active, _ = f.svc.ListConversationsFor(context.Background(), client, ListOptions{})
	if len(active.Conversations) != 1 {
		t.Fatalf("restored conversation must return to the default list")
	}
}

func TestDeleteHardRemovesOnceBothSidesHide(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	if _, err := f.svc.DeleteForParty(context.Background(), client, conv.ConversationID); err != nil {
		t.Fatalf("client delete: %v", err)
	}
	if _, err := f.repo.GetConversation(context.Background(), conv.ConversationID); err != nil {
		t.Fatalf("single-side delete must keep the record: %v", err)
	}

	if _, err := f.svc.DeleteForParty(context.Background(), agent, conv.ConversationID); err != nil {
		t.Fatalf("agent delete: %v", err)
	}
	if _, err := f.repo.GetConversation(context.Background(), conv.ConversationID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("dual delete must remove the conversation, got %v", err)
	}
	messages, _ := f.repo.ListMessages(context.Background(), conv.ConversationID)
	if len(messages) != 0 {
		t.Fatalf("dual delete must remove messages, %d left", len(messages))
	}
	if events := f.bus.byType(EventDeleted); len(events) != 1 {
		t.Fatalf("expected one deleted event, got %d", len(events))
	}

	// The identity tuple is free again: a new inquiry starts a fresh thread.
	fresh := mustCreate(t, f)
	if fresh.ConversationID == conv.ConversationID {
		t.Fatalf("deleted conversation id must not be reused")
	}
}

func TestListAnnotations(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	list, err := f.svc.ListConversationsFor(context.Background(), agent, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	summary := list.Conversations[0]
	if summary.PropertyTitle != "Sunny Loft Downtown" {
		t.Fatalf("property title = %q", summary.PropertyTitle)
	}
	if summary.Status != model.StatusNew {
		t.Fatalf("status = %s, want new", summary.Status)
	}
	if summary.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", summary.UnreadCount)
	}
	if !summary.UnreadSinceOpen {
		t.Fatalf("never-opened conversation with unread must flag unreadSinceOpen")
	}

	if _, err := f.svc.OpenConversation(context.Background(), agent, conv.ConversationID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.svc.AppendMessage(context.Background(), agent, conv.ConversationID, "Yes, it is."); err != nil {
		t.Fatalf("append: %v", err)
	}

	list, _ = f.svc.ListConversationsFor(context.Background(), agent, ListOptions{})
	summary = list.Conversations[0]
	if summary.Status != model.StatusResponded {
		t.Fatalf("status after reply = %s, want responded", summary.Status)
	}
	if summary.UnreadCount != 0 {
		t.Fatalf("unread after open = %d, want 0", summary.UnreadCount)
	}
	if summary.UnreadSinceOpen {
		t.Fatalf("nothing unread, unreadSinceOpen must be false")
	}

	// A conversation without a property degrades to the general label.
	general, err := f.svc.CreateConversation(context.Background(), CreateConversationParams{
		Viewer:         client,
		AgentID:        "20",
		InitialMessage: "Do you have anything near the park?",
	})
	if err != nil {
		t.Fatalf("general create: %v", err)
	}
	list, _ = f.svc.ListConversationsFor(context.Background(), agent, ListOptions{})
	for _, s := range list.Conversations {
		if s.Conversation.ConversationID == general.Conversation.ConversationID && s.PropertyTitle != GeneralInquiryLabel {
			t.Fatalf("general inquiry label = %q", s.PropertyTitle)
		}
	}
}

func TestOpenConversationSweepsRead(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	result, err := f.svc.OpenConversation(context.Background(), agent, conv.ConversationID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(result.Messages) != 1 || !result.Messages[0].Read {
		t.Fatalf("opening must return the post-sweep history: %+v", result.Messages)
	}
	if result.Conversation.AgentOpenedAt == "" {
		t.Fatalf("opening must record the advisory flag")
	}
	if acks := f.bus.byType(EventReadAck); len(acks) != 1 {
		t.Fatalf("open must broadcast one read_ack, got %d", len(acks))
	}
}

func TestOpenByFormerAgentKeepsOwnerUnreadSignal(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)
	if _, err := f.svc.Reassign(context.Background(), admin, conv.ConversationID, "30"); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	// The old agent may still load the history, but their open must not
	// touch the shared agent-side state.
	result, err := f.svc.OpenConversation(context.Background(), agent, conv.ConversationID)
	if err != nil {
		t.Fatalf("open by former agent: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Read {
		t.Fatalf("former agent's open must not sweep the client's message: %+v", result.Messages)
	}
	if result.Conversation.AgentOpenedAt != "" {
		t.Fatalf("former agent's open must not record the owner's opened flag")
	}

	list, err := f.svc.ListConversationsFor(context.Background(), agent2, ListOptions{})
	if err != nil {
		t.Fatalf("list for new owner: %v", err)
	}
	if len(list.Conversations) != 1 {
		t.Fatalf("new owner must see the thread, got %d", len(list.Conversations))
	}
	summary := list.Conversations[0]
	if summary.UnreadCount != 1 || !summary.UnreadSinceOpen {
		t.Fatalf("new owner's unread signal was consumed: %+v", summary)
	}
}

func TestAdminVisibilityIsAgencyScoped(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	list, err := f.svc.ListConversationsFor(context.Background(), admin, ListOptions{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(list.Conversations) != 1 {
		t.Fatalf("same-agency admin must see the conversation")
	}
	if _, err := f.svc.AppendMessage(context.Background(), admin, conv.ConversationID, "Our agent will follow up."); err != nil {
		t.Fatalf("admin append: %v", err)
	}

	outsider := Viewer{UserID: "41", Role: model.RoleAgencyAdmin, AgencyID: "other"}
	list, err = f.svc.ListConversationsFor(context.Background(), outsider, ListOptions{})
	if err != nil {
		t.Fatalf("outsider list: %v", err)
	}
	if len(list.Conversations) != 0 {
		t.Fatalf("cross-agency admin must see nothing")
	}
	if _, err := f.svc.ListMessages(context.Background(), outsider, conv.ConversationID); err == nil {
		t.Fatalf("cross-agency admin must not read the thread")
	}
}

func TestListSearchSortAndPaging(t *testing.T) {
	f := newFixture()
	for _, property := range []string{"5", "6", ""} {
		_, err := f.svc.CreateConversation(context.Background(), CreateConversationParams{
			Viewer:         client,
			AgentID:        "20",
			PropertyID:     property,
			InitialMessage: "Interested in a viewing",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	byTitle, err := f.svc.ListConversationsFor(context.Background(), agent, ListOptions{Search: "sunny loft"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(byTitle.Conversations) != 1 {
		t.Fatalf("title search matched %d, want 1", len(byTitle.Conversations))
	}

	paged, err := f.svc.ListConversationsFor(context.Background(), agent, ListOptions{PageSize: 2})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if paged.Total != 3 || len(paged.Conversations) != 2 {
		t.Fatalf("page 1: total=%d len=%d", paged.Total, len(paged.Conversations))
	}
	// Default order is most-recent activity first.
	if paged.Conversations[0].Conversation.LastMessageAt < paged.Conversations[1].Conversation.LastMessageAt {
		t.Fatalf("default sort must be newest first")
	}

	second, err := f.svc.ListConversationsFor(context.Background(), agent, ListOptions{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(second.Conversations) != 1 {
		t.Fatalf("page 2 len=%d, want 1", len(second.Conversations))
	}

	oldestFirst, err := f.svc.ListConversationsFor(context.Background(), agent, ListOptions{SortKey: "createdAt", SortAsc: true})
	if err != nil {
		t.Fatalf("sorted list: %v", err)
	}
	if oldestFirst.Conversations[0].Conversation.CreatedAt > oldestFirst.Conversations[2].Conversation.CreatedAt {
		t.Fatalf("ascending createdAt sort is out of order")
	}
}

func TestInquiryLifecycleScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Client 10 messages agent 20 about property 5.
	conv := mustCreate(t, f)
	if conv.AgentID != "20" || conv.HiddenFromClient || conv.HiddenFromAgent {
		t.Fatalf("unexpected initial state: %+v", conv)
	}

	// Agent replies: one unread for the client, none for the agent yet
	// (the agent has not swept).
	if _, err := f.svc.AppendMessage(ctx, agent, conv.ConversationID, "Yes, still listed."); err != nil {
		t.Fatalf("agent reply: %v", err)
	}
	if _, err := f.svc.MarkRead(ctx, agent, conv.ConversationID); err != nil {
		t.Fatalf("agent sweep: %v", err)
	}
	messages, _ := f.repo.ListMessages(ctx, conv.ConversationID)
	if got := UnreadCountFor(messages, model.RoleClient); got != 1 {
		t.Fatalf("client unread = %d, want 1", got)
	}
	if got := UnreadCountFor(messages, model.RoleAgent); got != 0 {
		t.Fatalf("agent unread = %d, want 0", got)
	}

	// Admin reassigns to agent 30.
	updated, err := f.svc.Reassign(ctx, admin, conv.ConversationID, "30")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if updated.OriginalAgentID != "20" || updated.AgentID != "30" {
		t.Fatalf("reassignment record: %+v", updated)
	}

	// Agent 20 can no longer post.
	_, err = f.svc.AppendMessage(ctx, agent, conv.ConversationID, "one more thing")
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeForbidden {
		t.Fatalf("old agent reply should be forbidden, got %v", err)
	}

	// Agent 20 archives the thread off their own list; agent 30 and the
	// client keep it.
	if _, err := f.svc.ArchiveForParty(ctx, agent, conv.ConversationID); err != nil {
		t.Fatalf("old agent archive: %v", err)
	}
	oldAgentList, _ := f.svc.ListConversationsFor(ctx, agent, ListOptions{})
	if len(oldAgentList.Conversations) != 0 {
		t.Fatalf("archived thread must leave the old agent's list")
	}
	newAgentList, _ := f.svc.ListConversationsFor(ctx, agent2, ListOptions{})
	if len(newAgentList.Conversations) != 1 {
		t.Fatalf("thread must stay visible to the new owner")
	}
	clientList, _ := f.svc.ListConversationsFor(ctx, client, ListOptions{})
	if len(clientList.Conversations) != 1 {
		t.Fatalf("thread must stay visible to the client")
	}
}

func TestConcurrentAppendsKeepSequenceDense(t *testing.T) {
	f := newFixture()
	conv := mustCreate(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.AppendMessage(context.Background(), client, conv.ConversationID, "ping"); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	messages, _ := f.repo.ListMessages(context.Background(), conv.ConversationID)
	if len(messages) != 9 {
		t.Fatalf("expected 9 messages, got %d", len(messages))
	}
	seen := make(map[int64]bool)
	for _, message := range messages {
		if seen[message.Seq] {
			t.Fatalf("duplicate seq %d", message.Seq)
		}
		seen[message.Seq] = true
	}
	for seq := int64(1); seq <= 9; seq++ {
		if !seen[seq] {
			t.Fatalf("missing seq %d", seq)
		}
	}
}
