package model

type Role string

const (
	RoleClient      Role = "client"
	RoleAgent       Role = "agent"
	RoleAgencyAdmin Role = "agency_admin"
)

// Side collapses the three roles onto the two sides of a thread. Agency
// admin messages are presented as if they came from the agent side.
func (r Role) Side() Role {
	if r == RoleAgencyAdmin {
		return RoleAgent
	}
	return r
}

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient, RoleAgent, RoleAgencyAdmin:
		return Role(s), true
	}
	return "", false
}

type ConversationItem struct {
	PK                  string `dynamodbav:"pk"`
	ConversationID      string `dynamodbav:"conversationId"`
	ThreadKey           string `dynamodbav:"threadKey"`
	ClientID            string `dynamodbav:"clientId"`
	AgentID             string `dynamodbav:"agentId,omitempty"`
	AgencyAdminID       string `dynamodbav:"agencyAdminId,omitempty"`
	PropertyID          string `dynamodbav:"propertyId,omitempty"`
	LastMessageText     string `dynamodbav:"lastMessageText,omitempty"`
	LastMessageAt       string `dynamodbav:"lastMessageAt"`
	LastMessageSenderID string `dynamodbav:"lastMessageSenderId,omitempty"`
	HiddenFromClient    bool   `dynamodbav:"hiddenFromClient"`
	HiddenFromAgent     bool   `dynamodbav:"hiddenFromAgent"`
	// Set when the agent a thread was reassigned away from removes it from
	// their own list; independent of the current owner's flag.
	HiddenFromOriginalAgent bool   `dynamodbav:"hiddenFromOriginalAgent"`
	OriginalAgentID         string `dynamodbav:"originalAgentId,omitempty"`
	ReassignedByAdminID     string `dynamodbav:"reassignedByAdminId,omitempty"`
	ReassignedAt            string `dynamodbav:"reassignedAt,omitempty"`
	AgentRespondedAt        string `dynamodbav:"agentRespondedAt,omitempty"`
	ClientOpenedAt          string `dynamodbav:"clientOpenedAt,omitempty"`
	AgentOpenedAt           string `dynamodbav:"agentOpenedAt,omitempty"`
	MessageCount            int64  `dynamodbav:"messageCount"`
	CreatedAt               string `dynamodbav:"createdAt"`
	UpdatedAt               string `dynamodbav:"updatedAt"`
}

// HiddenFor reports the soft-delete flag for the given role's side of the
// thread. The flags are independent; a conversation hidden by one party
// stays fully functional for the other.
func (c ConversationItem) HiddenFor(role Role) bool {
	if role.Side() == RoleClient {
		return c.HiddenFromClient
	}
	return c.HiddenFromAgent
}

// HiddenForViewer is HiddenFor with one refinement: a reassigned-away
// agent has their own flag, so archiving the thread off their list never
// hides it from the current owner.
func (c ConversationItem) HiddenForViewer(viewerID string, role Role) bool {
	if role.Side() == RoleClient {
		return c.HiddenFromClient
	}
	if role == RoleAgent && c.Reassigned() && c.OriginalAgentID == viewerID {
		return c.HiddenFromOriginalAgent
	}
	return c.HiddenFromAgent
}

func (c ConversationItem) HiddenByBoth() bool {
	return c.HiddenFromClient && c.HiddenFromAgent
}

// Reassigned reports whether an admin has transferred ownership away from
// the original agent.
func (c ConversationItem) Reassigned() bool {
	return c.OriginalAgentID != "" && c.OriginalAgentID != c.AgentID
}

type MessageItem struct {
	PK             string `dynamodbav:"pk"`
	ConversationID string `dynamodbav:"conversationId"`
	MessageID      string `dynamodbav:"messageId"`
	SenderID       string `dynamodbav:"senderId"`
	SenderRole     Role   `dynamodbav:"senderRole"`
	Body           string `dynamodbav:"body"`
	Seq            int64  `dynamodbav:"seq"`
	Read           bool   `dynamodbav:"read"`
	CreatedAt      string `dynamodbav:"createdAt"`
}
