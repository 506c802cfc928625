package dto

type ConversationMetadata struct {
	ConversationID  string `json:"conversationId"`
	ClientID        string `json:"clientId"`
	AgentID         string `json:"agentId,omitempty"`
	PropertyID      string `json:"propertyId,omitempty"`
	PropertyTitle   string `json:"propertyTitle"`
	Status          string `json:"status"`
	Access          string `json:"access"`
	UnreadCount     int    `json:"unreadCount"`
	UnreadSinceOpen bool   `json:"unreadSinceOpen"`
	LastMessageText string `json:"lastMessageText,omitempty"`
	LastMessageAt   string `json:"lastMessageAt"`
	Reassigned      bool   `json:"reassigned"`
	OriginalAgentID string `json:"originalAgentId,omitempty"`
	Archived        bool   `json:"archived"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

type MessageResponse struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	SenderRole     string `json:"senderRole"`
	Body           string `json:"body"`
	Seq            int64  `json:"seq"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"createdAt"`
}

type CreateConversationRequest struct {
	AgentID    string `json:"agentId,omitempty"`
	PropertyID string `json:"propertyId,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
	Message    string `json:"message,omitempty"`
}

type CreateConversationResponse struct {
	Conversation ConversationMetadata `json:"conversation"`
	Message      *MessageResponse     `json:"message,omitempty"`
	Created      bool                 `json:"created"`
}

type PostMessageRequest struct {
	Body string `json:"body"`
}

type PostMessageResponse struct {
	Conversation ConversationMetadata `json:"conversation"`
	Message      MessageResponse      `json:"message"`
}

type ListConversationsResponse struct {
	Conversations []ConversationMetadata `json:"conversations"`
	Total         int                    `json:"total"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"pageSize"`
}

type ListMessagesResponse struct {
	Conversation ConversationMetadata `json:"conversation"`
	Messages     []MessageResponse    `json:"messages"`
}

type MarkReadResponse struct {
	MarkedRead int `json:"markedRead"`
}

type ReassignRequest struct {
	NewAgentID string `json:"newAgentId"`
}
