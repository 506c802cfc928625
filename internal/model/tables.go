package model

import "fmt"

const (
	ConversationsTable = "InquiryConversations"
	MessagesTable      = "InquiryMessages"
)

func MessagePK(conversationID, messageID string) string {
	return fmt.Sprintf("%s#%s", conversationID, messageID)
}

// ThreadKey identifies the one active conversation allowed per
// (client, responsible agent, property) tuple. An empty agent or property
// slot is kept in the key so general inquiries and unassigned threads get
// their own identity.
func ThreadKey(clientID, agentID, propertyID string) string {
	return fmt.Sprintf("%s#%s#%s", clientID, agentID, propertyID)
}
