package model

type ConversationStatus string

const (
	StatusNew        ConversationStatus = "new"
	StatusResponded  ConversationStatus = "responded"
	StatusReassigned ConversationStatus = "reassigned"
)

// DeriveStatus classifies a conversation for a viewer. It is the single
// status rule shared by list and detail paths: a thread reassigned away from
// the viewing agent reads as "reassigned"; otherwise an unread client
// message makes it "new" until the agent side has both replied and caught
// up, at which point it is "responded".
func DeriveStatus(conv ConversationItem, viewerID string, viewerRole Role, unreadFromClient int) ConversationStatus {
	if viewerRole == RoleAgent && conv.Reassigned() && conv.OriginalAgentID == viewerID {
		return StatusReassigned
	}
	if unreadFromClient > 0 {
		return StatusNew
	}
	if conv.AgentRespondedAt != "" {
		return StatusResponded
	}
	return StatusNew
}
