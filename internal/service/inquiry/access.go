package inquiry

import (
	"estate-inquiries-backend/internal/model"
)

type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessViewOnly
	AccessFull
)

func (a AccessLevel) String() string {
	switch a {
	case AccessViewOnly:
		return "view_only"
	case AccessFull:
		return "full"
	}
	return "none"
}

// ResolveAccess decides what a viewer may do with a conversation. It is a
// pure function applied on both the list path and every mutation; the
// agency-membership check for admins happens outside and arrives as
// adminAgencyMatch.
//
// Rules, in order:
//  1. hidden-from-self makes the conversation invisible unless the viewer
//     explicitly asked for the archived view (includeArchived), in which
//     case it stays read-write so it can be restored;
//  2. the client party has full access;
//  3. an agency admin whose agency matches the current agent's agency has
//     full access;
//  4. the current (post-reassignment) agent has full access;
//  5. the agent a conversation was reassigned away from keeps read-only
//     access: no sending, no consuming the client's unread signal, but the
//     thread can still be archived off their own list without touching the
//     current owner's visibility.
func ResolveAccess(conv model.ConversationItem, viewerID string, viewerRole model.Role, adminAgencyMatch bool, includeArchived bool) AccessLevel {
	if conv.HiddenForViewer(viewerID, viewerRole) && !includeArchived {
		return AccessNone
	}

	switch viewerRole {
	case model.RoleClient:
		if viewerID == conv.ClientID {
			return AccessFull
		}
	case model.RoleAgencyAdmin:
		if adminAgencyMatch {
			return AccessFull
		}
	case model.RoleAgent:
		if conv.AgentID != "" && viewerID == conv.AgentID {
			return AccessFull
		}
		if conv.OriginalAgentID == viewerID && conv.AgentID != viewerID {
			return AccessViewOnly
		}
	}
	return AccessNone
}
