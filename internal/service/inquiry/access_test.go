package inquiry

import (
	"testing"

	"estate-inquiries-backend/internal/model"
)

func TestResolveAccess(t *testing.T) {
	base := model.ConversationItem{
		ConversationID: "c1",
		ClientID:       "10",
		AgentID:        "20",
	}
	reassigned := base
	reassigned.OriginalAgentID = "20"
	reassigned.AgentID = "30"

	clientHidden := base
	clientHidden.HiddenFromClient = true

	oldAgentHidden := reassigned
	oldAgentHidden.HiddenFromOriginalAgent = true

	cases := []struct {
		name             string
		conv             model.ConversationItem
		viewerID         string
		viewerRole       model.Role
		adminAgencyMatch bool
		includeArchived  bool
		want             AccessLevel
	}{
		{"client party", base, "10", model.RoleClient, false, false, AccessFull},
		{"other client", base, "11", model.RoleClient, false, false, AccessNone},
		{"current agent", base, "20", model.RoleAgent, false, false, AccessFull},
		{"unrelated agent", base, "30", model.RoleAgent, false, false, AccessNone},
		{"admin same agency", base, "40", model.RoleAgencyAdmin, true, false, AccessFull},
		{"admin other agency", base, "41", model.RoleAgencyAdmin, false, false, AccessNone},
		{"new agent after transfer", reassigned, "30", model.RoleAgent, false, false, AccessFull},
		{"old agent after transfer", reassigned, "20", model.RoleAgent, false, false, AccessViewOnly},
		{"client hidden default view", clientHidden, "10", model.RoleClient, false, false, AccessNone},
		{"client hidden archived view", clientHidden, "10", model.RoleClient, false, true, AccessFull},
		{"agent unaffected by client hide", clientHidden, "20", model.RoleAgent, false, false, AccessFull},
		{"old agent hid own copy", oldAgentHidden, "20", model.RoleAgent, false, false, AccessNone},
		{"new agent unaffected by old agent hide", oldAgentHidden, "30", model.RoleAgent, false, false, AccessFull},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveAccess(tc.conv, tc.viewerID, tc.viewerRole, tc.adminAgencyMatch, tc.includeArchived)
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}
