package router

import (
	"net/http"
	"strings"

	"estate-inquiries-backend/internal/api"
	"estate-inquiries-backend/internal/api/endpoints"
	"estate-inquiries-backend/internal/api/middleware"
	"estate-inquiries-backend/internal/directory"
	"estate-inquiries-backend/internal/env"
	"estate-inquiries-backend/internal/service/inquiry"
	"estate-inquiries-backend/internal/websocket"
)

func newInquiryService(s *api.APIServer) *inquiry.Service {
	return inquiry.New(
		s.Database(),
		directory.NewAgencyClient(env.MustGet(env.AgencyDirectoryURL)),
		directory.NewPropertyClient(env.MustGet(env.PropertyDirectoryURL)),
		websocket.EventBus{},
	)
}

func InquiryRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := newInquiryService(s)
		base := strings.TrimRight(prefix, "/")
		paths := endpoints.InquiryPaths{
			ConversationsPath:  base + "/conversations",
			ConversationPrefix: base + "/conversations/",
		}
		inquiryEndpoints := endpoints.NewInquiryEndpointsWithPaths(service, s.Handler(), paths)

		mux.HandleFunc(base+"/conversations", s.MakeHTTPHandleFunc(inquiryEndpoints.Conversations, middleware.ValidateSessionJWT))
		mux.HandleFunc(base+"/conversations/", s.MakeHTTPHandleFunc(inquiryEndpoints.Conversation, middleware.ValidateSessionJWT))
	}
}

func InquiryWebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := newInquiryService(s)
		base := strings.TrimRight(prefix, "/")
		paths := endpoints.InquiryPaths{
			WebsocketPrefix: base + "/conversations/",
		}
		inquiryEndpoints := endpoints.NewInquiryEndpointsWithPaths(service, s.Handler(), paths)

		// The socket upgrade authenticates via the token query parameter;
		// browsers cannot set headers on websocket requests.
		mux.HandleFunc(base+"/conversations/", s.MakeHTTPHandleFunc(inquiryEndpoints.Websocket))

		// Debug surface: the conversations with live rooms on this node.
		if handler := s.Handler(); handler != nil {
			mux.HandleFunc(base+"/rooms", handler.GetRooms)
		}
	}
}
