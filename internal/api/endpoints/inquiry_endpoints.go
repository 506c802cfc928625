package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"estate-inquiries-backend/internal/api"
	"estate-inquiries-backend/internal/dto"
	internaljwt "estate-inquiries-backend/internal/jwt"
	"estate-inquiries-backend/internal/model"
	"estate-inquiries-backend/internal/service/inquiry"
	"estate-inquiries-backend/internal/websocket"
)

type InquiryEndpoints interface {
	Conversations(http.ResponseWriter, *http.Request) error
	Conversation(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
}

type InquiryPaths struct {
	ConversationsPath  string
	ConversationPrefix string
	WebsocketPrefix    string
}

type inquiryEndpoints struct {
	service *inquiry.Service
	handler *websocket.Handler
	paths   InquiryPaths
}

func NewInquiryEndpoints(service *inquiry.Service, handler *websocket.Handler, prefix string) InquiryEndpoints {
	base := strings.TrimRight(prefix, "/")
	return NewInquiryEndpointsWithPaths(service, handler, InquiryPaths{
		ConversationsPath:  base + "/conversations",
		ConversationPrefix: base + "/conversations/",
		WebsocketPrefix:    base + "/ws/conversations/",
	})
}

func NewInquiryEndpointsWithPaths(service *inquiry.Service, handler *websocket.Handler, paths InquiryPaths) InquiryEndpoints {
	return &inquiryEndpoints{
		service: service,
		handler: handler,
		paths:   paths,
	}
}

func (h *inquiryEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleListConversations,
		http.MethodPost: h.handleCreateConversation,
	})
}

// Conversation dispatches /conversations/{id} and its sub-resources.
func (h *inquiryEndpoints) Conversation(w http.ResponseWriter, r *http.Request) error {
	conversationID, action, err := h.extractConversationPath(r.URL.Path)
	if err != nil {
		return err
	}

	switch action {
	case "":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:    h.withConversation(conversationID, h.handleListMessages),
			http.MethodDelete: h.withConversation(conversationID, h.handleDelete),
		})
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.withConversation(conversationID, h.handleListMessages),
			http.MethodPost: h.withConversation(conversationID, h.handlePostMessage),
		})
	case "read":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.withConversation(conversationID, h.handleMarkRead),
		})
	case "open":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.withConversation(conversationID, h.handleOpen),
		})
	case "archive":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.withConversation(conversationID, h.handleArchive),
		})
	case "restore":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.withConversation(conversationID, h.handleRestore),
		})
	case "reassign":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.withConversation(conversationID, h.handleReassign),
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown conversation action: %s", action),
		}
	}
}

// Websocket joins the viewer to a conversation's broadcast group after the
// resolver confirms the thread is visible to them.
func (h *inquiryEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	if h.handler == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Websocket not available",
			ErrorLog:   fmt.Errorf("websocket handler missing"),
		}
	}

	prefix := h.paths.WebsocketPrefix
	if prefix == "" {
		return &HTTPError{StatusCode: http.StatusNotFound, Message: "Websocket not configured", ErrorLog: fmt.Errorf("websocket prefix not configured")}
	}
	conversationID := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if conversationID == "" || strings.Contains(conversationID, "/") {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Conversation not found",
			ErrorLog:   fmt.Errorf("websocket conversation id invalid: %s", r.URL.Path),
		}
	}

	viewer, err := h.viewerFromRequest(r)
	if err != nil {
		return err
	}

	access, err := h.service.AccessTo(r.Context(), viewer, conversationID)
	if err != nil {
		return h.serviceError(err)
	}
	if access == inquiry.AccessNone {
		return &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Conversation is not visible to this viewer",
			ErrorLog:   fmt.Errorf("websocket join denied for %s on %s", viewer.UserID, conversationID),
		}
	}

	h.handler.JoinRoom(w, r, conversationID, viewer.UserID)
	return nil
}

func (h *inquiryEndpoints) handleCreateConversation(w http.ResponseWriter, r *http.Request) error {
	viewer, err := h.viewerFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create conversation request: %w", err),
		}
	}

	result, err := h.service.CreateConversation(r.Context(), inquiry.CreateConversationParams{
		Viewer:         viewer,
		ClientID:       req.ClientID,
		AgentID:        req.AgentID,
		PropertyID:     req.PropertyID,
		InitialMessage: req.Message,
	})
	if err != nil {
		return h.serviceError(err)
	}

	h.ensureRoom(result.Conversation.ConversationID)

	resp := dto.CreateConversationResponse{
		Conversation: h.toConversationMetadata(result.Conversation, viewer),
		Created:      result.Created,
	}
	if result.Message != nil {
		msg := toMessageResponse(*result.Message)
		resp.Message = &msg
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return api.WriteJSON(w, status, resp)
}

func (h *inquiryEndpoints) handleListConversations(w http.ResponseWriter, r *http.Request) error {
	viewer, err := h.viewerFromRequest(r)
	if err != nil {
		return err
	}

	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("pageSize"))

	result, err := h.service.ListConversationsFor(r.Context(), viewer, inquiry.ListOptions{
		Archived: query.Get("archived") == "true",
		Search:   query.Get("search"),
		SortKey:  query.Get("sort"),
		SortAsc:  query.Get("order") == "asc",
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.ListConversationsResponse{
		Conversations: make([]dto.ConversationMetadata, len(result.Conversations)),
		Total:         result.Total,
		Page:          result.Page,
		PageSize:      result.PageSize,
	}
	for i, summary := range result.Conversations {
		resp.Conversations[i] = toSummaryMetadata(summary, viewer)
	}

	return api.WriteJSON(w, http.StatusOK, resp)
}

func (h *inquiryEndpoints) handleListMessages(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error {
	result, err := h.service.ListMessages(r.Context(), viewer, conversationID)
	if err != nil {
		return h.serviceError(err)
	}
	return api.WriteJSON(w, http.StatusOK, h.toListMessagesResponse(result, viewer))
}

func (h *inquiryEndpoints) handlePostMessage(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error {
	var req dto.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode post message request: %w", err),
		}
	}

	result, err := h.service.AppendMessage(r.Context(), viewer, conversationID, req.Body)
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.PostMessageResponse{
		Conversation: h.toConversationMetadata(result.Conversation, viewer),
		Message:      toMessageResponse(result.Message),
	}
	return api.WriteJSON(w, http.StatusCreated, resp)
}

func (h *inquiryEndpoints) handleMarkRead(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error {
	flipped, err := h.service.MarkRead(r.Context(), viewer, conversationID)
	if err != nil {
		return h.serviceError(err)
	}
	return api.WriteJSON(w, http.StatusOK, dto.MarkReadResponse{MarkedRead: flipped})
}

func (h *inquiryEndpoints) handleOpen(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error {
	result, err := h.service.OpenConversation(r.Context(), viewer, conversationID)
	if err != nil {
		return h.serviceError(err)
	}
	h.ensureRoom(conversationID)
	return api.WriteJSON(w, http.StatusOK, h.toListMessagesResponse(result, viewer))
}

func (h *inquiryEndpoints) handleArchive(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error {
	conversation, err := h.service.ArchiveForParty(r.Context(), viewer, conversationID)
	if err != nil {
		return h.serviceError(err)
	}
	return api.WriteJSON(w, http.StatusOK, h.toConversationMetadata(conversation, viewer))
}

func (h *inquiryEndpoints) handleRestore(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error {
	conversation, err := h.service.RestoreForParty(r.Context(), viewer, conversationID)
	if err != nil {
		return h.serviceError(err)
	}
	return api.WriteJSON(w, http.StatusOK, h.toConversationMetadata(conversation, viewer))
}

func (h *inquiryEndpoints) handleDelete(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error {
	if _, err := h.service.DeleteForParty(r.Context(), viewer, conversationID); err != nil {
		return h.serviceError(err)
	}
	return api.WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Conversation removed"})
}

func (h *inquiryEndpoints) handleReassign(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error {
	var req dto.ReassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode reassign request: %w", err),
		}
	}

	conversation, err := h.service.Reassign(r.Context(), viewer, conversationID, req.NewAgentID)
	if err != nil {
		return h.serviceError(err)
	}
	return api.WriteJSON(w, http.StatusOK, h.toConversationMetadata(conversation, viewer))
}

type conversationHandler func(viewer inquiry.Viewer, conversationID string, w http.ResponseWriter, r *http.Request) error

func (h *inquiryEndpoints) withConversation(conversationID string, fn conversationHandler) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		viewer, err := h.viewerFromRequest(r)
		if err != nil {
			return err
		}
		return fn(viewer, conversationID, w, r)
	}
}

func (h *inquiryEndpoints) viewerFromRequest(r *http.Request) (inquiry.Viewer, error) {
	token := ExtractTokenFromHeaders(r)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return inquiry.Viewer{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("missing bearer token"),
		}
	}

	session, err := internaljwt.ParseSession(token)
	if err != nil {
		return inquiry.Viewer{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("parse session token: %w", err),
		}
	}

	return inquiry.Viewer{
		UserID:   session.UserID,
		Role:     session.Role,
		AgencyID: session.AgencyID,
	}, nil
}

func (h *inquiryEndpoints) extractConversationPath(path string) (string, string, error) {
	prefix := h.paths.ConversationPrefix
	if prefix == "" {
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Conversation not found", ErrorLog: fmt.Errorf("conversation routes not configured")}
	}
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Conversation not found", ErrorLog: fmt.Errorf("conversation path mismatch: %s", path)}
	}

	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Conversation not found", ErrorLog: fmt.Errorf("conversation id missing: %s", path)}
		}
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("invalid conversation path: %s", path)}
	}
}

func (h *inquiryEndpoints) ensureRoom(conversationID string) {
	if conversationID == "" || h.handler == nil {
		return
	}
	h.handler.EnsureRoom(conversationID)
}

func (h *inquiryEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*inquiry.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("inquiry service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case inquiry.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case inquiry.ErrorCodeUnauthorized:
		return &HTTPError{StatusCode: http.StatusUnauthorized, Message: svcErr.Message, ErrorLog: logErr}
	case inquiry.ErrorCodeForbidden:
		return &HTTPError{StatusCode: http.StatusForbidden, Message: svcErr.Message, ErrorLog: logErr}
	case inquiry.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case inquiry.ErrorCodeConflict:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: logErr}
	case inquiry.ErrorCodeUnavailable:
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}

func (h *inquiryEndpoints) toConversationMetadata(item model.ConversationItem, viewer inquiry.Viewer) dto.ConversationMetadata {
	return dto.ConversationMetadata{
		ConversationID:  item.ConversationID,
		ClientID:        item.ClientID,
		AgentID:         item.AgentID,
		PropertyID:      item.PropertyID,
		LastMessageText: item.LastMessageText,
		LastMessageAt:   item.LastMessageAt,
		Reassigned:      item.Reassigned(),
		OriginalAgentID: item.OriginalAgentID,
		Archived:        item.HiddenForViewer(viewer.UserID, viewer.Role),
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func toSummaryMetadata(summary inquiry.ConversationSummary, viewer inquiry.Viewer) dto.ConversationMetadata {
	item := summary.Conversation
	return dto.ConversationMetadata{
		ConversationID:  item.ConversationID,
		ClientID:        item.ClientID,
		AgentID:         item.AgentID,
		PropertyID:      item.PropertyID,
		PropertyTitle:   summary.PropertyTitle,
		Status:          string(summary.Status),
		Access:          summary.Access.String(),
		UnreadCount:     summary.UnreadCount,
		UnreadSinceOpen: summary.UnreadSinceOpen,
		LastMessageText: item.LastMessageText,
		LastMessageAt:   item.LastMessageAt,
		Reassigned:      item.Reassigned(),
		OriginalAgentID: item.OriginalAgentID,
		Archived:        item.HiddenForViewer(viewer.UserID, viewer.Role),
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func (h *inquiryEndpoints) toListMessagesResponse(result inquiry.ListMessagesResult, viewer inquiry.Viewer) dto.ListMessagesResponse {
	resp := dto.ListMessagesResponse{
		Conversation: h.toConversationMetadata(result.Conversation, viewer),
		Messages:     make([]dto.MessageResponse, len(result.Messages)),
	}
	resp.Conversation.Access = result.Access.String()
	for i, msg := range result.Messages {
		resp.Messages[i] = toMessageResponse(msg)
	}
	return resp
}

func toMessageResponse(item model.MessageItem) dto.MessageResponse {
	return dto.MessageResponse{
		MessageID:      item.MessageID,
		ConversationID: item.ConversationID,
		SenderID:       item.SenderID,
		SenderRole:     string(item.SenderRole),
		Body:           item.Body,
		Seq:            item.Seq,
		Read:           item.Read,
		CreatedAt:      item.CreatedAt,
	}
}
