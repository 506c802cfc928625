package inquiry

import (
	"context"
	"errors"
	"sort"
	"strings"

	"estate-inquiries-backend/internal/database"
	"estate-inquiries-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("inquiry repository: not found")

type Repository interface {
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	PutConversation(ctx context.Context, conversation model.ConversationItem) error
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	FindActiveByThreadKey(ctx context.Context, threadKey string) (model.ConversationItem, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	ListConversationsByClient(ctx context.Context, clientID string) ([]model.ConversationItem, error)
	ListConversationsByAgent(ctx context.Context, agentID string) ([]model.ConversationItem, error)
	ListAllConversations(ctx context.Context) ([]model.ConversationItem, error)
	CreateMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, conversationID string) ([]model.MessageItem, error)
	MarkMessageRead(ctx context.Context, conversationID, messageID string) error
	DeleteMessages(ctx context.Context, conversationID string) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItem(ctx, model.ConversationsTable, conversation)
}

func (r *DynamoRepository) PutConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItem(ctx, model.ConversationsTable, conversation)
}

func (r *DynamoRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: conversationID},
		},
		&conversation,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

func (r *DynamoRepository) FindActiveByThreadKey(ctx context.Context, threadKey string) (model.ConversationItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ConversationsTable,
		aws.String("byThreadKey"),
		"threadKey = :threadKey",
		map[string]types.AttributeValue{
			":threadKey": &types.AttributeValueMemberS{Value: threadKey},
		},
		nil,
		nil,
	)
	if err != nil && !isIndexNotFound(err) {
		return model.ConversationItem{}, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ConversationsTable,
			"threadKey = :threadKey",
			map[string]types.AttributeValue{
				":threadKey": &types.AttributeValueMemberS{Value: threadKey},
			},
			nil,
		)
		if err != nil {
			return model.ConversationItem{}, err
		}
	}

	for _, item := range items {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return model.ConversationItem{}, err
		}
		if !conversation.HiddenByBoth() {
			return conversation, nil
		}
	}
	return model.ConversationItem{}, ErrNotFound
}

func (r *DynamoRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	return r.db.Client.DeleteItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: conversationID},
		},
	)
}

func (r *DynamoRepository) ListConversationsByClient(ctx context.Context, clientID string) ([]model.ConversationItem, error) {
	return r.listByIndex(ctx, "byClient", "clientId", clientID)
}

// ListConversationsByAgent returns conversations where the agent is either
// the current owner or the original owner before a reassignment; the
// resolver decides what the agent may do with each.
func (r *DynamoRepository) ListConversationsByAgent(ctx context.Context, agentID string) ([]model.ConversationItem, error) {
	current, err := r.listByIndex(ctx, "byAgent", "agentId", agentID)
	if err != nil {
		return nil, err
	}

	reassigned, err := r.db.Client.ScanItems(
		ctx,
		model.ConversationsTable,
		"originalAgentId = :agentId AND agentId <> :agentId",
		map[string]types.AttributeValue{
			":agentId": &types.AttributeValueMemberS{Value: agentID},
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(current))
	for _, c := range current {
		seen[c.ConversationID] = true
	}
	for _, item := range reassigned {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return nil, err
		}
		if !seen[conversation.ConversationID] {
			current = append(current, conversation)
		}
	}
	return current, nil
}

func (r *DynamoRepository) ListAllConversations(ctx context.Context) ([]model.ConversationItem, error) {
	items, err := r.db.Client.ScanItems(
		ctx,
		model.ConversationsTable,
		"attribute_exists(pk)",
		nil,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return unmarshalConversations(items)
}

func (r *DynamoRepository) listByIndex(ctx context.Context, indexName, attr, value string) ([]model.ConversationItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ConversationsTable,
		aws.String(indexName),
		attr+" = :v",
		map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
		nil,
		nil,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ConversationsTable,
			attr+" = :v",
			map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberS{Value: value},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}
	return unmarshalConversations(items)
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) ListMessages(ctx context.Context, conversationID string) ([]model.MessageItem, error) {
	scanForward := true
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		aws.String("byConversation"),
		"conversationId = :conversationId",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		nil,
		&scanForward,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.MessagesTable,
			"conversationId = :conversationId",
			map[string]types.AttributeValue{
				":conversationId": &types.AttributeValueMemberS{Value: conversationID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	sortMessages(messages)
	return messages, nil
}

func (r *DynamoRepository) MarkMessageRead(ctx context.Context, conversationID, messageID string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.MessagesTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.MessagePK(conversationID, messageID)},
		},
		"SET #read = :read",
		map[string]types.AttributeValue{
			":read": &types.AttributeValueMemberBOOL{Value: true},
		},
		map[string]string{
			"#read": "read",
		},
		nil,
	)
}

func (r *DynamoRepository) DeleteMessages(ctx context.Context, conversationID string) error {
	messages, err := r.ListMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(messages))
	for _, msg := range messages {
		keys = append(keys, map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: msg.PK},
		})
	}
	return r.db.Client.BatchDeleteItems(ctx, model.MessagesTable, keys)
}

func unmarshalConversations(items []map[string]types.AttributeValue) ([]model.ConversationItem, error) {
	conversations := make([]model.ConversationItem, 0, len(items))
	for _, item := range items {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

// sortMessages fixes the per-conversation order: creation time with the
// monotonic sequence number as tie-break.
func sortMessages(messages []model.MessageItem) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt != messages[j].CreatedAt {
			return messages[i].CreatedAt < messages[j].CreatedAt
		}
		return messages[i].Seq < messages[j].Seq
	})
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}

func isIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found")
}
