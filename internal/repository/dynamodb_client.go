package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"assistant-engine/internal/domain"
)

const (
	pkPrefixUser    = "USER#"
	skPrefixSession = "SESSION#"

	// SessionIDIndex is the global secondary index keyed by sessionId alone,
	// used to look an id up across every owner scope.
	SessionIDIndex = "sessionId-index"
)

var (
	// ErrNotFound is returned when no session exists at the requested key.
	ErrNotFound = errors.New("repository: session not found")
	// ErrConflict is returned when a conditional write loses a race: the key
	// already exists on create, or the stored version moved on replace.
	ErrConflict = errors.New("repository: conditional write conflict")
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client wraps a DynamoDB table of sessions.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sessionItem is the stored shape of a session record.
type sessionItem struct {
	PK          string              `dynamodbav:"PK"`
	SK          string              `dynamodbav:"SK"`
	SessionID   string              `dynamodbav:"sessionId"`
	OwnerScope  string              `dynamodbav:"ownerScope"`
	Title       string              `dynamodbav:"title,omitempty"`
	Archived    bool                `dynamodbav:"archived"`
	Turns       []domain.Turn       `dynamodbav:"messages"`
	Attachments []domain.Attachment `dynamodbav:"attachments,omitempty"`
	Version     int64               `dynamodbav:"version"`
	CreatedAt   string              `dynamodbav:"createdAt"`
	UpdatedAt   string              `dynamodbav:"updatedAt"`
}

func userPK(ownerScope string) string {
	return pkPrefixUser + ownerScope
}

func sessionSK(id string) string {
	return skPrefixSession + id
}

func key(ownerScope, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(ownerScope)},
		"SK": &types.AttributeValueMemberS{Value: sessionSK(id)},
	}
}

// Get reads the session at (ownerScope, id) with a consistent read.
func (c *Client) Get(ctx context.Context, ownerScope, id string) (domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(ownerScope, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: Get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, ErrNotFound
	}
	s, err := itemToSession(out.Item)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: Get unmarshal: %w", err)
	}
	return s, nil
}

// CreateOnly writes s only if no record exists at its key.
func (c *Client) CreateOnly(ctx context.Context, s domain.Session) error {
	item, err := sessionToItem(s)
	if err != nil {
		return fmt.Errorf("repository: CreateOnly: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: CreateOnly: %w", mapConditionErr(err))
	}
	return nil
}

// Replace overwrites the record at s's key only if its stored version equals
// expectedVersion. s.Version is written as given; callers bump it.
func (c *Client) Replace(ctx context.Context, s domain.Session, expectedVersion int64) error {
	item, err := sessionToItem(s)
	if err != nil {
		return fmt.Errorf("repository: Replace: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("#v = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#v": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Replace: %w", mapConditionErr(err))
	}
	return nil
}

// QueryByOwnerScope returns every session of ownerScope, most recently
// created id last.
func (c *Client) QueryByOwnerScope(ctx context.Context, ownerScope string) ([]domain.Session, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(ownerScope)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixSession},
		},
	}
	sessions, err := c.queryAll(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: QueryByOwnerScope: %w", err)
	}
	return sessions, nil
}

// QueryByID returns the sessions with the given id in any owner scope. The
// index is eventually consistent, so a miss does not prove absence; the
// create-only write that follows a miss does.
func (c *Client) QueryByID(ctx context.Context, id string) ([]domain.Session, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(SessionIDIndex),
		KeyConditionExpression: aws.String("sessionId = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
	}
	sessions, err := c.queryAll(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: QueryByID: %w", err)
	}
	return sessions, nil
}

// Delete removes the session at (ownerScope, id). Deleting an absent session
// is not an error.
func (c *Client) Delete(ctx context.Context, ownerScope, id string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       key(ownerScope, id),
	})
	if err != nil {
		return fmt.Errorf("repository: Delete: %w", err)
	}
	return nil
}

func (c *Client) queryAll(ctx context.Context, in *dynamodb.QueryInput) ([]domain.Session, error) {
	var sessions []domain.Session
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			s, err := itemToSession(item)
			if err != nil {
				return nil, fmt.Errorf("unmarshal: %w", err)
			}
			sessions = append(sessions, s)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return sessions, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func mapConditionErr(err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrConflict
	}
	return err
}

func sessionToItem(s domain.Session) (map[string]types.AttributeValue, error) {
	if s.OwnerScope == "" || s.ID == "" {
		return nil, errors.New("owner scope and id are required")
	}
	turns := s.Turns
	if turns == nil {
		turns = []domain.Turn{}
	}
	return attributevalue.MarshalMap(sessionItem{
		PK:          userPK(s.OwnerScope),
		SK:          sessionSK(s.ID),
		SessionID:   s.ID,
		OwnerScope:  s.OwnerScope,
		Title:       s.Title,
		Archived:    s.Archived,
		Turns:       turns,
		Attachments: s.Attachments,
		Version:     s.Version,
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	})
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	var rec sessionItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.Session{}, err
	}
	if rec.SessionID == "" {
		return domain.Session{}, fmt.Errorf("repository: missing attribute %q", "sessionId")
	}
	if rec.OwnerScope == "" {
		rec.OwnerScope = strings.TrimPrefix(rec.PK, pkPrefixUser)
	}
	return domain.Session{
		ID:          rec.SessionID,
		OwnerScope:  rec.OwnerScope,
		Title:       rec.Title,
		Archived:    rec.Archived,
		Turns:       rec.Turns,
		Attachments: rec.Attachments,
		Version:     rec.Version,
		CreatedAt:   parseTime(rec.CreatedAt),
		UpdatedAt:   parseTime(rec.UpdatedAt),
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
