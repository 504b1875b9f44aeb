package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"writeway/internal/domain"
)

const (
	pkPrefixSession = "SESSION#"
	pkPrefixPlan    = "PLAN#"
	skMeta          = "META#"

	entitySession = "session"
	entityPlan    = "plan"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore keeps sessions and plans in a single table keyed by PK/SK.
// Each record is one item: PK is SESSION#<id> or PLAN#<id> and SK is META#.
// Messages and tasks are stored inline as lists of maps.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

func NewDynamo(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

func sessionPK(id string) string { return pkPrefixSession + id }
func planPK(id string) string    { return pkPrefixPlan + id }

func itemKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

func (c *DynamoStore) getItem(ctx context.Context, pk string) (map[string]types.AttributeValue, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            itemKey(pk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, domain.ErrNotFound
	}
	return out.Item, nil
}

// putItem writes item; with create set it refuses to overwrite.
func (c *DynamoStore) putItem(ctx context.Context, item map[string]types.AttributeValue, create bool) error {
	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	}
	if create {
		in.ConditionExpression = aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)")
	}
	_, err := c.api.PutItem(ctx, in)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrExists
	}
	return err
}

func (c *DynamoStore) deleteItem(ctx context.Context, pk string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       itemKey(pk),
	})
	return err
}

// scanEntity pages through every item of one entity type.
func (c *DynamoStore) scanEntity(ctx context.Context, filter string, names map[string]string, values map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(c.tableName),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (c *DynamoStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	item, err := c.getItem(ctx, sessionPK(id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, err
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	s, err := itemToSession(item)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession unmarshal: %w", err)
	}
	return s, nil
}

func (c *DynamoStore) CreateSession(ctx context.Context, s domain.Session) error {
	if err := c.putItem(ctx, sessionItem(s), true); err != nil {
		if errors.Is(err, ErrExists) {
			return err
		}
		return fmt.Errorf("repository: CreateSession: %w", err)
	}
	return nil
}

func (c *DynamoStore) SaveSession(ctx context.Context, s domain.Session) error {
	if err := c.putItem(ctx, sessionItem(s), false); err != nil {
		return fmt.Errorf("repository: SaveSession: %w", err)
	}
	return nil
}

func (c *DynamoStore) DeleteSession(ctx context.Context, id string) error {
	if err := c.deleteItem(ctx, sessionPK(id)); err != nil {
		return fmt.Errorf("repository: DeleteSession: %w", err)
	}
	return nil
}

func (c *DynamoStore) ListSessions(ctx context.Context, kind domain.SessionKind) ([]domain.Session, error) {
	items, err := c.scanEntity(ctx, "#entity = :entity AND #kind = :kind", map[string]string{
		"#entity": "entity",
		"#kind":   "kind",
	}, map[string]types.AttributeValue{
		":entity": &types.AttributeValueMemberS{Value: entitySession},
		":kind":   &types.AttributeValueMemberS{Value: string(kind)},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListSessions scan: %w", err)
	}
	out := make([]domain.Session, 0, len(items))
	for _, item := range items {
		s, err := itemToSession(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListSessions unmarshal: %w", err)
		}
		out = append(out, s)
	}
	sortSessions(out)
	return out, nil
}

func (c *DynamoStore) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	item, err := c.getItem(ctx, planPK(id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Plan{}, err
	}
	if err != nil {
		return domain.Plan{}, fmt.Errorf("repository: GetPlan get item: %w", err)
	}
	p, err := itemToPlan(item)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("repository: GetPlan unmarshal: %w", err)
	}
	return p, nil
}

func (c *DynamoStore) CreatePlan(ctx context.Context, p domain.Plan) error {
	if err := c.putItem(ctx, planItem(p), true); err != nil {
		if errors.Is(err, ErrExists) {
			return err
		}
		return fmt.Errorf("repository: CreatePlan: %w", err)
	}
	return nil
}

func (c *DynamoStore) SavePlan(ctx context.Context, p domain.Plan) error {
	if err := c.putItem(ctx, planItem(p), false); err != nil {
		return fmt.Errorf("repository: SavePlan: %w", err)
	}
	return nil
}

func (c *DynamoStore) DeletePlan(ctx context.Context, id string) error {
	if err := c.deleteItem(ctx, planPK(id)); err != nil {
		return fmt.Errorf("repository: DeletePlan: %w", err)
	}
	return nil
}

func (c *DynamoStore) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	items, err := c.scanEntity(ctx, "#entity = :entity", map[string]string{
		"#entity": "entity",
	}, map[string]types.AttributeValue{
		":entity": &types.AttributeValueMemberS{Value: entityPlan},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListPlans scan: %w", err)
	}
	out := make([]domain.Plan, 0, len(items))
	for _, item := range items {
		p, err := itemToPlan(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPlans unmarshal: %w", err)
		}
		out = append(out, p)
	}
	sortPlans(out)
	return out, nil
}

func sessionItem(s domain.Session) map[string]types.AttributeValue {
	msgs := make([]types.AttributeValue, 0, len(s.Messages))
	for _, m := range s.Messages {
		msgs = append(msgs, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"role":    &types.AttributeValueMemberS{Value: string(m.Role)},
			"content": &types.AttributeValueMemberS{Value: m.Content},
		}})
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(s.ID)},
		"SK":        &types.AttributeValueMemberS{Value: skMeta},
		"entity":    &types.AttributeValueMemberS{Value: entitySession},
		"id":        &types.AttributeValueMemberS{Value: s.ID},
		"kind":      &types.AttributeValueMemberS{Value: string(s.Kind)},
		"title":     &types.AttributeValueMemberS{Value: s.Title},
		"stage":     &types.AttributeValueMemberS{Value: string(s.Stage)},
		"createdAt": &types.AttributeValueMemberS{Value: formatTime(s.CreatedAt)},
		"messages":  &types.AttributeValueMemberL{Value: msgs},
	}
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.Session{}, err
	}
	kind, err := strAttr(item, "kind")
	if err != nil {
		return domain.Session{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.Session{}, err
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: parse createdAt: %w", err)
	}
	title, _ := strAttr(item, "title") // allow empty
	stage, _ := strAttr(item, "stage") // chat sessions have none

	elems, err := listAttr(item, "messages")
	if err != nil {
		return domain.Session{}, err
	}
	msgs := make([]domain.ChatMessage, 0, len(elems))
	for i, el := range elems {
		m, ok := el.(*types.AttributeValueMemberM)
		if !ok {
			return domain.Session{}, fmt.Errorf("repository: message %d is not a map", i)
		}
		role, err := strAttr(m.Value, "role")
		if err != nil {
			return domain.Session{}, err
		}
		content, _ := strAttr(m.Value, "content")
		msgs = append(msgs, domain.ChatMessage{Role: domain.Role(role), Content: content})
	}

	return domain.Session{
		ID:        id,
		Kind:      domain.SessionKind(kind),
		Title:     title,
		Messages:  msgs,
		Stage:     domain.Stage(stage),
		CreatedAt: createdAt,
	}, nil
}

func planItem(p domain.Plan) map[string]types.AttributeValue {
	tasks := make([]types.AttributeValue, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		tasks = append(tasks, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"id":        &types.AttributeValueMemberS{Value: t.ID},
			"text":      &types.AttributeValueMemberS{Value: t.Text},
			"completed": &types.AttributeValueMemberBOOL{Value: t.Completed},
		}})
	}
	var deadline types.AttributeValue = &types.AttributeValueMemberNULL{Value: true}
	if p.Deadline != nil {
		deadline = &types.AttributeValueMemberS{Value: *p.Deadline}
	}
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: planPK(p.ID)},
		"SK":          &types.AttributeValueMemberS{Value: skMeta},
		"entity":      &types.AttributeValueMemberS{Value: entityPlan},
		"id":          &types.AttributeValueMemberS{Value: p.ID},
		"title":       &types.AttributeValueMemberS{Value: p.Title},
		"description": &types.AttributeValueMemberS{Value: p.Description},
		"deadline":    deadline,
		"progress":    &types.AttributeValueMemberN{Value: strconv.Itoa(p.Progress)},
		"createdAt":   &types.AttributeValueMemberS{Value: formatTime(p.CreatedAt)},
		"tasks":       &types.AttributeValueMemberL{Value: tasks},
	}
}

func itemToPlan(item map[string]types.AttributeValue) (domain.Plan, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.Plan{}, err
	}
	title, err := strAttr(item, "title")
	if err != nil {
		return domain.Plan{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.Plan{}, err
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("repository: parse createdAt: %w", err)
	}
	progress, err := intAttr(item, "progress")
	if err != nil {
		return domain.Plan{}, err
	}
	description, _ := strAttr(item, "description") // allow empty

	var deadline *string
	if d, err := strAttr(item, "deadline"); err == nil {
		deadline = &d
	}

	elems, err := listAttr(item, "tasks")
	if err != nil {
		return domain.Plan{}, err
	}
	tasks := make([]domain.Task, 0, len(elems))
	for i, el := range elems {
		m, ok := el.(*types.AttributeValueMemberM)
		if !ok {
			return domain.Plan{}, fmt.Errorf("repository: task %d is not a map", i)
		}
		taskID, err := strAttr(m.Value, "id")
		if err != nil {
			return domain.Plan{}, err
		}
		text, _ := strAttr(m.Value, "text")
		completed, _ := boolAttr(m.Value, "completed")
		tasks = append(tasks, domain.Task{ID: taskID, Text: text, Completed: completed})
	}

	return domain.Plan{
		ID:          id,
		Title:       title,
		Description: description,
		Deadline:    deadline,
		Tasks:       tasks,
		CreatedAt:   createdAt,
		Progress:    progress,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func boolAttr(item map[string]types.AttributeValue, key string) (bool, error) {
	v, ok := item[key]
	if !ok {
		return false, fmt.Errorf("repository: missing attribute %q", key)
	}
	b, ok := v.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("repository: attribute %q is not a bool", key)
	}
	return b.Value, nil
}

// listAttr treats a missing list as empty.
func listAttr(item map[string]types.AttributeValue, key string) ([]types.AttributeValue, error) {
	v, ok := item[key]
	if !ok {
		return nil, nil
	}
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a list", key)
	}
	return l.Value, nil
}
