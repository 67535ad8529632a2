// Package dynamodb stores a graph in a single DynamoDB table.
//
// Every item of one graph shares the partition key GRAPH#{graphID}. Nodes use
// the sort key NODE#{id} and relationships REL#{id}, so one query reads the
// whole graph back.
package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

const (
	entityNode = "NODE"
	entityRel  = "REL"

	// batchSize is the BatchWriteItem request limit.
	batchSize = 25
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// ddbNode represents a node item in DynamoDB.
type ddbNode struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	ID          string `dynamodbav:"ID"`
	Title       string `dynamodbav:"Title"`
	TitleLower  string `dynamodbav:"TitleLower"`
	Description string `dynamodbav:"Description"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
}

// ddbRel represents a relationship item in DynamoDB.
type ddbRel struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ID         string `dynamodbav:"ID"`
	Type       string `dynamodbav:"Type"`
	Notes      string `dynamodbav:"Notes"`
	FromID     string `dynamodbav:"FromID"`
	ToID       string `dynamodbav:"ToID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

// Store implements ports.GraphStore on DynamoDB.
type Store struct {
	client      API
	tableName   string
	graphID     string
	titleFilter string
	logger      *zap.Logger
	newID       func() string
	now         func() time.Time
}

var _ ports.GraphStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// WithTitleFilter limits FetchGraph to titles containing filter.
func WithTitleFilter(filter string) Option {
	return func(s *Store) { s.titleFilter = strings.ToLower(filter) }
}

// NewStore creates a store for one graph in tableName.
func NewStore(client API, tableName, graphID string, logger *zap.Logger, opts ...Option) *Store {
	if graphID == "" {
		graphID = "default"
	}
	s := &Store{
		client:    client,
		tableName: tableName,
		graphID:   graphID,
		logger:    logger,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) pk() string { return fmt.Sprintf("GRAPH#%s", s.graphID) }

func nodeSK(id string) string { return "NODE#" + id }

func relSK(id string) string { return "REL#" + id }

func (s *Store) key(sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: s.pk()},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// ============================================================================
// READS
// ============================================================================

// FetchGraph reads the whole partition and reports each relationship from
// both endpoints, outgoing first.
func (s *Store) FetchGraph(ctx context.Context) ([]graph.RawNode, error) {
	nodes, rels, err := s.queryAll(ctx)
	if err != nil {
		return nil, errors.FromStoreError(err, "FetchGraph", "graph")
	}

	byID := make(map[string]ddbNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	out := make([]graph.RawNode, 0, len(nodes))
	for _, n := range nodes {
		if s.titleFilter != "" && !strings.Contains(n.TitleLower, s.titleFilter) {
			continue
		}
		raw := graph.RawNode{ID: n.ID, Title: n.Title, Description: n.Description, Connections: []graph.RawConnection{}}
		for _, r := range rels {
			if r.FromID == n.ID {
				raw.Connections = append(raw.Connections, connection(r, byID[r.ToID]))
			}
		}
		for _, r := range rels {
			if r.ToID == n.ID {
				raw.Connections = append(raw.Connections, connection(r, byID[r.FromID]))
			}
		}
		out = append(out, raw)
	}

	s.logger.Debug("Fetched graph from DynamoDB",
		zap.String("graphID", s.graphID),
		zap.Int("nodes", len(nodes)),
		zap.Int("relationships", len(rels)),
	)
	return out, nil
}

func connection(r ddbRel, other ddbNode) graph.RawConnection {
	return graph.RawConnection{
		Relationship: graph.RawRelationship{
			ID:    r.ID,
			Type:  r.Type,
			Notes: r.Notes,
			From:  graph.RawNodeRef{ID: r.FromID},
			To:    graph.RawNodeRef{ID: r.ToID},
		},
		Node: graph.RawNodeSummary{ID: other.ID, Title: other.Title, Description: other.Description},
	}
}

// queryAll pages through the graph partition. Items come back in creation
// order.
func (s *Store) queryAll(ctx context.Context) ([]ddbNode, []ddbRel, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(s.pk()))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var nodes []ddbNode
	var rels []ddbRel
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, item := range page.Items {
			et, ok := item["EntityType"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			switch et.Value {
			case entityNode:
				var n ddbNode
				if err := attributevalue.UnmarshalMap(item, &n); err != nil {
					return nil, nil, fmt.Errorf("failed to unmarshal node item: %w", err)
				}
				nodes = append(nodes, n)
			case entityRel:
				var r ddbRel
				if err := attributevalue.UnmarshalMap(item, &r); err != nil {
					return nil, nil, fmt.Errorf("failed to unmarshal relationship item: %w", err)
				}
				rels = append(rels, r)
			}
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].CreatedAt != nodes[j].CreatedAt {
			return nodes[i].CreatedAt < nodes[j].CreatedAt
		}
		return nodes[i].ID < nodes[j].ID
	})
	sort.SliceStable(rels, func(i, j int) bool {
		if rels[i].CreatedAt != rels[j].CreatedAt {
			return rels[i].CreatedAt < rels[j].CreatedAt
		}
		return rels[i].ID < rels[j].ID
	})
	return nodes, rels, nil
}

func (s *Store) nodeExists(ctx context.Context, id string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.tableName),
		Key:                  s.key(nodeSK(id)),
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

// ============================================================================
// WRITES
// ============================================================================

// CreateNode puts a node item that must not already exist.
func (s *Store) CreateNode(ctx context.Context, title, description string) (graph.Node, error) {
	if strings.TrimSpace(title) == "" {
		return graph.Node{}, errors.Validation(errors.CodeInvalidInput.String(), "Title is required").
			WithOperation("CreateNode").
			Build()
	}

	n := ddbNode{
		EntityType:  entityNode,
		ID:          s.newID(),
		Title:       title,
		TitleLower:  strings.ToLower(title),
		Description: description,
		CreatedAt:   s.now().UTC().Format(time.RFC3339Nano),
	}
	n.PK, n.SK = s.pk(), nodeSK(n.ID)

	if err := s.putNew(ctx, n); err != nil {
		return graph.Node{}, errors.FromStoreError(err, "CreateNode", "node")
	}

	s.logger.Debug("Node created",
		zap.String("graphID", s.graphID),
		zap.String("nodeID", n.ID),
	)
	return graph.Node{ID: n.ID, Title: n.Title, Description: n.Description}, nil
}

// LinkNodes puts a relationship item after checking both endpoints exist.
func (s *Store) LinkNodes(ctx context.Context, req ports.LinkRequest) (ports.LinkRef, error) {
	typ := req.Type
	if typ == "" {
		typ = graph.DefaultLinkType
	}
	if !typ.Known() {
		return ports.LinkRef{}, errors.Validation(errors.CodeInvalidLinkType.String(), "Unknown link type").
			WithOperation("LinkNodes").
			WithDetails(string(typ)).
			Build()
	}

	for _, id := range []string{req.FromID, req.ToID} {
		ok, err := s.nodeExists(ctx, id)
		if err != nil {
			return ports.LinkRef{}, errors.FromStoreError(err, "LinkNodes", "node")
		}
		if !ok {
			return ports.LinkRef{}, errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
				WithOperation("LinkNodes").
				WithResource("node").
				WithDetails(id).
				Build()
		}
	}

	r := ddbRel{
		EntityType: entityRel,
		ID:         s.newID(),
		Type:       string(typ),
		Notes:      req.Notes,
		FromID:     req.FromID,
		ToID:       req.ToID,
		CreatedAt:  s.now().UTC().Format(time.RFC3339Nano),
	}
	r.PK, r.SK = s.pk(), relSK(r.ID)

	if err := s.putNew(ctx, r); err != nil {
		return ports.LinkRef{}, errors.FromStoreError(err, "LinkNodes", "link")
	}
	return ports.LinkRef{ID: r.ID, FromID: r.FromID, ToID: r.ToID, Type: typ, Notes: r.Notes}, nil
}

// putNew writes item on the condition that its key is unused.
func (s *Store) putNew(ctx context.Context, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// DeleteNode removes the node and every relationship touching it.
func (s *Store) DeleteNode(ctx context.Context, id string) (string, error) {
	ok, err := s.nodeExists(ctx, id)
	if err != nil {
		return "", errors.FromStoreError(err, "DeleteNode", "node")
	}
	if !ok {
		return "", errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
			WithOperation("DeleteNode").
			WithResource("node").
			WithDetails(id).
			Build()
	}

	_, rels, err := s.queryAll(ctx)
	if err != nil {
		return "", errors.FromStoreError(err, "DeleteNode", "node")
	}
	keys := make([]map[string]types.AttributeValue, 0, len(rels)+1)
	for _, r := range rels {
		if r.FromID == id || r.ToID == id {
			keys = append(keys, s.key(relSK(r.ID)))
		}
	}
	keys = append(keys, s.key(nodeSK(id)))

	if err := s.batchDelete(ctx, keys); err != nil {
		return "", errors.FromStoreError(err, "DeleteNode", "node")
	}

	s.logger.Debug("Node deleted",
		zap.String("graphID", s.graphID),
		zap.String("nodeID", id),
		zap.Int("relationshipsDeleted", len(keys)-1),
	)
	return id, nil
}

// batchDelete deletes keys in chunks of 25, resubmitting unprocessed items.
func (s *Store) batchDelete(ctx context.Context, keys []map[string]types.AttributeValue) error {
	const maxRetries = 3
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]types.WriteRequest, 0, end-i)
		for _, k := range keys[i:end] {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}

		for retry := 0; len(requests) > 0; retry++ {
			if retry > maxRetries {
				return fmt.Errorf("batch delete left %d unprocessed items", len(requests))
			}
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.tableName: requests},
			})
			if err != nil {
				return fmt.Errorf("batch delete failed for items %d-%d: %w", i, end-1, err)
			}
			requests = out.UnprocessedItems[s.tableName]
			if len(requests) > 0 {
				s.logger.Debug("Found unprocessed items, retrying",
					zap.Int("unprocessedCount", len(requests)),
					zap.Int("retry", retry+1),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(retry*retry+1) * 100 * time.Millisecond):
				}
			}
		}
	}
	return nil
}

// DeleteLink removes one relationship item, failing if it is absent.
func (s *Store) DeleteLink(ctx context.Context, id string) (string, error) {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return "", errors.FromStoreError(err, "DeleteLink", "link")
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.key(relSK(id)),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		mapped := errors.FromStoreError(err, "DeleteLink", "link")
		if errors.IsConflict(mapped) {
			return "", errors.NotFound(errors.CodeLinkNotFound.String(), "Link does not exist").
				WithOperation("DeleteLink").
				WithResource("link").
				WithDetails(id).
				WithCause(err).
				Build()
		}
		return "", mapped
	}
	return id, nil
}
