package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoAPI is the subset of the DynamoDB client the repositories use.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// OrderRefIndex is the GSI on order_ref used by the support lookup.
const OrderRefIndex = "order_ref-index"

// DynamoOrderRepository stores orders in a table keyed by `payment_ref`.
// Create is a conditional put, so the table itself enforces one order per payment.
type DynamoOrderRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoOrderRepository(client DynamoAPI, table string) *DynamoOrderRepository {
	return &DynamoOrderRepository{client: client, table: table}
}

type ddbOrder struct {
	PaymentRef   string                 `dynamodbav:"payment_ref"`
	ID           string                 `dynamodbav:"id"`
	OrderRef     string                 `dynamodbav:"order_ref"`
	IntentID     string                 `dynamodbav:"intent_id"`
	Customer     models.CustomerDetails `dynamodbav:"customer"`
	Lines        []models.LineItem      `dynamodbav:"lines"`
	Totals       models.OrderTotals     `dynamodbav:"totals"`
	AmountMinor  int64                  `dynamodbav:"amount_minor"`
	Currency     string                 `dynamodbav:"currency"`
	Method       string                 `dynamodbav:"method,omitempty"`
	Source       string                 `dynamodbav:"source"`
	LedgerStatus string                 `dynamodbav:"ledger_status"`
	VerifiedAt   string                 `dynamodbav:"verified_at"`
	CreatedAt    string                 `dynamodbav:"created_at"`
	UpdatedAt    string                 `dynamodbav:"updated_at"`
}

func toDDBOrder(o *models.Order) ddbOrder {
	return ddbOrder{
		PaymentRef:   o.PaymentRef,
		ID:           o.ID.String(),
		OrderRef:     o.OrderRef,
		IntentID:     o.IntentID,
		Customer:     o.Customer,
		Lines:        o.Lines,
		Totals:       o.Totals,
		AmountMinor:  o.AmountMinor,
		Currency:     o.Currency,
		Method:       o.Method,
		Source:       o.Source,
		LedgerStatus: o.LedgerStatus,
		VerifiedAt:   o.VerifiedAt.UTC().Format(time.RFC3339Nano),
		CreatedAt:    o.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (d ddbOrder) toModel() *models.Order {
	o := &models.Order{
		OrderRef:     d.OrderRef,
		IntentID:     d.IntentID,
		PaymentRef:   d.PaymentRef,
		Customer:     d.Customer,
		Lines:        d.Lines,
		Totals:       d.Totals,
		AmountMinor:  d.AmountMinor,
		Currency:     d.Currency,
		Method:       d.Method,
		Source:       d.Source,
		LedgerStatus: d.LedgerStatus,
	}
	o.ID, _ = uuid.Parse(d.ID)
	o.VerifiedAt, _ = time.Parse(time.RFC3339Nano, d.VerifiedAt)
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, d.CreatedAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, d.UpdatedAt)
	return o
}

func (r *DynamoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now

	item, err := attributevalue.MarshalMap(toDDBOrder(order))
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(payment_ref)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrDuplicateOrder
	}
	if err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (r *DynamoOrderRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &r.table,
		Key:            map[string]types.AttributeValue{"payment_ref": &types.AttributeValueMemberS{Value: paymentRef}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrOrderNotFound
	}
	var d ddbOrder
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return d.toModel(), nil
}

func (r *DynamoOrderRepository) FindByOrderRef(ctx context.Context, orderRef string) (*models.Order, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &r.table,
		IndexName:              aws.String(OrderRefIndex),
		KeyConditionExpression: aws.String("order_ref = :ref"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref": &types.AttributeValueMemberS{Value: orderRef},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb Query failed: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrOrderNotFound
	}
	var d ddbOrder
	if err := attributevalue.UnmarshalMap(out.Items[0], &d); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return d.toModel(), nil
}

func (r *DynamoOrderRepository) UpdateLedgerStatus(ctx context.Context, paymentRef, status string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 map[string]types.AttributeValue{"payment_ref": &types.AttributeValueMemberS{Value: paymentRef}},
		ConditionExpression: aws.String("attribute_exists(payment_ref)"),
		UpdateExpression:    aws.String("SET ledger_status = :s, updated_at = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: status},
			":u": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("dynamodb UpdateItem failed: %w", err)
	}
	return nil
}

// DynamoIntentRepository stores checkout intents keyed by `intent_id`.
type DynamoIntentRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoIntentRepository(client DynamoAPI, table string) *DynamoIntentRepository {
	return &DynamoIntentRepository{client: client, table: table}
}

type ddbIntent struct {
	IntentID    string                 `dynamodbav:"intent_id"`
	Receipt     string                 `dynamodbav:"receipt"`
	Gateway     string                 `dynamodbav:"gateway"`
	Customer    models.CustomerDetails `dynamodbav:"customer"`
	Lines       []models.LineItem      `dynamodbav:"lines"`
	Totals      models.OrderTotals     `dynamodbav:"totals"`
	AmountMinor int64                  `dynamodbav:"amount_minor"`
	Currency    string                 `dynamodbav:"currency"`
	ClientKey   string                 `dynamodbav:"client_key,omitempty"`
	CreatedAt   string                 `dynamodbav:"created_at"`
	// ExpiresAt drives the table TTL; unpaid intents are dropped after a week.
	ExpiresAt int64 `dynamodbav:"expires_at"`
}

func (r *DynamoIntentRepository) Save(ctx context.Context, ci *models.CheckoutIntent) error {
	if ci.CreatedAt.IsZero() {
		ci.CreatedAt = time.Now()
	}
	item, err := attributevalue.MarshalMap(ddbIntent{
		IntentID:    ci.IntentID,
		Receipt:     ci.Receipt,
		Gateway:     ci.Gateway,
		Customer:    ci.Customer,
		Lines:       ci.Lines,
		Totals:      ci.Totals,
		AmountMinor: ci.AmountMinor,
		Currency:    ci.Currency,
		ClientKey:   ci.ClientKey,
		CreatedAt:   ci.CreatedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt:   ci.CreatedAt.Add(7 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &r.table, Item: item}); err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (r *DynamoIntentRepository) FindByIntentID(ctx context.Context, intentID string) (*models.CheckoutIntent, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key:       map[string]types.AttributeValue{"intent_id": &types.AttributeValueMemberS{Value: intentID}},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrIntentNotFound
	}
	var d ddbIntent
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, fmt.Errorf("unmarshal intent: %w", err)
	}
	ci := &models.CheckoutIntent{
		IntentID:    d.IntentID,
		Receipt:     d.Receipt,
		Gateway:     d.Gateway,
		Customer:    d.Customer,
		Lines:       d.Lines,
		Totals:      d.Totals,
		AmountMinor: d.AmountMinor,
		Currency:    d.Currency,
		ClientKey:   d.ClientKey,
	}
	ci.CreatedAt, _ = time.Parse(time.RFC3339Nano, d.CreatedAt)
	return ci, nil
}
