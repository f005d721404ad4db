package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/ec-backend/internal/domain/product"
)

// DynamoStore implements ProductStore and OrderStore on DynamoDB. The stock
// reservation and mark-paid primitives map onto conditional writes, so the
// same linearizability guarantees hold without any application-side locking.
// Users, contact messages and service requests stay on PostgreSQL even in
// dynamo mode; only the concurrency-sensitive collections move.
type DynamoStore struct {
	client        *dynamodb.Client
	productsTable string
	ordersTable   string
}

func NewDynamoStore(client *dynamodb.Client, productsTable, ordersTable string) *DynamoStore {
	return &DynamoStore{
		client:        client,
		productsTable: productsTable,
		ordersTable:   ordersTable,
	}
}

// NewDynamoClient builds a DynamoDB client from the ambient AWS config. An
// endpoint override supports DynamoDB Local in development.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// dynamoProduct is the item shape in the products table.
type dynamoProduct struct {
	ID          string  `dynamodbav:"id"`
	Name        string  `dynamodbav:"name"`
	Description string  `dynamodbav:"description"`
	Price       float64 `dynamodbav:"price"`
	SKU         string  `dynamodbav:"sku,omitempty"`
	Brand       string  `dynamodbav:"brand,omitempty"`
	Images      string  `dynamodbav:"images"` // JSON document
	Stock       int     `dynamodbav:"stock"`
	Sales       int     `dynamodbav:"sales"`
	IsActive    bool    `dynamodbav:"is_active"`
	CreatedAt   string  `dynamodbav:"created_at"`
	UpdatedAt   string  `dynamodbav:"updated_at"`
}

// dynamoOrder is the item shape in the orders table. Nested documents are
// kept as JSON strings, mirroring the JSONB columns of the Postgres backend.
type dynamoOrder struct {
	ID              string  `dynamodbav:"id"`
	OrderNumber     string  `dynamodbav:"order_number"`
	CustomerID      string  `dynamodbav:"customer_id"`
	Items           string  `dynamodbav:"items"`
	ShippingAddress string  `dynamodbav:"shipping_address"`
	PaymentMethod   string  `dynamodbav:"payment_method"`
	PaymentStatus   string  `dynamodbav:"payment_status"`
	OrderStatus     string  `dynamodbav:"order_status"`
	Subtotal        float64 `dynamodbav:"subtotal"`
	ShippingFee     float64 `dynamodbav:"shipping_fee"`
	Tax             float64 `dynamodbav:"tax"`
	Total           float64 `dynamodbav:"total"`
	Notes           string  `dynamodbav:"notes,omitempty"`
	CancelReason    string  `dynamodbav:"cancel_reason,omitempty"`
	PaymentDetails  string  `dynamodbav:"payment_details,omitempty"`
	// StatusHistory is a native list of JSON strings so list_append can
	// extend it atomically.
	StatusHistory []string `dynamodbav:"status_history"`
	CreatedAt     string   `dynamodbav:"created_at"`
	UpdatedAt     string   `dynamodbav:"updated_at"`
}

func (s *DynamoStore) CreateProduct(ctx context.Context, p *product.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return err
	}

	item := dynamoProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		SKU:         p.SKU,
		Brand:       p.Brand,
		Images:      string(images),
		Stock:       p.Stock,
		Sales:       p.Sales,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   p.CreatedAt.Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.productsTable),
		Item:      av,
	})
	return err
}

func (s *DynamoStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.productsTable),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, product.ErrProductNotFound
	}
	return unmarshalProduct(result.Item)
}

func (s *DynamoStore) ListProducts(ctx context.Context, activeOnly bool) ([]product.Product, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.productsTable)}
	if activeOnly {
		input.FilterExpression = aws.String("is_active = :t")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
		}
	}

	var out []product.Product
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			p, err := unmarshalProduct(item)
			if err != nil {
				return nil, err
			}
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *DynamoStore) ReserveStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return product.ErrInvalidQuantity
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.productsTable),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:    aws.String("SET stock = stock - :q, sales = sales + :q, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND stock >= :q"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", qty)},
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if err == nil {
		return nil
	}

	var condFailed *types.ConditionalCheckFailedException
	if !errors.As(err, &condFailed) {
		return err
	}

	p, getErr := s.GetProduct(ctx, id)
	if errors.Is(getErr, product.ErrProductNotFound) {
		return product.ErrProductNotFound
	}
	if getErr != nil {
		return getErr
	}
	return &product.OutOfStockError{ProductID: id, Name: p.Name, Requested: qty, Available: p.Stock}
}

func (s *DynamoStore) ReleaseStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return product.ErrInvalidQuantity
	}

	now := time.Now().Format(time.RFC3339Nano)

	// Common case: sales has room for the full decrement.
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.productsTable),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:    aws.String("SET stock = stock + :q, sales = sales - :q, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND sales >= :q"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", qty)},
			":now": &types.AttributeValueMemberS{Value: now},
		},
	})
	if err == nil {
		return nil
	}

	var condFailed *types.ConditionalCheckFailedException
	if !errors.As(err, &condFailed) {
		return err
	}

	// Sales would go negative: restore stock and clamp sales to zero.
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.productsTable),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:    aws.String("SET stock = stock + :q, sales = :zero, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", qty)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":now":  &types.AttributeValueMemberS{Value: now},
		},
	})
	if errors.As(err, &condFailed) {
		return product.ErrProductNotFound
	}
	return err
}

func (s *DynamoStore) SetStock(ctx context.Context, id string, stock int) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.productsTable),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:    aws.String("SET stock = :s, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", stock)},
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return product.ErrProductNotFound
	}
	return err
}

func unmarshalProduct(item map[string]types.AttributeValue) (*product.Product, error) {
	var dp dynamoProduct
	if err := attributevalue.UnmarshalMap(item, &dp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}

	p := &product.Product{
		ID:          dp.ID,
		Name:        dp.Name,
		Description: dp.Description,
		Price:       dp.Price,
		SKU:         dp.SKU,
		Brand:       dp.Brand,
		Stock:       dp.Stock,
		Sales:       dp.Sales,
		IsActive:    dp.IsActive,
	}
	if dp.Images != "" {
		if err := json.Unmarshal([]byte(dp.Images), &p.Images); err != nil {
			return nil, err
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, dp.CreatedAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, dp.UpdatedAt)
	return p, nil
}
