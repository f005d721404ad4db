package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/ec-backend/internal/domain/order"
)

func (s *DynamoStore) CreateOrder(ctx context.Context, o *order.Order) error {
	item, err := marshalOrder(o)
	if err != nil {
		return err
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.ordersTable),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	return err
}

func (s *DynamoStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.ordersTable),
		Key:       orderKey(id),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, order.ErrOrderNotFound
	}
	return unmarshalOrder(result.Item)
}

func (s *DynamoStore) ListOrders(ctx context.Context, f OrderFilter) ([]order.Order, int, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.ordersTable)}

	filter := ""
	values := map[string]types.AttributeValue{}
	if f.CustomerID != "" {
		filter = "customer_id = :cid"
		values[":cid"] = &types.AttributeValueMemberS{Value: f.CustomerID}
	}
	if f.Status != "" {
		if filter != "" {
			filter += " AND "
		}
		filter += "order_status = :st"
		values[":st"] = &types.AttributeValueMemberS{Value: string(f.Status)}
	}
	if filter != "" {
		input.FilterExpression = aws.String(filter)
		input.ExpressionAttributeValues = values
	}

	var matched []order.Order
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, 0, err
		}
		for _, item := range page.Items {
			o, err := unmarshalOrder(item)
			if err != nil {
				return nil, 0, err
			}
			matched = append(matched, *o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	_, limit, offset := normalizePage(f.Page, f.Limit)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *DynamoStore) UpdateStatus(ctx context.Context, id string, status order.Status, entry order.HistoryEntry) error {
	entryAV, err := historyEntryValue(entry)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.ordersTable),
		Key:                 orderKey(id),
		UpdateExpression:    aws.String("SET order_status = :s, status_history = list_append(status_history, :e), updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":   &types.AttributeValueMemberS{Value: string(status)},
			":e":   entryAV,
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	return asOrderNotFound(err)
}

func (s *DynamoStore) CancelOrder(ctx context.Context, id, reason string, entry order.HistoryEntry) error {
	entryAV, err := historyEntryValue(entry)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.ordersTable),
		Key:                 orderKey(id),
		UpdateExpression:    aws.String("SET order_status = :s, cancel_reason = :r, status_history = list_append(status_history, :e), updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND order_status IN (:pending, :confirmed)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":         &types.AttributeValueMemberS{Value: string(order.StatusCancelled)},
			":r":         &types.AttributeValueMemberS{Value: reason},
			":e":         entryAV,
			":now":       &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
			":pending":   &types.AttributeValueMemberS{Value: string(order.StatusPending)},
			":confirmed": &types.AttributeValueMemberS{Value: string(order.StatusConfirmed)},
		},
	})
	if err == nil {
		return nil
	}

	var condFailed *types.ConditionalCheckFailedException
	if !errors.As(err, &condFailed) {
		return err
	}
	if _, getErr := s.GetOrder(ctx, id); getErr != nil {
		return getErr
	}
	return order.ErrNotCancellable
}

func (s *DynamoStore) SetPaymentStatus(ctx context.Context, id string, status order.PaymentStatus) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.ordersTable),
		Key:                 orderKey(id),
		UpdateExpression:    aws.String("SET payment_status = :s, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":   &types.AttributeValueMemberS{Value: string(status)},
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	return asOrderNotFound(err)
}

// MarkPaid relies on a conditional write so two racing confirmations cannot
// both apply. A conditional failure on an existing order is the idempotent
// short-circuit, not an error.
func (s *DynamoStore) MarkPaid(ctx context.Context, id string, details order.PaymentDetails) (bool, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return false, err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.ordersTable),
		Key:                 orderKey(id),
		UpdateExpression:    aws.String("SET payment_status = :paid, payment_details = :d, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND payment_status <> :paid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":paid": &types.AttributeValueMemberS{Value: string(order.PaymentPaid)},
			":d":    &types.AttributeValueMemberS{Value: string(detailsJSON)},
			":now":  &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if err == nil {
		return true, nil
	}

	var condFailed *types.ConditionalCheckFailedException
	if !errors.As(err, &condFailed) {
		return false, err
	}

	if _, getErr := s.GetOrder(ctx, id); getErr != nil {
		return false, getErr
	}
	return false, nil
}

func orderKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func asOrderNotFound(err error) error {
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return order.ErrOrderNotFound
	}
	return err
}

// historyEntryValue builds the single-element list that list_append expects.
func historyEntryValue(entry order.HistoryEntry) (types.AttributeValue, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberL{
		Value: []types.AttributeValue{&types.AttributeValueMemberS{Value: string(entryJSON)}},
	}, nil
}

func marshalOrder(o *order.Order) (*dynamoOrder, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, err
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return nil, err
	}

	item := &dynamoOrder{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerID:    o.CustomerID,
		Items:         string(items),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		OrderStatus:   string(o.Status),
		Subtotal:      o.Subtotal,
		ShippingFee:   o.ShippingFee,
		Tax:           o.Tax,
		Total:         o.Total,
		Notes:         o.Notes,
		CancelReason:  o.CancelReason,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339Nano),
	}
	item.ShippingAddress = string(address)

	item.StatusHistory = make([]string, 0, len(o.StatusHistory))
	for _, entry := range o.StatusHistory {
		entryJSON, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		item.StatusHistory = append(item.StatusHistory, string(entryJSON))
	}

	if o.PaymentDetails != nil {
		details, err := json.Marshal(o.PaymentDetails)
		if err != nil {
			return nil, err
		}
		item.PaymentDetails = string(details)
	}
	return item, nil
}

// unmarshalOrder rebuilds an order. The status history is stored as a native
// DynamoDB list of JSON strings so list_append can extend it atomically.
func unmarshalOrder(item map[string]types.AttributeValue) (*order.Order, error) {
	var do dynamoOrder
	if err := attributevalue.UnmarshalMap(item, &do); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}

	o := &order.Order{
		ID:            do.ID,
		OrderNumber:   do.OrderNumber,
		CustomerID:    do.CustomerID,
		PaymentMethod: order.PaymentMethod(do.PaymentMethod),
		PaymentStatus: order.PaymentStatus(do.PaymentStatus),
		Status:        order.Status(do.OrderStatus),
		Subtotal:      do.Subtotal,
		ShippingFee:   do.ShippingFee,
		Tax:           do.Tax,
		Total:         do.Total,
		Notes:         do.Notes,
		CancelReason:  do.CancelReason,
	}
	if err := json.Unmarshal([]byte(do.Items), &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(do.ShippingAddress), &o.ShippingAddress); err != nil {
		return nil, err
	}
	if do.PaymentDetails != "" {
		o.PaymentDetails = &order.PaymentDetails{}
		if err := json.Unmarshal([]byte(do.PaymentDetails), o.PaymentDetails); err != nil {
			return nil, err
		}
	}

	for _, raw := range do.StatusHistory {
		var entry order.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, err
		}
		o.StatusHistory = append(o.StatusHistory, entry)
	}

	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, do.CreatedAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, do.UpdatedAt)
	return o, nil
}
