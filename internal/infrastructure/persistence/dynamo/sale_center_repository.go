package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/closeout/backend/internal/domain/closeout"
)

// Attribute names of the sale-centers table
const (
	attrSaleCenterPartition = "pk"
)

// saleCenterItem is one till row of the sale-centers table
type saleCenterItem struct {
	Partition string       `dynamodbav:"pk"`
	ID        saleCenterID `dynamodbav:"id"`
	Name      string       `dynamodbav:"name"`
}

// saleCenterID accepts till ids stored either as strings or as numbers
type saleCenterID string

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler
func (id *saleCenterID) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		*id = saleCenterID(v.Value)
	case *types.AttributeValueMemberN:
		*id = saleCenterID(v.Value)
	case *types.AttributeValueMemberNULL:
		*id = ""
	default:
		return fmt.Errorf("dynamo: cannot decode %T as a sale center id", av)
	}
	return nil
}

// Ensure SaleCenterRepository implements closeout.SaleCenterRepository
var _ closeout.SaleCenterRepository = (*SaleCenterRepository)(nil)

// SaleCenterRepository reads till display names, all of which live under a
// single partition value
type SaleCenterRepository struct {
	api       API
	table     string
	partition string
}

// NewSaleCenterRepository creates a new SaleCenterRepository
func NewSaleCenterRepository(api API, table, partition string) *SaleCenterRepository {
	return &SaleCenterRepository{api: api, table: table, partition: partition}
}

// FindNames returns till id -> display name. Rows without a name are skipped.
func (r *SaleCenterRepository) FindNames(ctx context.Context) (map[string]string, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(attrSaleCenterPartition).Equal(expression.Value(r.partition))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("dynamo: failed to build query: %w", err)
	}

	names := make(map[string]string)
	paginator := dynamodb.NewQueryPaginator(r.api, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, readError(err)
		}
		var items []saleCenterItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("dynamo: failed to unmarshal sale centers: %w", err)
		}
		for _, it := range items {
			if it.ID != "" && it.Name != "" {
				names[string(it.ID)] = it.Name
			}
		}
	}
	return names, nil
}
