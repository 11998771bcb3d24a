package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"variant-orchestrator/core/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
)

// priceListEntry is the subset of the pricing API's product document we
// read: the instance attributes and the on-demand USD rate
type priceListEntry struct {
	Product struct {
		Attributes map[string]string `json:"attributes"`
	} `json:"product"`
	Terms struct {
		OnDemand map[string]struct {
			PriceDimensions map[string]struct {
				PricePerUnit map[string]string `json:"pricePerUnit"`
			} `json:"priceDimensions"`
		} `json:"OnDemand"`
	} `json:"terms"`
}

// FetchHourlyPrices fetches on-demand hosting prices for the client's
// region from the AWS Pricing API
func (c *Client) FetchHourlyPrices(ctx context.Context) ([]models.InstancePrice, error) {
	var prices []models.InstancePrice
	var nextToken *string

	for {
		out, err := c.pricing.GetProducts(ctx, &pricing.GetProductsInput{
			ServiceCode: aws.String("AmazonSageMaker"),
			Filters: []types.Filter{
				{
					Field: aws.String("regionCode"),
					Type:  types.FilterTypeTermMatch,
					Value: aws.String(c.region),
				},
			},
			MaxResults: aws.Int32(100),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch hosting prices: %w", err)
		}

		for _, doc := range out.PriceList {
			var entry priceListEntry
			if err := json.Unmarshal([]byte(doc), &entry); err != nil {
				continue
			}

			instanceType := entry.Product.Attributes["instanceName"]
			if instanceType == "" {
				continue
			}
			// Only hosting capacity; training and notebook SKUs share
			// the same service code.
			if entry.Product.Attributes["platoinstancetype"] != "Hosting" {
				continue
			}

			rate, ok := onDemandUSD(entry)
			if !ok {
				continue
			}

			prices = append(prices, models.InstancePrice{
				InstanceType: instanceType,
				Region:       c.region,
				PricePerHour: rate,
				LastUpdated:  time.Now(),
			})
		}

		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		nextToken = out.NextToken
	}

	return prices, nil
}

func onDemandUSD(entry priceListEntry) (float64, bool) {
	for _, term := range entry.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			raw, ok := dim.PricePerUnit["USD"]
			if !ok {
				continue
			}
			rate, err := strconv.ParseFloat(raw, 64)
			if err != nil || rate <= 0 {
				continue
			}
			return rate, true
		}
	}
	return 0, false
}
