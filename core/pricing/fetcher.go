package pricing

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"variant-orchestrator/core/models"
)

// PriceSource fetches hourly hosting prices from the cloud pricing API
type PriceSource interface {
	FetchHourlyPrices(ctx context.Context) ([]models.InstancePrice, error)
}

// Fetcher fetches and caches hosting instance pricing in postgres
type Fetcher struct {
	source   PriceSource
	db       *sql.DB
	region   string
	cacheTTL time.Duration
}

// NewFetcher creates a new pricing fetcher
func NewFetcher(source PriceSource, db *sql.DB, region string) *Fetcher {
	if db == nil {
		return nil
	}
	return &Fetcher{
		source:   source,
		db:       db,
		region:   region,
		cacheTTL: 15 * time.Minute,
	}
}

// StartRefreshWorker starts a background worker to refresh pricing from the
// pricing API
func (f *Fetcher) StartRefreshWorker(ctx context.Context) {
	ticker := time.NewTicker(f.cacheTTL)
	defer ticker.Stop()

	f.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.refresh(ctx)
		}
	}
}

func (f *Fetcher) refresh(ctx context.Context) {
	if f.source == nil {
		return
	}
	prices, err := f.source.FetchHourlyPrices(ctx)
	if err != nil {
		log.Printf("Failed to refresh hosting prices: %v", err)
		return
	}

	for _, p := range prices {
		query := `
			INSERT INTO instance_pricing (region, instance_type, price_per_hour, last_updated)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (region, instance_type)
			DO UPDATE SET
				price_per_hour = EXCLUDED.price_per_hour,
				last_updated = NOW()
		`
		if _, err := f.db.ExecContext(ctx, query, p.Region, p.InstanceType, p.PricePerHour); err != nil {
			// Log error but continue
			log.Printf("Failed to store price for %s: %v", p.InstanceType, err)
			continue
		}
	}
}

// HourlyPrice returns the cached hourly price for an instance type
func (f *Fetcher) HourlyPrice(ctx context.Context, instanceType string) (float64, error) {
	query := `
		SELECT price_per_hour
		FROM instance_pricing
		WHERE region = $1 AND instance_type = $2
		ORDER BY last_updated DESC
		LIMIT 1
	`

	var price float64
	err := f.db.QueryRowContext(ctx, query, f.region, instanceType).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no price cached for instance type %q in %s", instanceType, f.region)
	}
	if err != nil {
		return 0, err
	}
	return price, nil
}

// EstimateEndpointCost estimates the endpoint's hourly hosting cost as the
// sum over variants of instance price times instance count
func (f *Fetcher) EstimateEndpointCost(ctx context.Context, ep *models.Endpoint) (float64, error) {
	total := 0.0
	for _, v := range ep.Variants {
		price, err := f.HourlyPrice(ctx, v.Compute.InstanceType)
		if err != nil {
			return 0, err
		}
		total += price * float64(v.Compute.InstanceCount)
	}
	return total, nil
}
