//go:build ignore

package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"storefront/internal/coupon"
)

// generateSampleCoupons writes a gzipped JSON-lines coupon catalog that the
// API seeds on start-up (COUPON_FILES). Run with:
//
//	go run scripts/generate_sample_coupons.go
func main() {
	out := filepath.Join("data", "coupons.jsonl.gz")

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	coupons := []coupon.Coupon{
		{
			ID:             "c-save5000",
			Code:           "SAVE5000",
			Name:           "5,000 off orders over 50,000",
			Type:           coupon.TypeFixedAmount,
			DiscountValue:  5000,
			MinOrderAmount: 50000,
			Usage:          coupon.Usage{Limit: 1000, LimitPerUser: 1},
			Validity:       coupon.Validity{IsAlwaysValid: true},
			Status:         coupon.StatusActive,
		},
		{
			ID:                "c-newbie10",
			Code:              "NEWBIE10",
			Name:              "10% off the first order",
			Type:              coupon.TypePercentage,
			DiscountValue:     10,
			MaxDiscountAmount: 10000,
			Usage:             coupon.Usage{Limit: 10000, LimitPerUser: 1},
			Validity:          coupon.Validity{IsAlwaysValid: true},
			Conditions:        coupon.Conditions{coupon.FirstOrderCondition{}},
			Status:            coupon.StatusActive,
		},
		{
			ID:            "c-shoes20",
			Code:          "SHOES20",
			Name:          "20% off shoes",
			Type:          coupon.TypePercentage,
			DiscountValue: 20,
			Usage:         coupon.Usage{Limit: 500},
			Validity: coupon.Validity{
				StartDate: now.AddDate(0, 0, -1),
				EndDate:   now.AddDate(0, 1, 0),
			},
			Conditions: coupon.Conditions{coupon.CategoryCondition{IDs: []string{"shoes"}}},
			Target:     coupon.Target{Categories: []string{"shoes"}, ExcludeDiscountedItems: true},
			Status:     coupon.StatusActive,
		},
		{
			ID:         "c-freeship",
			Code:       "FREESHIP",
			Name:       "Free shipping over 30,000",
			Type:       coupon.TypeFreeShipping,
			Usage:      coupon.Usage{Limit: 5000},
			Validity:   coupon.Validity{IsAlwaysValid: true},
			Conditions: coupon.Conditions{coupon.MinOrderAmountCondition{Value: 30000}},
			Status:     coupon.StatusActive,
		},
		{
			ID:            "c-winter",
			Code:          "WINTER2024",
			Name:          "Last season's sale",
			Type:          coupon.TypePercentage,
			DiscountValue: 15,
			Usage:         coupon.Usage{Limit: 100},
			Validity: coupon.Validity{
				StartDate: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
			},
			Status: coupon.StatusActive,
		},
	}

	if err := writeCatalog(out, coupons); err != nil {
		log.Fatalf("Failed to create %s: %v", out, err)
	}

	fmt.Printf("Created %s with %d coupons\n", out, len(coupons))
	for _, c := range coupons {
		fmt.Printf("  - %-10s %s\n", c.Code, c.Name)
	}
}

func writeCatalog(filePath string, coupons []coupon.Coupon) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	enc := json.NewEncoder(gzipWriter)
	for i := range coupons {
		if err := coupons[i].Check(); err != nil {
			return fmt.Errorf("coupon %s: %w", coupons[i].Code, err)
		}
		if err := enc.Encode(&coupons[i]); err != nil {
			return fmt.Errorf("failed to write coupon: %w", err)
		}
	}

	return nil
}
