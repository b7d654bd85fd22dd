package model

import (
	"time"
)

// PeriodSummary aggregates the persisted order cost summaries of one period (DRE view)
type PeriodSummary struct {
	Period           string  `json:"period"`
	Orders           int     `json:"orders"`
	GrossTotal       float64 `json:"gross_total"`
	TotalCosts       float64 `json:"total_costs"`
	TotalCommissions float64 `json:"total_commissions"`
	NetRevenue       float64 `json:"net_revenue"`
}

// SummaryResponse wraps the period rows with the requested range
type SummaryResponse struct {
	GroupBy            string          `json:"group_by"`
	Periods            []PeriodSummary `json:"periods"`
	TimeRangeStartDate time.Time       `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time       `json:"time_range_end_date"`
}

// ProductRanking represents a ranked product in the ABC curve
type ProductRanking struct {
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	ProductSKU    string  `json:"product_sku"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
	SharePercent  float64 `json:"share_percent"`
	Cumulative    float64 `json:"cumulative_percent"`
	Class         string  `json:"class"` // A, B, C
}
