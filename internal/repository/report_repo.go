package repository

import (
	"context"
	"fmt"
	"time"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PeriodSummaryRow struct {
	Period           string  `gorm:"column:period"`
	Orders           int     `gorm:"column:orders"`
	GrossTotal       float64 `gorm:"column:gross_total"`
	TotalCosts       float64 `gorm:"column:total_costs"`
	TotalCommissions float64 `gorm:"column:total_commissions"`
	NetRevenue       float64 `gorm:"column:net_revenue"`
}

type ReportRepository interface {
	GetPeriodSummary(ctx context.Context, tenantID uuid.UUID, groupBy string, start, end time.Time) ([]PeriodSummaryRow, error)
	GetProductRanking(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]model.ProductRanking, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// GetPeriodSummary aggregates the persisted order summary fields per day/week/month.
// Orders never computed contribute their gross total and zero costs.
func (r *reportRepository) GetPeriodSummary(ctx context.Context, tenantID uuid.UUID, groupBy string, start, end time.Time) ([]PeriodSummaryRow, error) {
	query := `
		SELECT
			TO_CHAR(DATE_TRUNC($1, o.placed_at), 'YYYY-MM-DD') AS period,
			COUNT(*) AS orders,
			COALESCE(SUM(o.gross_total), 0) AS gross_total,
			COALESCE(SUM(o.total_costs), 0) AS total_costs,
			COALESCE(SUM(o.total_commissions), 0) AS total_commissions,
			COALESCE(SUM(o.net_revenue), 0) AS net_revenue
		FROM orders o
		WHERE o.tenant_id = $2
		  AND o.placed_at >= $3
		  AND o.placed_at <= $4
		GROUP BY DATE_TRUNC($1, o.placed_at)
		ORDER BY period
	`

	var rows []PeriodSummaryRow
	if err := GetDB(ctx, r.db).Raw(query, groupBy, tenantID, start, end).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query period summary: %w", err)
	}
	return rows, nil
}

// GetProductRanking sums sold value per internal product, highest value first.
func (r *reportRepository) GetProductRanking(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]model.ProductRanking, error) {
	var rankings []model.ProductRanking
	if err := GetDB(ctx, r.db).Table("order_items").
		Select("products.id as product_id, products.name as product_name, products.sku as product_sku, SUM(order_items.quantity) as total_quantity, SUM(order_items.quantity * order_items.unit_price) as total_value").
		Joins("JOIN products ON products.id = order_items.product_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.tenant_id = ? AND orders.placed_at >= ? AND orders.placed_at <= ?", tenantID, start, end).
		Group("products.id, products.name, products.sku").
		Order("total_value DESC").
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query product ranking: %w", err)
	}
	return rankings, nil
}
