package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"orderfinance/internal/model"
	"orderfinance/internal/repository"

	"github.com/google/uuid"
)

// ABC curve thresholds on cumulative value share
const (
	abcClassALimit = 80.0
	abcClassBLimit = 95.0
)

// --- DTOs ---

type ReportFilter struct {
	GroupBy   string // day, week, month, quarter, year
	StartDate time.Time
	EndDate   time.Time
}

// --- Interface ---

type ReportService interface {
	Summary(ctx context.Context, tenantID uuid.UUID, filter ReportFilter) (model.SummaryResponse, error)
	ABCCurve(ctx context.Context, tenantID uuid.UUID, filter ReportFilter) ([]model.ProductRanking, error)
}

type reportService struct {
	repo repository.ReportRepository
}

func NewReportService(repo repository.ReportRepository) ReportService {
	return &reportService{repo: repo}
}

// --- Implementation ---

// Summary aggregates the persisted order cost summaries per period.
func (s *reportService) Summary(ctx context.Context, tenantID uuid.UUID, filter ReportFilter) (model.SummaryResponse, error) {
	groupBy := filter.GroupBy
	switch groupBy {
	case "day", "week", "month", "quarter", "year":
		// valid
	default:
		groupBy = "month"
	}
	start, end := reportRange(filter)

	rows, err := s.repo.GetPeriodSummary(ctx, tenantID, groupBy, start, end)
	if err != nil {
		return model.SummaryResponse{}, fmt.Errorf("failed to build summary: %w", err)
	}

	periods := make([]model.PeriodSummary, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, model.PeriodSummary{
			Period:           r.Period,
			Orders:           r.Orders,
			GrossTotal:       round2(r.GrossTotal),
			TotalCosts:       round2(r.TotalCosts),
			TotalCommissions: round2(r.TotalCommissions),
			NetRevenue:       round2(r.NetRevenue),
		})
	}

	return model.SummaryResponse{
		GroupBy:            groupBy,
		Periods:            periods,
		TimeRangeStartDate: start,
		TimeRangeEndDate:   end,
	}, nil
}

// ABCCurve ranks products by sold value and classifies them: A up to 80% of the cumulative
// value, B up to 95%, C for the tail.
func (s *reportService) ABCCurve(ctx context.Context, tenantID uuid.UUID, filter ReportFilter) ([]model.ProductRanking, error) {
	start, end := reportRange(filter)
	rankings, err := s.repo.GetProductRanking(ctx, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to build abc curve: %w", err)
	}
	return classifyABC(rankings), nil
}

func classifyABC(rankings []model.ProductRanking) []model.ProductRanking {
	total := 0.0
	for _, r := range rankings {
		total += r.TotalValue
	}
	if total <= 0 {
		for i := range rankings {
			rankings[i].Class = "C"
		}
		return rankings
	}

	cumulative := 0.0
	for i := range rankings {
		share := rankings[i].TotalValue / total * 100
		// classify on the share accumulated before this product so the product crossing
		// the threshold still belongs to the higher class
		switch {
		case cumulative < abcClassALimit:
			rankings[i].Class = "A"
		case cumulative < abcClassBLimit:
			rankings[i].Class = "B"
		default:
			rankings[i].Class = "C"
		}
		cumulative += share
		rankings[i].SharePercent = round2(share)
		rankings[i].Cumulative = round2(cumulative)
	}
	return rankings
}

// reportRange defaults to the last 30 days ending now.
func reportRange(filter ReportFilter) (time.Time, time.Time) {
	end := filter.EndDate
	if end.IsZero() {
		end = time.Now()
	}
	start := filter.StartDate
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}
	return start, end
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
