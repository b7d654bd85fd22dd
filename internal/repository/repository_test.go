package repository

import (
	"context"
	"testing"
	"time"

	"orderfinance/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestOrderRepository_UpdateCostResult(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	result := CostResult{
		CalculatedCosts:  datatypes.JSON(`{"costs":[]}`),
		TotalCosts:       decimal.NewFromInt(10),
		TotalCommissions: decimal.NewFromInt(5),
		NetRevenue:       decimal.NewFromInt(85),
		CalculatedAt:     time.Now(),
		PaymentFeeLinks:  datatypes.JSON(`{}`),
	}

	mock.ExpectExec(`UPDATE "orders" SET .*"calculated_costs".*"payment_fee_links"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateCostResult(ctx, uuid.New(), uuid.New(), result))

	mock.ExpectExec(`UPDATE "orders" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateCostResult(ctx, uuid.New(), uuid.New(), result)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	mock.ExpectExec(`UPDATE "orders" SET`).
		WillReturnError(assert.AnError)
	err = repo.UpdateCostResult(ctx, uuid.New(), uuid.New(), result)
	assert.ErrorIs(t, err, assert.AnError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_FindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE tenant_id = \$1 AND id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ResetPaymentFeeLinksClearsCalculatedAt(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec(`UPDATE "orders" SET "costs_calculated_at"=\$1,"payment_fee_links"=\$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ResetPaymentFeeLinks(context.Background(), uuid.New(), uuid.New(), datatypes.JSON(`{"PIX":"x"}`))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRuleRepository_ListActiveKeepsEvaluationOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeeRuleRepository(db)
	first, second := uuid.New(), uuid.New()

	rows := sqlmock.NewRows([]string{"id", "name", "category", "value_type", "value", "condition_values", "is_active", "position"}).
		AddRow(first, "Commission", model.RuleCategoryCommission, model.ValueTypePercentage, "12.5", "{}", true, 0).
		AddRow(second, "Card", model.RuleCategoryPaymentMethod, model.ValueTypePercentage, "2.99", "{CREDIT_CARD,DEBIT}", true, 1)

	mock.ExpectQuery(`SELECT \* FROM "fee_rules" WHERE .*tenant_id = \$1 AND is_active = \$2.* ORDER BY position ASC, created_at ASC, id ASC`).
		WillReturnRows(rows)

	rules, err := repo.ListActive(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, first, rules[0].ID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(rules[0].Value))
	assert.Equal(t, []string{"CREDIT_CARD", "DEBIT"}, []string(rules[1].ConditionValues))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRuleRepository_DeleteIsSoftAndTenantScoped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeeRuleRepository(db)

	mock.ExpectExec(`UPDATE "fee_rules" SET "deleted_at"=\$1 WHERE \(id = \$2 AND tenant_id = \$3\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(context.Background(), uuid.New(), uuid.New()))

	mock.ExpectExec(`UPDATE "fee_rules" SET "deleted_at"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New(), uuid.New()), gorm.ErrRecordNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRuleRepository_NextPosition(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeeRuleRepository(db)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), -1\) FROM "fee_rules"`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))

	pos, err := repo.NextPosition(context.Background(), uuid.New(), model.RuleCategoryTax)
	require.NoError(t, err)
	assert.Equal(t, 4, pos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemMappingRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItemMappingRepository(db)

	mock.ExpectQuery(`INSERT INTO "item_mappings" .* ON CONFLICT \("order_item_id","add_on_index"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	err := repo.Upsert(context.Background(), &model.ItemMapping{
		TenantID:    uuid.New(),
		OrderItemID: uuid.New(),
		AddOnIndex:  1,
		ProductID:   uuid.New(),
		Quantity:    decimal.NewFromInt(1),
		Multiplier:  decimal.NewFromInt(1),
		IsFraction:  true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemMappingRepository_ListByItemForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItemMappingRepository(db)
	item := uuid.New()

	_, err := repo.ListByItemForUpdate(context.Background(), item)
	assert.ErrorIs(t, err, ErrNoTransaction)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "item_mappings" WHERE order_item_id = \$1 ORDER BY add_on_index ASC FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_item_id", "add_on_index", "quantity", "is_fraction"}).
			AddRow(uuid.New(), item, 0, "0.5", true).
			AddRow(uuid.New(), item, 2, "0.5", true))
	mock.ExpectCommit()

	var mappings []model.ItemMapping
	err = NewTransactionManager(db).RunInTx(context.Background(), func(txCtx context.Context) error {
		var err error
		mappings, err = repo.ListByItemForUpdate(txCtx, item)
		return err
	})
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, 2, mappings[1].AddOnIndex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_GetPeriodSummary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db)

	mock.ExpectQuery(`SELECT\s+TO_CHAR\(DATE_TRUNC\(\$1, o.placed_at\)`).
		WillReturnRows(sqlmock.NewRows([]string{"period", "orders", "gross_total", "total_costs", "total_commissions", "net_revenue"}).
			AddRow("2026-03-01", 12, 1500.0, 120.0, 180.0, 1150.5).
			AddRow("2026-03-02", 3, 200.0, 10.0, 20.0, 165.0))

	rows, err := repo.GetPeriodSummary(context.Background(), uuid.New(), "day", time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 12, rows[0].Orders)
	assert.Equal(t, 1150.5, rows[0].NetRevenue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "audit_logs" WHERE tenant_id = \$1 AND action = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "audit_logs" WHERE tenant_id = \$1 AND action = \$2 ORDER BY created_at desc LIMIT \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "entity_id"}).
			AddRow(uuid.New(), model.ActionCalculateOrderCosts, "order-1"))

	logs, total, err := repo.List(context.Background(), uuid.New(), AuditFilter{Action: model.ActionCalculateOrderCosts}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "order-1", logs[0].EntityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
