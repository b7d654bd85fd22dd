package service

import (
	"context"
	"fmt"
	"strings"

	"orderfinance/internal/costing"
	"orderfinance/internal/model"
	"orderfinance/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type ClassifyAddOnRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	Multiplier string `json:"multiplier"` // Decimal string, defaults to 1
}

type ItemMappingResponse struct {
	ID          string `json:"id"`
	OrderItemID string `json:"order_item_id"`
	AddOnIndex  int    `json:"add_on_index"`
	ProductID   string `json:"product_id"`
	Quantity    string `json:"quantity"`
	Multiplier  string `json:"multiplier"`
	IsFraction  bool   `json:"is_fraction"`
}

// --- Interface ---

type ItemMappingService interface {
	ClassifyAddOn(ctx context.Context, tenantID uuid.UUID, itemID string, addOnIndex int, req ClassifyAddOnRequest, userID string) ([]ItemMappingResponse, error)
	UnclassifyAddOn(ctx context.Context, tenantID uuid.UUID, itemID string, addOnIndex int, userID string) ([]ItemMappingResponse, error)
}

type itemMappingService struct {
	txManager repository.TransactionManager
	mappings  repository.ItemMappingRepository
	products  repository.ProductRepository
	audit     AuditService
	logger    *zap.Logger
}

func NewItemMappingService(
	txManager repository.TransactionManager,
	mappings repository.ItemMappingRepository,
	products repository.ProductRepository,
	audit AuditService,
	logger *zap.Logger,
) ItemMappingService {
	return &itemMappingService{
		txManager: txManager,
		mappings:  mappings,
		products:  products,
		audit:     audit,
		logger:    logger,
	}
}

// --- Implementation ---

// ClassifyAddOn maps one add-on of an item to a product as a fractional share and
// redistributes the unit across every classified add-on of the item.
func (s *itemMappingService) ClassifyAddOn(ctx context.Context, tenantID uuid.UUID, itemID string, addOnIndex int, req ClassifyAddOnRequest, userID string) ([]ItemMappingResponse, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, invalid("invalid product id %q", req.ProductID)
	}
	multiplier := decimal.NewFromInt(1)
	if m := strings.TrimSpace(req.Multiplier); m != "" {
		multiplier, err = decimal.NewFromString(m)
		if err != nil || !multiplier.IsPositive() {
			return nil, invalid("multiplier must be a positive decimal")
		}
	}

	var result []model.ItemMapping
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.findItem(txCtx, tenantID, itemID)
		if err != nil {
			return err
		}
		if addOnIndex < 0 || addOnIndex >= len(item.DecodeAddOns()) {
			return invalid("item has no add-on at index %d", addOnIndex)
		}
		if _, err := s.products.FindByID(txCtx, tenantID, productID); err != nil {
			return notFound(err, ErrProductNotFound, "fetch product")
		}

		// lock the item's mappings before changing the classified set
		if _, err := s.mappings.ListByItemForUpdate(txCtx, item.ID); err != nil {
			return fmt.Errorf("failed to lock item mappings: %w", err)
		}

		mapping := model.ItemMapping{
			TenantID:    tenantID,
			OrderItemID: item.ID,
			AddOnIndex:  addOnIndex,
			ProductID:   productID,
			Quantity:    decimal.NewFromInt(1),
			Multiplier:  multiplier,
			IsFraction:  true,
		}
		if err := s.mappings.Upsert(txCtx, &mapping); err != nil {
			return fmt.Errorf("failed to save item mapping: %w", err)
		}

		result, err = s.reallocate(txCtx, item.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, tenantID, userID, model.ActionClassifyAddOn, itemID, "",
		map[string]interface{}{"add_on_index": addOnIndex, "product_id": productID.String(), "classified": len(result)})

	return toItemMappingResponses(result), nil
}

// UnclassifyAddOn removes the add-on's mapping and redistributes the unit across the rest.
func (s *itemMappingService) UnclassifyAddOn(ctx context.Context, tenantID uuid.UUID, itemID string, addOnIndex int, userID string) ([]ItemMappingResponse, error) {
	var result []model.ItemMapping
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.findItem(txCtx, tenantID, itemID)
		if err != nil {
			return err
		}
		if _, err := s.mappings.ListByItemForUpdate(txCtx, item.ID); err != nil {
			return fmt.Errorf("failed to lock item mappings: %w", err)
		}
		if err := s.mappings.Delete(txCtx, item.ID, addOnIndex); err != nil {
			return notFound(err, ErrMappingNotFound, "delete item mapping")
		}

		result, err = s.reallocate(txCtx, item.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, tenantID, userID, model.ActionUnclassifyAddOn, itemID, "",
		map[string]interface{}{"add_on_index": addOnIndex, "classified": len(result)})

	return toItemMappingResponses(result), nil
}

func (s *itemMappingService) findItem(ctx context.Context, tenantID uuid.UUID, itemID string) (*model.OrderItem, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, invalid("invalid item id %q", itemID)
	}
	item, err := s.mappings.FindItem(ctx, tenantID, id)
	if err != nil {
		return nil, notFound(err, ErrItemNotFound, "fetch order item")
	}
	return item, nil
}

// reallocate recomputes fractional quantities of the item and writes back the ones that changed.
func (s *itemMappingService) reallocate(ctx context.Context, itemID uuid.UUID) ([]model.ItemMapping, error) {
	mappings, err := s.mappings.ListByItemForUpdate(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item mappings: %w", err)
	}

	changed := costing.AllocateFractions(mappings)
	if len(changed) == 0 {
		return mappings, nil
	}
	byID := make(map[uuid.UUID]decimal.Decimal, len(mappings))
	for _, m := range mappings {
		byID[m.ID] = m.Quantity
	}
	for _, id := range changed {
		if err := s.mappings.UpdateQuantity(ctx, id, byID[id]); err != nil {
			return nil, fmt.Errorf("failed to update mapping quantity: %w", err)
		}
	}

	s.logger.Debug("fractions reallocated",
		zap.String("item_id", itemID.String()),
		zap.Int("changed", len(changed)))
	return mappings, nil
}

func toItemMappingResponses(mappings []model.ItemMapping) []ItemMappingResponse {
	res := make([]ItemMappingResponse, 0, len(mappings))
	for _, m := range mappings {
		res = append(res, ItemMappingResponse{
			ID:          m.ID.String(),
			OrderItemID: m.OrderItemID.String(),
			AddOnIndex:  m.AddOnIndex,
			ProductID:   m.ProductID.String(),
			Quantity:    m.Quantity.StringFixed(costing.FractionPrecision),
			Multiplier:  m.Multiplier.StringFixed(4),
			IsFraction:  m.IsFraction,
		})
	}
	return res
}
