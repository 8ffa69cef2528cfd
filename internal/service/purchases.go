package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/finance"
	"resaleledger/backend/internal/store"
)

func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}

	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return domain.Purchase{}, fmt.Errorf("%w: product_id is required", store.ErrValidation)
	}
	if req.PaidValue == nil {
		return domain.Purchase{}, fmt.Errorf("%w: paid_value is required", store.ErrValidation)
	}
	if err := finance.ValidateRate("points_per_real", req.PointsPerReal); err != nil {
		return domain.Purchase{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	product, err := s.repo.GetProduct(ctx, actor.UserID, productID)
	if err != nil {
		return domain.Purchase{}, err
	}
	if !product.Active {
		return domain.Purchase{}, fmt.Errorf("%w: product %s is inactive", store.ErrValidation, productID)
	}

	var points int64
	switch {
	case req.Points != nil:
		points = *req.Points
	case req.PointsPerReal > 0:
		points, err = finance.EarnedPoints(*req.PaidValue, req.PointsPerReal)
		if err != nil {
			return domain.Purchase{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
	}

	inputs := finance.CostInputs{
		PaidValue:       *req.PaidValue,
		Shipping:        req.Shipping,
		AdvanceDiscount: req.AdvanceDiscount,
		Cashback:        req.Cashback,
		Points:          points,
		Thousand:        req.Thousand,
	}
	if err := inputs.Validate(); err != nil {
		return domain.Purchase{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	purchaseDate := s.now()
	if req.PurchaseDate != nil && !req.PurchaseDate.IsZero() {
		purchaseDate = req.PurchaseDate.UTC()
	}
	if req.DeliveryDate != nil && req.DeliveryDate.Before(purchaseDate) {
		return domain.Purchase{}, fmt.Errorf("%w: delivery_date is before purchase_date", store.ErrValidation)
	}

	account := strings.TrimSpace(req.Account)
	clubAndStore := strings.TrimSpace(req.ClubAndStore)
	s.checkReference(account, clubAndStore)

	purchase := domain.Purchase{
		UserID:          actor.UserID,
		ProductID:       productID,
		PaidValue:       inputs.PaidValue,
		Shipping:        inputs.Shipping,
		AdvanceDiscount: inputs.AdvanceDiscount,
		Cashback:        inputs.Cashback,
		Points:          inputs.Points,
		Thousand:        inputs.Thousand,
		PointsPerReal:   req.PointsPerReal,
		Account:         account,
		ClubAndStore:    clubAndStore,
		OrderNumber:     strings.TrimSpace(req.OrderNumber),
		PurchaseDate:    purchaseDate,
		DeliveryDate:    utcPtr(req.DeliveryDate),
		FinalCost:       finance.FinalCost(inputs),
		PointsReceived:  req.PointsReceived,
		Status:          domain.PurchaseStatusPending,
	}

	created, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		return domain.Purchase{}, err
	}

	s.invalidateStock(ctx, actor.UserID)
	s.logAudit(ctx, "purchase_create", "purchase", created.ID, fmt.Sprintf("product=%s,paid=%.2f,final_cost=%.2f,order=%s", created.ProductID, created.PaidValue, created.FinalCost, created.OrderNumber))
	return *created, nil
}

func (s *Service) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}
	purchase, err := s.repo.GetPurchase(ctx, actor.UserID, strings.TrimSpace(id))
	if err != nil {
		return domain.Purchase{}, err
	}
	return *purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" {
		filter.Status = domain.PurchaseStatus(strings.ToUpper(strings.TrimSpace(string(filter.Status))))
		if !filter.Status.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", store.ErrValidation, filter.Status)
		}
	}
	filter.ProductID = strings.TrimSpace(filter.ProductID)
	filter.OrderNumber = strings.TrimSpace(filter.OrderNumber)
	return s.repo.ListPurchases(ctx, actor.UserID, filter)
}

// MarkDelivered moves a PENDING purchase into stock. An explicit delivery
// date wins, then an earlier recorded one, then now.
func (s *Service) MarkDelivered(ctx context.Context, id string, req domain.DeliverRequest) (domain.Purchase, error) {
	return s.transition(ctx, id, "purchase_deliver", func(p *domain.Purchase) error {
		if err := requireTransition(p.Status, domain.PurchaseStatusDelivered); err != nil {
			return err
		}
		switch {
		case req.DeliveryDate != nil && !req.DeliveryDate.IsZero():
			if req.DeliveryDate.Before(p.PurchaseDate) {
				return fmt.Errorf("%w: delivery_date is before purchase_date", store.ErrValidation)
			}
			p.DeliveryDate = utcPtr(req.DeliveryDate)
		case p.DeliveryDate == nil:
			now := s.now()
			p.DeliveryDate = &now
		}
		p.Status = domain.PurchaseStatusDelivered
		return nil
	})
}

func (s *Service) Sell(ctx context.Context, id string, req domain.SaleRequest) (domain.Purchase, error) {
	if req.SoldValue == nil {
		return domain.Purchase{}, fmt.Errorf("%w: sold_value is required", store.ErrValidation)
	}
	if err := finance.ValidateAmount("sold_value", *req.SoldValue); err != nil {
		return domain.Purchase{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	return s.transition(ctx, id, "purchase_sell", func(p *domain.Purchase) error {
		if err := requireTransition(p.Status, domain.PurchaseStatusSold); err != nil {
			return err
		}
		saleDate := s.now()
		if req.SaleDate != nil && !req.SaleDate.IsZero() {
			saleDate = req.SaleDate.UTC()
		}
		soldValue := *req.SoldValue
		p.Status = domain.PurchaseStatusSold
		p.SoldValue = &soldValue
		p.Customer = strings.TrimSpace(req.Customer)
		p.SerialNumber = strings.TrimSpace(req.SerialNumber)
		s.applySale(p, saleDate)
		return nil
	})
}

// CancelSale puts a sold unit back into stock and clears every sale field.
func (s *Service) CancelSale(ctx context.Context, id string) (domain.Purchase, error) {
	return s.transition(ctx, id, "purchase_cancel_sale", func(p *domain.Purchase) error {
		if p.Status != domain.PurchaseStatusSold {
			return fmt.Errorf("%w: only SOLD purchases can have their sale cancelled, got %s", store.ErrInvalidTransition, p.Status)
		}
		p.Status = domain.PurchaseStatusDelivered
		p.ClearSale()
		return nil
	})
}

func (s *Service) EditSale(ctx context.Context, id string, req domain.SaleEditRequest) (domain.Purchase, error) {
	if req.SoldValue != nil {
		if err := finance.ValidateAmount("sold_value", *req.SoldValue); err != nil {
			return domain.Purchase{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
	}

	return s.transition(ctx, id, "purchase_edit_sale", func(p *domain.Purchase) error {
		if p.Status != domain.PurchaseStatusSold {
			return fmt.Errorf("%w: only SOLD purchases have a sale to edit, got %s", store.ErrInvalidTransition, p.Status)
		}
		if req.SoldValue != nil {
			soldValue := *req.SoldValue
			p.SoldValue = &soldValue
		}
		if req.Customer != nil {
			p.Customer = strings.TrimSpace(*req.Customer)
		}
		if req.SerialNumber != nil {
			p.SerialNumber = strings.TrimSpace(*req.SerialNumber)
		}
		saleDate := s.now()
		if p.SaleDate != nil {
			saleDate = *p.SaleDate
		}
		if req.SaleDate != nil && !req.SaleDate.IsZero() {
			saleDate = req.SaleDate.UTC()
		}
		s.applySale(p, saleDate)
		return nil
	})
}

// UpdatePurchase patches purchase fields. Final cost is recomputed from the
// merged inputs and, for sold rows, so is profit.
func (s *Service) UpdatePurchase(ctx context.Context, id string, req domain.PurchaseUpdateRequest) (domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}

	if req.ProductID != nil {
		productID := strings.TrimSpace(*req.ProductID)
		if productID == "" {
			return domain.Purchase{}, fmt.Errorf("%w: product_id must not be empty", store.ErrValidation)
		}
		if _, err := s.repo.GetProduct(ctx, actor.UserID, productID); err != nil {
			return domain.Purchase{}, err
		}
		req.ProductID = &productID
	}
	if req.PointsPerReal != nil {
		if err := finance.ValidateRate("points_per_real", *req.PointsPerReal); err != nil {
			return domain.Purchase{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
	}
	if req.SoldValue != nil {
		if err := finance.ValidateAmount("sold_value", *req.SoldValue); err != nil {
			return domain.Purchase{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
	}

	return s.transition(ctx, id, "purchase_update", func(p *domain.Purchase) error {
		if req.SoldValue != nil && p.Status != domain.PurchaseStatusSold {
			return fmt.Errorf("%w: sold_value can only change on a SOLD purchase", store.ErrInvalidTransition)
		}

		if req.ProductID != nil {
			p.ProductID = *req.ProductID
		}
		applyFloat(&p.PaidValue, req.PaidValue)
		applyFloat(&p.Shipping, req.Shipping)
		applyFloat(&p.AdvanceDiscount, req.AdvanceDiscount)
		applyFloat(&p.Cashback, req.Cashback)
		applyFloat(&p.Thousand, req.Thousand)
		applyFloat(&p.PointsPerReal, req.PointsPerReal)
		if req.Points != nil {
			p.Points = *req.Points
		}
		if req.Account != nil {
			p.Account = strings.TrimSpace(*req.Account)
		}
		if req.ClubAndStore != nil {
			p.ClubAndStore = strings.TrimSpace(*req.ClubAndStore)
		}
		if req.OrderNumber != nil {
			p.OrderNumber = strings.TrimSpace(*req.OrderNumber)
		}
		if req.PurchaseDate != nil && !req.PurchaseDate.IsZero() {
			p.PurchaseDate = req.PurchaseDate.UTC()
		}
		if req.DeliveryDate != nil && !req.DeliveryDate.IsZero() {
			p.DeliveryDate = utcPtr(req.DeliveryDate)
		}
		if p.DeliveryDate != nil && p.DeliveryDate.Before(p.PurchaseDate) {
			return fmt.Errorf("%w: delivery_date is before purchase_date", store.ErrValidation)
		}

		inputs := finance.CostInputsOf(*p)
		if err := inputs.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		p.FinalCost = finance.FinalCost(inputs)

		if p.Status == domain.PurchaseStatusSold {
			if req.SoldValue != nil {
				soldValue := *req.SoldValue
				p.SoldValue = &soldValue
			}
			saleDate := s.now()
			if p.SaleDate != nil {
				saleDate = *p.SaleDate
			}
			s.applySale(p, saleDate)
		}
		s.checkReference(p.Account, p.ClubAndStore)
		return nil
	})
}

// DeletePurchase removes a purchase in any status. Removing a SOLD row drops
// its revenue and profit from every report, so the full sale is kept in the
// audit trail.
func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	// The audit detail is taken from the row as locked by the delete.
	var detail string
	removed, err := s.repo.DeletePurchase(ctx, actor.UserID, strings.TrimSpace(id), func(p domain.Purchase) error {
		detail = deleteDetail(p)
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateStock(ctx, actor.UserID)
	s.logAudit(ctx, "purchase_delete", "purchase", removed.ID, detail)
	return nil
}

func deleteDetail(p domain.Purchase) string {
	detail := fmt.Sprintf("status=%s,product=%s,final_cost=%.2f", p.Status, p.ProductID, p.FinalCost)
	if p.Status == domain.PurchaseStatusSold && p.SoldValue != nil {
		profit := 0.0
		if p.Profit != nil {
			profit = *p.Profit
		}
		detail += fmt.Sprintf(",reversed_sale=%.2f,reversed_profit=%.2f,month=%s", *p.SoldValue, profit, p.Month)
	}
	return detail
}

// SetPointsReceived marks the whole order group at once so a multi-unit order
// never ends up half received.
func (s *Service) SetPointsReceived(ctx context.Context, id string, received bool) (domain.PointsReceivedResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.PointsReceivedResponse{}, err
	}

	id = strings.TrimSpace(id)
	target, err := s.repo.GetPurchase(ctx, actor.UserID, id)
	if err != nil {
		return domain.PointsReceivedResponse{}, err
	}

	updated, err := s.repo.SetPointsReceived(ctx, actor.UserID, id, received)
	if err != nil {
		return domain.PointsReceivedResponse{}, err
	}

	s.logAudit(ctx, "points_received", "purchase", id, fmt.Sprintf("order=%s,received=%t,rows=%d", target.OrderNumber, received, updated))
	return domain.PointsReceivedResponse{
		PurchaseID:  id,
		OrderNumber: target.OrderNumber,
		Received:    received,
		Updated:     updated,
	}, nil
}

func (s *Service) transition(ctx context.Context, id string, action string, mutate store.PurchaseMutation) (domain.Purchase, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}

	var before domain.PurchaseStatus
	updated, err := s.repo.MutatePurchase(ctx, actor.UserID, strings.TrimSpace(id), func(p *domain.Purchase) error {
		before = p.Status
		return mutate(p)
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			log.Printf("[service] rejected %s on purchase %s: %v", action, id, err)
		}
		return domain.Purchase{}, err
	}

	s.invalidateStock(ctx, actor.UserID)
	detail := fmt.Sprintf("status=%s->%s,final_cost=%.2f", before, updated.Status, updated.FinalCost)
	if updated.SoldValue != nil && updated.Profit != nil {
		detail += fmt.Sprintf(",sold=%.2f,profit=%.2f", *updated.SoldValue, *updated.Profit)
	}
	s.logAudit(ctx, action, "purchase", updated.ID, detail)
	return *updated, nil
}

// applySale derives profit and the month label from the current sold value
// and final cost.
func (s *Service) applySale(p *domain.Purchase, saleDate time.Time) {
	saleDate = saleDate.UTC()
	p.SaleDate = &saleDate
	if p.SoldValue != nil {
		profit := finance.Profit(*p.SoldValue, p.FinalCost)
		p.Profit = &profit
	}
	p.Month = finance.MonthLabel(saleDate.In(s.loc), s.locale)
}

func requireTransition(from domain.PurchaseStatus, to domain.PurchaseStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: cannot move purchase from %s to %s", store.ErrInvalidTransition, from, to)
	}
	return nil
}

func applyFloat(dst *float64, value *float64) {
	if value != nil {
		*dst = *value
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	at := t.UTC()
	return &at
}
