package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ReturnAction names a handling step a seller or staff member applies to a return request.
type ReturnAction string

const (
	ReturnActionApprove        ReturnAction = "approve"
	ReturnActionReject         ReturnAction = "reject"
	ReturnActionItemReceived   ReturnAction = "item_received"
	ReturnActionInitiateRefund ReturnAction = "initiate_refund"
	ReturnActionCompleteRefund ReturnAction = "complete_refund"
)

// ReturnInput carries the optional form values of a handling step.
type ReturnInput struct {
	AdminResponse  string
	TrackingNumber string
	RefundMethod   string
}

// ReturnService runs the return and refund workflow of delivered orders.
type ReturnService struct {
	store     *repositories.Store
	publisher events.Publisher
	now       func() time.Time
}

func NewReturnService(store *repositories.Store, publisher events.Publisher) *ReturnService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ReturnService{store: store, publisher: publisher, now: time.Now}
}

// RequestReturn opens the return request of a delivered order of the caller.
func (s *ReturnService) RequestReturn(ctx context.Context, p Principal, orderID, reason string) (*models.ReturnRequest, error) {
	if err := p.RequireCustomer("request returns"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	var ret *models.ReturnRequest
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		order, err := tx.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != p.UserID {
			return fmt.Errorf("%w: order %s belongs to another customer", ErrForbidden, orderID)
		}
		if order.Status != models.OrderStatusDelivered {
			return fmt.Errorf("%w: only delivered orders can be returned, order is %s", ErrInvalidTransition, order.Status)
		}
		exists, err := tx.Returns.ExistsForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateReturnRequest
		}

		ret = &models.ReturnRequest{OrderID: orderID, Reason: reason, Status: models.ReturnStatusPending}
		if err := tx.Returns.Create(ctx, ret); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return ErrDuplicateReturnRequest
			}
			return err
		}
		ret.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.New(events.ReturnRequested, ret.ID, returnPayload(ret)))
	return ret, nil
}

// UpdateTracking records the shipping tracking number of an approved return.
func (s *ReturnService) UpdateTracking(ctx context.Context, p Principal, returnID, tracking string) (*models.ReturnRequest, error) {
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return nil, fmt.Errorf("%w: tracking number is required", ErrValidation)
	}

	var ret *models.ReturnRequest
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		ret, err = tx.Returns.GetForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Order == nil || ret.Order.CustomerID != p.UserID {
			return fmt.Errorf("%w: return request %s belongs to another customer", ErrForbidden, returnID)
		}
		if ret.Status != models.ReturnStatusApproved {
			return fmt.Errorf("%w: tracking can only be added to an approved return, return is %s", ErrInvalidTransition, ret.Status)
		}

		ret.TrackingNumber = tracking
		return save(ctx, tx, ret, models.ReturnStatusApproved)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.New(events.ReturnUpdated, ret.ID, returnPayload(ret)))
	return ret, nil
}

// HandleReturn applies a handling step by name.
func (s *ReturnService) HandleReturn(ctx context.Context, p Principal, returnID string, action ReturnAction, in ReturnInput) (*models.ReturnRequest, error) {
	switch action {
	case ReturnActionApprove:
		return s.Approve(ctx, p, returnID, in.AdminResponse)
	case ReturnActionReject:
		return s.Reject(ctx, p, returnID, in.AdminResponse)
	case ReturnActionItemReceived:
		return s.MarkItemReceived(ctx, p, returnID, in.TrackingNumber)
	case ReturnActionInitiateRefund:
		return s.InitiateRefund(ctx, p, returnID)
	case ReturnActionCompleteRefund:
		return s.CompleteRefund(ctx, p, returnID, in.RefundMethod)
	default:
		return nil, fmt.Errorf("%w: unknown return action %q", ErrValidation, action)
	}
}

// Approve accepts a pending return and fixes the refund amount at the order total.
func (s *ReturnService) Approve(ctx context.Context, p Principal, returnID, adminResponse string) (*models.ReturnRequest, error) {
	return s.transition(ctx, p, returnID, func(_ *repositories.Store, ret *models.ReturnRequest) error {
		if err := requireStatus(ret, models.ReturnStatusPending); err != nil {
			return err
		}
		ret.Status = models.ReturnStatusApproved
		ret.AdminResponse = adminResponse
		ret.RefundAmount.Valid = false
		ret.EnsureRefundAmount()
		return nil
	})
}

// Reject declines a pending return. Rejected returns do not move again.
func (s *ReturnService) Reject(ctx context.Context, p Principal, returnID, adminResponse string) (*models.ReturnRequest, error) {
	return s.transition(ctx, p, returnID, func(_ *repositories.Store, ret *models.ReturnRequest) error {
		if err := requireStatus(ret, models.ReturnStatusPending); err != nil {
			return err
		}
		ret.Status = models.ReturnStatusRejected
		ret.AdminResponse = adminResponse
		return nil
	})
}

// MarkItemReceived records that the goods came back and puts their stock back. Stock is
// restored at most once per return request.
func (s *ReturnService) MarkItemReceived(ctx context.Context, p Principal, returnID, tracking string) (*models.ReturnRequest, error) {
	return s.transition(ctx, p, returnID, func(tx *repositories.Store, ret *models.ReturnRequest) error {
		if err := requireStatus(ret, models.ReturnStatusApproved, models.ReturnStatusRefundProcessing); err != nil {
			return err
		}

		claimed, err := tx.Returns.ClaimStockRestore(ctx, ret.ID)
		if err != nil {
			return err
		}
		if claimed {
			for _, item := range ret.Order.Items {
				if err := tx.Products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}
		ret.StockRestored = true

		ret.Status = models.ReturnStatusItemReceived
		if t := strings.TrimSpace(tracking); t != "" {
			ret.TrackingNumber = t
		}
		ret.EnsureRefundAmount()
		return nil
	})
}

// InitiateRefund starts the refund. Calling it again while the refund is processing is a no-op.
func (s *ReturnService) InitiateRefund(ctx context.Context, p Principal, returnID string) (*models.ReturnRequest, error) {
	return s.transition(ctx, p, returnID, func(_ *repositories.Store, ret *models.ReturnRequest) error {
		if err := requireStatus(ret, models.ReturnStatusApproved, models.ReturnStatusItemReceived, models.ReturnStatusRefundProcessing); err != nil {
			return err
		}
		ret.Status = models.ReturnStatusRefundProcessing
		ret.EnsureRefundAmount()
		return nil
	})
}

// CompleteRefund closes a processing refund. An empty method records the default one.
func (s *ReturnService) CompleteRefund(ctx context.Context, p Principal, returnID, method string) (*models.ReturnRequest, error) {
	return s.transition(ctx, p, returnID, func(_ *repositories.Store, ret *models.ReturnRequest) error {
		if err := requireStatus(ret, models.ReturnStatusRefundProcessing); err != nil {
			return err
		}
		method = strings.TrimSpace(method)
		if method == "" {
			method = models.DefaultRefundMethod
		}
		now := s.now().UTC()
		ret.Status = models.ReturnStatusRefundCompleted
		ret.RefundDate = &now
		ret.RefundMethod = method
		ret.EnsureRefundAmount()
		return nil
	})
}

// SellerReturns lists the return requests of orders holding the caller's products.
func (s *ReturnService) SellerReturns(ctx context.Context, p Principal) ([]models.ReturnRequest, error) {
	if err := p.RequireSeller("manage returns"); err != nil {
		return nil, err
	}
	return s.store.Returns.ListBySeller(ctx, p.UserID)
}

// transition locks the return request, checks that p may handle it, applies step and saves
// the result in one transaction.
func (s *ReturnService) transition(ctx context.Context, p Principal, returnID string, step func(tx *repositories.Store, ret *models.ReturnRequest) error) (*models.ReturnRequest, error) {
	var ret *models.ReturnRequest
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		ret, err = tx.Returns.GetForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Order == nil {
			return fmt.Errorf("order of return request %s: %w", returnID, ErrNotFound)
		}
		if err := requireSellerOf(ctx, tx, p, ret.OrderID); err != nil {
			if errors.Is(err, ErrForbidden) {
				return fmt.Errorf("%w: return request %s is not yours to handle", ErrForbidden, returnID)
			}
			return err
		}
		from := ret.Status
		if err := step(tx, ret); err != nil {
			return err
		}
		return save(ctx, tx, ret, from)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.New(events.ReturnUpdated, ret.ID, returnPayload(ret)))
	return ret, nil
}

// save writes ret unless another request moved it away from status from since it was loaded.
func save(ctx context.Context, tx *repositories.Store, ret *models.ReturnRequest, from models.ReturnStatus) error {
	ok, err := tx.Returns.Save(ctx, ret, from)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: return request %s changed status concurrently", ErrInvalidTransition, ret.ID)
	}
	return nil
}

func requireStatus(ret *models.ReturnRequest, allowed ...models.ReturnStatus) error {
	if slices.Contains(allowed, ret.Status) {
		return nil
	}
	return fmt.Errorf("%w: return request %s is %s", ErrInvalidTransition, ret.ID, ret.Status)
}

func returnPayload(r *models.ReturnRequest) map[string]any {
	payload := map[string]any{
		"return_id": r.ID,
		"order_id":  r.OrderID,
		"status":    string(r.Status),
	}
	if r.RefundAmount.Valid {
		payload["refund_amount"] = r.RefundAmount.Decimal.StringFixed(2)
	}
	if r.RefundMethod != "" {
		payload["refund_method"] = r.RefundMethod
	}
	return payload
}
