package orders

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"agromart/apperr"
	"agromart/logging"
	"agromart/models"
	"agromart/mq"
	"agromart/pay"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxAddressLen = 500

type PlaceOrderInput struct {
	ShippingAddress string `json:"shippingAddress"`
	PaymentMethod   string `json:"paymentMethod"`
}

type PlaceOrderResult struct {
	Order        *models.Order `json:"order"`
	ClientSecret string        `json:"clientSecret,omitempty"`
}

// PlaceOrder converts the caller's cart into an order. The order is stored and
// the cart consumed together or not at all; a card payment is authorized
// before anything is written.
func (s *Service) PlaceOrder(ctx context.Context, caller models.Identity, in PlaceOrderInput) (*PlaceOrderResult, error) {
	method, err := models.ParsePaymentMethod(strings.TrimSpace(in.PaymentMethod))
	if err != nil {
		s.Metrics.Checkout("invalid", "rejected")
		return nil, apperr.Validation("Invalid payment method")
	}
	address := strings.TrimSpace(in.ShippingAddress)
	if utf8.RuneCountInString(address) > maxAddressLen {
		s.Metrics.Checkout(string(method), "rejected")
		return nil, apperr.Validation("Shipping address is too long")
	}

	res, outcome, err := s.placeOrder(ctx, caller, address, method)
	s.Metrics.Checkout(string(method), outcome)
	return res, err
}

func (s *Service) placeOrder(ctx context.Context, caller models.Identity, address string, method models.PaymentMethod) (*PlaceOrderResult, string, error) {
	log := logging.FromContext(ctx).With(zap.String("user_id", caller.UserID.Hex()))

	release, err := s.Locker.Acquire(ctx, "checkout:"+caller.UserID.Hex(), s.cfg.LockTTL)
	if err != nil {
		return nil, "conflict", err
	}
	defer release()

	items, err := s.Carts.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, "error", err
	}
	if len(items) == 0 {
		return nil, "rejected", apperr.Validation("Cart is empty")
	}

	order, amountMinor, err := s.buildOrder(ctx, caller, items, address, method)
	if err != nil {
		return nil, outcomeOf(err), err
	}

	res := &PlaceOrderResult{Order: order}
	persistCtx := ctx
	if method == models.PayCreditCard {
		auth, err := s.authorize(ctx, order, amountMinor)
		if err != nil {
			log.Warn("payment authorization failed", zap.String("order_id", order.ID.Hex()), zap.Error(err))
			return nil, "payment_failed", apperr.Gateway("payment authorization failed", err)
		}
		order.PaymentRef = auth.Reference
		res.ClientSecret = auth.ClientSecret

		// Money has moved; a client disconnect must not abandon the write.
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.cfg.GatewayTimeout)
		defer cancel()
	}

	if err := s.Repo.CreateFromCart(persistCtx, order, items); err != nil {
		if method == models.PayCreditCard {
			s.reconcile(persistCtx, order, amountMinor, err)
			if apperr.Is(err, apperr.KindConflict) {
				// The cart moved during authorization; nothing was consumed.
				return nil, "conflict", apperr.Conflict("cart changed during checkout; review the cart and try again")
			}
			return nil, "inconsistency", apperr.Inconsistency("payment was authorized but the order could not be saved; support has been notified", err)
		}
		return nil, outcomeOf(err), err
	}

	log.Info("order placed",
		zap.String("order_id", order.ID.Hex()),
		zap.String("payment_method", string(method)),
		zap.String("total", order.TotalAmount.String()),
		zap.Int("items", len(order.Items)),
	)
	s.publish(persistCtx, mq.NewOrderEvent(mq.OrderCreated, order))
	return res, "created", nil
}

// buildOrder freezes current prices into a pending order and returns its
// total in minor units.
func (s *Service) buildOrder(ctx context.Context, caller models.Identity, items []models.CartItem, address string, method models.PaymentMethod) (*models.Order, int64, error) {
	now := s.now().UTC()
	order := &models.Order{
		ID:              primitive.NewObjectID(),
		UserID:          caller.UserID,
		Items:           make([]models.OrderItem, 0, len(items)),
		ShippingAddress: address,
		PaymentMethod:   method,
		Currency:        s.cfg.Currency,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, it := range items {
		if it.Quantity < 1 || it.Quantity > models.MaxLineQuantity {
			return nil, 0, apperr.Validation("quantity must be between 1 and %d", models.MaxLineQuantity)
		}
		crop, err := s.Catalog.GetByID(ctx, it.CropID)
		if err != nil {
			return nil, 0, err
		}
		line := models.OrderItem{
			CropID:   crop.ID,
			Name:     crop.Name,
			Quantity: it.Quantity,
			Price:    crop.Price,
		}
		order.Items = append(order.Items, line)
		order.TotalAmount = order.TotalAmount.Add(line.Subtotal())
	}
	if !order.TotalAmount.IsPositive() {
		return nil, 0, apperr.Validation("Order total must be positive")
	}
	minor, err := order.TotalAmount.MinorUnits()
	if err != nil {
		return nil, 0, apperr.Validation("Order total is too large")
	}
	return order, minor, nil
}

func (s *Service) authorize(ctx context.Context, order *models.Order, amountMinor int64) (pay.Authorized, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	auth, err := s.Gateway.Authorize(ctx, pay.Authorization{
		AmountMinor:    amountMinor,
		Currency:       order.Currency,
		OrderID:        order.ID.Hex(),
		IdempotencyKey: order.ID.Hex(),
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.Metrics.GatewayCall(outcome, time.Since(start))
	return auth, err
}

// reconcile reports an authorized payment whose order could not be stored,
// so the authorization can be voided or the order restored.
func (s *Service) reconcile(ctx context.Context, order *models.Order, amountMinor int64, cause error) {
	logging.FromContext(ctx).Error("payment authorized but order not saved",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", order.UserID.Hex()),
		zap.Int64("amount_minor", amountMinor),
		zap.String("payment_ref", order.PaymentRef),
		zap.Error(cause),
	)
	if s.Reconciliation != nil {
		rec := models.Reconciliation{
			ID:          primitive.NewObjectID(),
			Order:       *order,
			PaymentRef:  order.PaymentRef,
			AmountMinor: amountMinor,
			Error:       cause.Error(),
			CreatedAt:   s.now().UTC(),
		}
		if err := s.Reconciliation.Record(ctx, rec); err != nil {
			logging.FromContext(ctx).Error("reconciliation record not written",
				zap.String("order_id", order.ID.Hex()), zap.Error(err))
		}
	}
}

func outcomeOf(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound:
		return "rejected"
	case apperr.KindConflict:
		return "conflict"
	}
	return "error"
}
