// Package orders turns a user's cart into a priced, immutable order and
// manages the order lifecycle afterwards.
package orders

import (
	"context"
	"time"

	"agromart/apperr"
	"agromart/logging"
	"agromart/metrics"
	"agromart/models"
	"agromart/mq"
	"agromart/pay"
	"agromart/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type CartSource interface {
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error)
}

// CropLookup must return the current crop, never a cached copy.
type CropLookup interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error)
}

type Repository interface {
	// CreateFromCart stores o and deletes exactly the snapshot items atomically.
	// A missing item, or one whose quantity changed, aborts with a Conflict.
	CreateFromCart(ctx context.Context, o *models.Order, snapshot []models.CartItem) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	ListAll(ctx context.Context, limit, skip int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Locker serializes checkouts per user. A held lock is reported as a Conflict.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type Publisher interface {
	Publish(ctx context.Context, e mq.Event) error
}

type ReconciliationLog interface {
	Record(ctx context.Context, rec models.Reconciliation) error
}

type Deps struct {
	Carts          CartSource
	Catalog        CropLookup
	Repo           Repository
	Gateway        pay.Gateway
	Locker         Locker
	Events         Publisher
	Reconciliation ReconciliationLog
	Metrics        *metrics.Metrics
}

type Config struct {
	Currency       string
	GatewayTimeout time.Duration
	LockTTL        time.Duration
	ReceiptSecret  []byte
}

type Service struct {
	Deps
	cfg Config
	now func() time.Time
}

func NewService(d Deps, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	if cfg.LockTTL <= cfg.GatewayTimeout {
		cfg.LockTTL = cfg.GatewayTimeout + 10*time.Second
	}
	if d.Gateway == nil {
		d.Gateway = pay.Disabled{}
	}
	return &Service{Deps: d, cfg: cfg, now: time.Now}
}

func (s *Service) ListMine(ctx context.Context, caller models.Identity) ([]models.Order, error) {
	list, err := s.Repo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Order{}
	}
	return list, nil
}

// Get returns an order to its owner or an admin. Other callers get NotFound.
func (s *Service) Get(ctx context.Context, caller models.Identity, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(o.UserID) {
		return nil, apperr.NotFound("order")
	}
	return o, nil
}

func (s *Service) ListAll(ctx context.Context, caller models.Identity, q utils.QueryOptions) ([]models.Order, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("admin only")
	}
	list, err := s.Repo.ListAll(ctx, q.Limit, q.Skip())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Order{}
	}
	return list, nil
}

// UpdateStatus applies an admin status transition. The write is conditional
// on the status read here, so a concurrent change yields a Conflict.
func (s *Service) UpdateStatus(ctx context.Context, caller models.Identity, id primitive.ObjectID, status string) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("admin only")
	}
	to, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	cur, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanTransition(to) {
		return nil, apperr.Validation("cannot change order status from %s to %s", cur.Status, to)
	}

	updated, err := s.Repo.UpdateStatus(ctx, id, cur.Status, to)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("order status changed",
		zap.String("order_id", id.Hex()),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(to)),
		zap.String("admin_id", caller.UserID.Hex()),
	)
	s.publish(ctx, mq.NewOrderEvent(mq.OrderStatus, updated))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, caller models.Identity, id primitive.ObjectID) error {
	if !caller.IsAdmin() {
		return apperr.Forbidden("admin only")
	}
	o, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, mq.NewOrderEvent(mq.OrderDeleted, o))
	return nil
}

// publish is best effort; a lost event never fails the request.
func (s *Service) publish(ctx context.Context, e mq.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("order event not published",
			zap.String("type", e.Type), zap.String("order_id", e.OrderID), zap.Error(err))
	}
}
