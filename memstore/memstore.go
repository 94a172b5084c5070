// Package memstore keeps every repository in process memory. A single mutex
// guards all collections so multi-collection writes are atomic, mirroring
// the transactional behaviour of the Mongo repositories.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"agromart/apperr"
	"agromart/models"
	"agromart/pay"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu      sync.RWMutex
	users   map[primitive.ObjectID]models.User
	crops   map[primitive.ObjectID]models.Crop
	cart    map[primitive.ObjectID]models.CartItem
	orders  map[primitive.ObjectID]models.Order
	surplus map[primitive.ObjectID]models.Surplus
	recon   []models.Reconciliation
	idem    map[string]models.IdempotencyRecord
	locks   map[string]time.Time

	failCreate error
}

func New() *Store {
	return &Store{
		users:   make(map[primitive.ObjectID]models.User),
		crops:   make(map[primitive.ObjectID]models.Crop),
		cart:    make(map[primitive.ObjectID]models.CartItem),
		orders:  make(map[primitive.ObjectID]models.Order),
		surplus: make(map[primitive.ObjectID]models.Surplus),
		idem:    make(map[string]models.IdempotencyRecord),
		locks:   make(map[string]time.Time),
	}
}

func (s *Store) Users() *UserRepo                     { return &UserRepo{s} }
func (s *Store) Crops() *CropRepo                     { return &CropRepo{s} }
func (s *Store) Cart() *CartRepo                      { return &CartRepo{s} }
func (s *Store) Orders() *OrderRepo                   { return &OrderRepo{s} }
func (s *Store) Surplus() *SurplusRepo                { return &SurplusRepo{s} }
func (s *Store) Reconciliations() *ReconciliationRepo { return &ReconciliationRepo{s} }
func (s *Store) Idempotency() *IdempotencyRepo        { return &IdempotencyRepo{s} }
func (s *Store) Locker() *Locker                      { return &Locker{s} }

// --- users ---

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Conflict("email already registered")
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (r *UserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (r *UserRepo) TouchLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.LastLogin = at
	r.s.users[id] = u
	return nil
}

// --- crops ---

type CropRepo struct{ s *Store }

func (r *CropRepo) Insert(_ context.Context, c *models.Crop) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	r.s.crops[c.ID] = *c
	return nil
}

func (r *CropRepo) Update(_ context.Context, c *models.Crop) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.crops[c.ID]; !ok {
		return apperr.NotFound("crop")
	}
	r.s.crops[c.ID] = *c
	return nil
}

func (r *CropRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.crops[id]; !ok {
		return apperr.NotFound("crop")
	}
	delete(r.s.crops, id)
	return nil
}

func (r *CropRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Crop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.crops[id]
	if !ok {
		return nil, apperr.NotFound("crop")
	}
	return &c, nil
}

func (r *CropRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Crop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Crop
	for _, id := range ids {
		if c, ok := r.s.crops[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CropRepo) ListByOwner(_ context.Context, owner primitive.ObjectID) ([]models.Crop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Crop
	for _, c := range r.s.crops {
		if c.UserID == owner {
			out = append(out, c)
		}
	}
	sortCropsNewestFirst(out)
	return out, nil
}

func (r *CropRepo) Browse(_ context.Context, f models.CropFilter) ([]models.Crop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Crop
	for _, c := range r.s.crops {
		if matchCrop(c, f) {
			out = append(out, c)
		}
	}
	sortCropsNewestFirst(out)
	if f.Skip >= len(out) {
		return nil, nil
	}
	out = out[f.Skip:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchCrop(c models.Crop, f models.CropFilter) bool {
	switch {
	case f.Category != "" && c.Category != f.Category:
		return false
	case f.CropType != "" && c.CropType != f.CropType:
		return false
	case f.GrowthLocation != "" && c.GrowthLocation != f.GrowthLocation:
		return false
	case f.InStock && c.Quantity <= 0:
		return false
	case f.MinPrice != nil && c.Price.LessThan(*f.MinPrice):
		return false
	case f.MaxPrice != nil && c.Price.GreaterThan(*f.MaxPrice):
		return false
	}
	return true
}

func sortCropsNewestFirst(cs []models.Crop) {
	slices.SortFunc(cs, func(a, b models.Crop) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.Hex(), a.ID.Hex())
	})
}

// --- cart ---

type CartRepo struct{ s *Store }

// Add increments the (user, crop) line or creates it.
func (r *CartRepo) Add(_ context.Context, userID, cropID primitive.ObjectID, qty int) (*models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	for id, it := range r.s.cart {
		if it.UserID == userID && it.CropID == cropID {
			if it.Quantity+qty > models.MaxLineQuantity {
				return nil, apperr.Validation("quantity must be between 1 and %d", models.MaxLineQuantity)
			}
			it.Quantity += qty
			it.UpdatedAt = now
			r.s.cart[id] = it
			return &it, nil
		}
	}
	it := models.CartItem{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		CropID:    cropID,
		Quantity:  qty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.cart[it.ID] = it
	return &it, nil
}

func (r *CartRepo) SetQuantity(_ context.Context, userID, itemID primitive.ObjectID, qty int) (*models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	it, ok := r.s.cart[itemID]
	if !ok || it.UserID != userID {
		return nil, apperr.NotFound("cart item")
	}
	it.Quantity = qty
	it.UpdatedAt = time.Now()
	r.s.cart[itemID] = it
	return &it, nil
}

func (r *CartRepo) Remove(_ context.Context, userID, itemID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	it, ok := r.s.cart[itemID]
	if !ok || it.UserID != userID {
		return apperr.NotFound("cart item")
	}
	delete(r.s.cart, itemID)
	return nil
}

func (r *CartRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.CartItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.CartItem
	for _, it := range r.s.cart {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b models.CartItem) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.Hex(), b.ID.Hex())
	})
	return out, nil
}

// --- orders ---

type OrderRepo struct{ s *Store }

// FailCreate makes every following CreateFromCart return err until reset with nil.
func (r *OrderRepo) FailCreate(err error) {
	r.s.mu.Lock()
	r.s.failCreate = err
	r.s.mu.Unlock()
}

// CreateFromCart inserts o and removes exactly the snapshot items, or does nothing.
func (r *OrderRepo) CreateFromCart(_ context.Context, o *models.Order, snapshot []models.CartItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failCreate != nil {
		return r.s.failCreate
	}
	for _, snap := range snapshot {
		it, ok := r.s.cart[snap.ID]
		if !ok || it.UserID != o.UserID || it.Quantity != snap.Quantity {
			return apperr.Conflict("cart changed during checkout")
		}
	}
	if _, exists := r.s.orders[o.ID]; exists {
		return apperr.Conflict("order already exists")
	}
	for _, snap := range snapshot {
		delete(r.s.cart, snap.ID)
	}
	r.s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return r.list(ctx, func(o models.Order) bool { return o.UserID == userID }, 0, 0)
}

func (r *OrderRepo) ListAll(ctx context.Context, limit, skip int) ([]models.Order, error) {
	return r.list(ctx, func(models.Order) bool { return true }, limit, skip)
}

func (r *OrderRepo) list(_ context.Context, keep func(models.Order) bool, limit, skip int) ([]models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Order
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b models.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.Hex(), a.ID.Hex())
	})
	if skip >= len(out) {
		return nil, nil
	}
	out = out[skip:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateStatus moves the order from -> to; a different current status is a Conflict.
func (r *OrderRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	if o.Status != from {
		return nil, apperr.Conflict("order status changed concurrently")
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	r.s.orders[id] = o
	o = cloneOrder(o)
	return &o, nil
}

func (r *OrderRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[id]; !ok {
		return apperr.NotFound("order")
	}
	delete(r.s.orders, id)
	return nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

// --- surplus ---

type SurplusRepo struct{ s *Store }

func (r *SurplusRepo) Insert(_ context.Context, sp *models.Surplus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if sp.ID.IsZero() {
		sp.ID = primitive.NewObjectID()
	}
	r.s.surplus[sp.ID] = *sp
	return nil
}

func (r *SurplusRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Surplus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Surplus
	for _, sp := range r.s.surplus {
		if sp.UserID == userID {
			out = append(out, sp)
		}
	}
	slices.SortFunc(out, func(a, b models.Surplus) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// --- reconciliation log ---

type ReconciliationRepo struct{ s *Store }

func (r *ReconciliationRepo) Record(_ context.Context, rec models.Reconciliation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	r.s.recon = append(r.s.recon, rec)
	return nil
}

func (r *ReconciliationRepo) All() []models.Reconciliation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]models.Reconciliation(nil), r.s.recon...)
}

// --- idempotency ---

type IdempotencyRepo struct{ s *Store }

func (r *IdempotencyRepo) Begin(_ context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if cur, ok := r.s.idem[rec.Key]; ok && time.Now().Before(cur.ExpiresAt) {
		return &cur, pay.ErrDuplicateKey
	}
	r.s.idem[rec.Key] = rec
	return nil, nil
}

func (r *IdempotencyRepo) Complete(_ context.Context, key string, status int, body []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.idem[key]
	if !ok {
		return apperr.NotFound("idempotency record")
	}
	rec.Status = status
	rec.Body = append([]byte(nil), body...)
	rec.Done = true
	r.s.idem[key] = rec
	return nil
}

func (r *IdempotencyRepo) Release(_ context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.idem, key)
	return nil
}

// --- locks ---

type Locker struct{ s *Store }

func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	now := time.Now()
	if exp, held := l.s.locks[key]; held && now.Before(exp) {
		return nil, apperr.Conflict("another checkout is already in progress")
	}
	exp := now.Add(ttl)
	l.s.locks[key] = exp

	var once sync.Once
	return func() {
		once.Do(func() {
			l.s.mu.Lock()
			if l.s.locks[key] == exp {
				delete(l.s.locks, key)
			}
			l.s.mu.Unlock()
		})
	}, nil
}
