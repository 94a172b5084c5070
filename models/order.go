package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// CanTransition reports whether an administrator may move an order from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentMethod string

const (
	PayCreditCard     PaymentMethod = "credit_card"
	PayCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch pm := PaymentMethod(s); pm {
	case PayCreditCard, PayCashOnDelivery:
		return pm, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// OrderItem freezes the unit price at purchase time.
type OrderItem struct {
	CropID   primitive.ObjectID `json:"crop" bson:"crop"`
	Name     string             `json:"name" bson:"name"`
	Quantity int                `json:"quantity" bson:"quantity"`
	Price    Money              `json:"price" bson:"price"`
}

func (it OrderItem) Subtotal() Money { return it.Price.Times(it.Quantity) }

type Order struct {
	ID              primitive.ObjectID `json:"id" bson:"_id"`
	UserID          primitive.ObjectID `json:"user" bson:"user"`
	Items           []OrderItem        `json:"items" bson:"items"`
	TotalAmount     Money              `json:"totalAmount" bson:"totalAmount"`
	ShippingAddress string             `json:"shippingAddress" bson:"shippingAddress"`
	PaymentMethod   PaymentMethod      `json:"paymentMethod" bson:"paymentMethod"`
	PaymentRef      string             `json:"paymentRef,omitempty" bson:"paymentRef,omitempty"`
	Currency        string             `json:"currency" bson:"currency"`
	Status          OrderStatus        `json:"status" bson:"status"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Reconciliation records a captured payment whose order could not be saved.
type Reconciliation struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Order       Order              `json:"order" bson:"order"`
	PaymentRef  string             `json:"paymentRef" bson:"paymentRef"`
	AmountMinor int64              `json:"amountMinor" bson:"amountMinor"`
	Error       string             `json:"error" bson:"error"`
	Resolved    bool               `json:"resolved" bson:"resolved"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}
