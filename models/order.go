package models

// OrderStatus represents the current progress of an order.
// The lifecycle is forward-only: created -> accepted -> picked_up -> completed,
// with created -> cancelled as the only alternate terminal.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order represents a ride order. The canonical copy lives in the Order
// service; the ID is minted by the creating service and carried in the
// published fact so every consumer agrees on identity.
//
// Price and DistanceTenthsKm are set exactly once, at creation, and never
// recomputed. Distance is carried as an integer count of tenths of a km so
// that every service computing on it sees identical fixed-point input.
type Order struct {
	ID               string      `db:"id" json:"id"`
	CustomerID       int64       `db:"customer_id" json:"customer_id"`
	DriverID         *int64      `db:"driver_id" json:"driver_id,omitempty"`
	Price            int64       `db:"price" json:"price"`
	DistanceTenthsKm int64       `db:"distance_tenths_km" json:"distance_tenths_km"`
	UserLatitude     float64     `db:"user_latitude" json:"user_latitude"`
	UserLongitude    float64     `db:"user_longitude" json:"user_longitude"`
	Status           OrderStatus `db:"status" json:"status"`
	CreatedAt        string      `db:"created_at" json:"created_at"`
	UpdatedAt        string      `db:"updated_at" json:"updated_at"`
}

// DistanceKm returns the rounded trip distance in kilometers.
func (o *Order) DistanceKm() float64 {
	return float64(o.DistanceTenthsKm) / 10
}

// OrderProjection is a denormalized, possibly stale local copy of an order
// held by a non-owning service for fast local reads. It is advisory only;
// the canonical store is the source of truth.
type OrderProjection struct {
	OrderID          string      `db:"order_id" json:"order_id"`
	CustomerID       int64       `db:"customer_id" json:"customer_id"`
	DriverID         *int64      `db:"driver_id" json:"driver_id,omitempty"`
	Price            int64       `db:"price" json:"price"`
	DistanceTenthsKm int64       `db:"distance_tenths_km" json:"distance_tenths_km"`
	Status           OrderStatus `db:"status" json:"status"`
	RefreshedAt      string      `db:"refreshed_at" json:"refreshed_at"`
}

// Projection derives the read-model row for this order.
func (o *Order) Projection(refreshedAt string) *OrderProjection {
	return &OrderProjection{
		OrderID:          o.ID,
		CustomerID:       o.CustomerID,
		DriverID:         o.DriverID,
		Price:            o.Price,
		DistanceTenthsKm: o.DistanceTenthsKm,
		Status:           o.Status,
		RefreshedAt:      refreshedAt,
	}
}
