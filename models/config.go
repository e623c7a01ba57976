package models

// ConfigApp is the singleton application setting record. PricePerKm is
// read on each price computation and treated as slow-changing configuration;
// the order path never writes it.
type ConfigApp struct {
	ID         int64 `db:"id" json:"id"`
	PricePerKm int64 `db:"price_per_km" json:"price_per_km"`
}
