package models

// Driver represents a driver in the Driver service.
// Position is mutated only by the driver's own position reports.
type Driver struct {
	ID           int64   `db:"id" json:"id"`
	Username     string  `db:"username" json:"username"`
	PasswordHash string  `db:"password_hash" json:"-"`
	FirstName    string  `db:"first_name" json:"first_name"`
	LastName     string  `db:"last_name" json:"last_name"`
	PhoneNumber  string  `db:"phone_number" json:"phone_number"`
	Email        string  `db:"email" json:"email"`
	Latitude     float64 `db:"latitude" json:"latitude"`
	Longitude    float64 `db:"longitude" json:"longitude"`
	Balance      int64   `db:"balance" json:"balance"`
	Blocked      bool    `db:"blocked" json:"blocked"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}
