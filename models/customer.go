package models

// Customer represents a riding customer in the User service.
// It maps to the `customers` table.
type Customer struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	PhoneNumber  string `db:"phone_number" json:"phone_number"`
	Email        string `db:"email" json:"email"`
	// Balance is kept in whole rupiah; there is no fractional unit.
	Balance   int64  `db:"balance" json:"balance"`
	Blocked   bool   `db:"blocked" json:"blocked"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
