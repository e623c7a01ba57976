// Package adminservice is the back-office façade: listings with filters,
// block/unblock and fare-rate management. It owns no data; every operation
// goes through a port into the owning service so the facts keep flowing.
package adminservice

import (
	"context"
	"log/slog"
	"strings"

	"rideHailing/internal/pricing"
	"rideHailing/models"
	"rideHailing/repository"
)

// StatusFilter parses a comma separated status list into the order filter
// form. Blank entries are dropped; an all-blank input yields nil, meaning
// no status filter.
func StatusFilter(csv string) []models.OrderStatus {
	var out []models.OrderStatus
	for _, s := range strings.Split(csv, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, models.OrderStatus(s))
	}
	return out
}

// CustomerDirectory is the slice of the user service the admin needs.
type CustomerDirectory interface {
	List(ctx context.Context, limit, offset int) ([]models.Customer, error)
	SetBlocked(ctx context.Context, customerID int64, blocked bool) error
}

// DriverDirectory is the slice of the driver service the admin needs.
type DriverDirectory interface {
	List(ctx context.Context, limit, offset int) ([]models.Driver, error)
	SetBlocked(ctx context.Context, driverID int64, blocked bool) error
}

// OrderDirectory is the slice of the order service the admin needs.
type OrderDirectory interface {
	ListAdmin(ctx context.Context, p repository.ListOrdersAdminParams) ([]models.Order, error)
}

// RateConfig manages the fare rate.
type RateConfig interface {
	PricePerKm(ctx context.Context) (int64, error)
	SetPricePerKm(ctx context.Context, rate int64) error
}

type Service struct {
	customers CustomerDirectory
	drivers   DriverDirectory
	orders    OrderDirectory
	rates     RateConfig
	log       *slog.Logger
}

func New(customers CustomerDirectory, drivers DriverDirectory, orders OrderDirectory, rates RateConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{customers: customers, drivers: drivers, orders: orders, rates: rates, log: log}
}

// CustomerDTO is the admin view of a customer, balance pre-formatted.
type CustomerDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Balance  string `json:"balance"`
	Blocked  bool   `json:"blocked"`
}

// DriverDTO is the admin view of a driver.
type DriverDTO struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	FullName  string  `json:"full_name"`
	Email     string  `json:"email"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Earnings  string  `json:"earnings"`
	Blocked   bool    `json:"blocked"`
}

func (s *Service) ListCustomers(ctx context.Context, limit, offset int) ([]CustomerDTO, error) {
	customers, err := s.customers.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]CustomerDTO, 0, len(customers))
	for _, c := range customers {
		out = append(out, CustomerDTO{
			ID:       c.ID,
			Username: c.Username,
			FullName: fullName(c.FirstName, c.LastName),
			Email:    c.Email,
			Balance:  pricing.FormatRupiah(c.Balance),
			Blocked:  c.Blocked,
		})
	}
	return out, nil
}

func (s *Service) ListDrivers(ctx context.Context, limit, offset int) ([]DriverDTO, error) {
	drivers, err := s.drivers.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]DriverDTO, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, DriverDTO{
			ID:        d.ID,
			Username:  d.Username,
			FullName:  fullName(d.FirstName, d.LastName),
			Email:     d.Email,
			Latitude:  d.Latitude,
			Longitude: d.Longitude,
			Earnings:  pricing.FormatRupiah(d.Balance),
			Blocked:   d.Blocked,
		})
	}
	return out, nil
}

// ListOrders passes filters straight through to the canonical store.
func (s *Service) ListOrders(ctx context.Context, p repository.ListOrdersAdminParams) ([]models.Order, error) {
	return s.orders.ListAdmin(ctx, p)
}

func (s *Service) BlockCustomer(ctx context.Context, customerID int64) error {
	if err := s.customers.SetBlocked(ctx, customerID, true); err != nil {
		return err
	}
	s.log.Info("customer blocked", "customer_id", customerID)
	return nil
}

func (s *Service) UnblockCustomer(ctx context.Context, customerID int64) error {
	if err := s.customers.SetBlocked(ctx, customerID, false); err != nil {
		return err
	}
	s.log.Info("customer unblocked", "customer_id", customerID)
	return nil
}

func (s *Service) BlockDriver(ctx context.Context, driverID int64) error {
	if err := s.drivers.SetBlocked(ctx, driverID, true); err != nil {
		return err
	}
	s.log.Info("driver blocked", "driver_id", driverID)
	return nil
}

func (s *Service) UnblockDriver(ctx context.Context, driverID int64) error {
	if err := s.drivers.SetBlocked(ctx, driverID, false); err != nil {
		return err
	}
	s.log.Info("driver unblocked", "driver_id", driverID)
	return nil
}

// PricePerKm returns the current fare rate.
func (s *Service) PricePerKm(ctx context.Context) (int64, error) {
	return s.rates.PricePerKm(ctx)
}

// SetPricePerKm updates the fare rate; new orders price with it immediately.
func (s *Service) SetPricePerKm(ctx context.Context, rate int64) error {
	if err := s.rates.SetPricePerKm(ctx, rate); err != nil {
		return err
	}
	s.log.Info("price per km updated", "rate", rate)
	return nil
}

func fullName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
