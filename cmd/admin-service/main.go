// The admin console is a one-shot command over the three service stores.
// Every invocation needs an admin bearer token (-token or ADMIN_TOKEN).
// Block and unblock go through the owning services so the corresponding
// facts are staged; the owning daemons publish them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"rideHailing/internal/adminservice"
	"rideHailing/internal/apperr"
	"rideHailing/internal/auth"
	"rideHailing/internal/cache"
	"rideHailing/internal/config"
	"rideHailing/internal/db"
	"rideHailing/internal/driverservice"
	"rideHailing/internal/logging"
	"rideHailing/internal/orderservice"
	"rideHailing/internal/userservice"
	"rideHailing/repository"
)

func main() {
	var (
		listCustomers = flag.Bool("list-customers", false, "print customers")
		listDrivers   = flag.Bool("list-drivers", false, "print drivers")
		listOrders    = flag.Bool("list-orders", false, "print orders")
		statuses      = flag.String("status", "", "order status filter, comma separated")
		customerID    = flag.Int64("customer", 0, "filter orders by customer id")
		driverID      = flag.Int64("driver", 0, "filter orders by driver id")
		limit         = flag.Int("limit", 20, "page size")
		offset        = flag.Int("offset", 0, "page offset for customer and driver lists")
		afterAt       = flag.String("after-at", "", "keyset cursor: created_at of the last order seen")
		afterID       = flag.String("after-id", "", "keyset cursor: id of the last order seen")

		blockCustomer   = flag.Int64("block-customer", 0, "block this customer")
		unblockCustomer = flag.Int64("unblock-customer", 0, "unblock this customer")
		blockDriver     = flag.Int64("block-driver", 0, "block this driver")
		unblockDriver   = flag.Int64("unblock-driver", 0, "unblock this driver")

		showRate = flag.Bool("rate", false, "print the price per km")
		setRate  = flag.Int64("set-rate", 0, "set the price per km")

		token = flag.String("token", os.Getenv("ADMIN_TOKEN"), "admin bearer JWT")
	)
	flag.Parse()

	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel).With("service", "admin-service")

	principal, err := auth.ParseToken(*token, cfg.Auth.JWTSecret)
	exitOn(err)
	ctx := auth.WithPrincipal(context.Background(), principal)
	if _, err := auth.RequireAdmin(ctx); err != nil {
		exitOn(err)
	}

	userDB, err := db.Open(cfg.Peers.UserDBPath)
	if err != nil {
		log.Fatalf("open user db: %v", err)
	}
	defer func() { _ = userDB.Close() }()
	driverDB, err := db.Open(cfg.Peers.DriverDBPath)
	if err != nil {
		log.Fatalf("open driver db: %v", err)
	}
	defer func() { _ = driverDB.Close() }()
	orderDB, err := db.Open(cfg.Peers.OrderDBPath)
	if err != nil {
		log.Fatalf("open order db: %v", err)
	}
	defer func() { _ = orderDB.Close() }()

	orderSvc := orderservice.New(orderDB, logger)
	userSvc := userservice.New(userDB, cache.NewMemoryCache("admin-service"), logger, userservice.Options{
		TopUpCeiling: cfg.Ledger.TopUpCeiling,
	})
	driverSvc := driverservice.New(driverDB, orderSvc, logger)
	admin := adminservice.New(userSvc, driverSvc, orderSvc, repository.NewConfigRepository(orderDB), logger)

	switch {
	case *listCustomers:
		list, err := admin.ListCustomers(ctx, *limit, *offset)
		exitOn(err)
		printJSON(list)
	case *listDrivers:
		list, err := admin.ListDrivers(ctx, *limit, *offset)
		exitOn(err)
		printJSON(list)
	case *listOrders:
		p := repository.ListOrdersAdminParams{
			PageSize: *limit,
			AfterAt:  *afterAt,
			AfterID:  *afterID,
		}
		p.Statuses = adminservice.StatusFilter(*statuses)
		if *customerID != 0 {
			p.CustomerID = customerID
		}
		if *driverID != 0 {
			p.DriverID = driverID
		}
		list, err := admin.ListOrders(ctx, p)
		exitOn(err)
		printJSON(list)
	case *blockCustomer != 0:
		exitOn(admin.BlockCustomer(ctx, *blockCustomer))
	case *unblockCustomer != 0:
		exitOn(admin.UnblockCustomer(ctx, *unblockCustomer))
	case *blockDriver != 0:
		exitOn(admin.BlockDriver(ctx, *blockDriver))
	case *unblockDriver != 0:
		exitOn(admin.UnblockDriver(ctx, *unblockDriver))
	case *setRate != 0:
		exitOn(admin.SetPricePerKm(ctx, *setRate))
	case *showRate:
		rate, err := admin.PricePerKm(ctx)
		exitOn(err)
		fmt.Println(rate)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// Exit codes follow the error kind so scripts can tell a bad invocation
// from a rule rejection or a missing entity.
func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		os.Exit(2)
	case apperr.KindBusinessRule, apperr.KindConflict:
		os.Exit(3)
	case apperr.KindNotFound:
		os.Exit(4)
	default:
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitOn(err)
	}
}
