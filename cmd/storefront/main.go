package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/egannguyen/go-food-ordering/internal/client/api"
	"github.com/egannguyen/go-food-ordering/internal/client/cart"
	"github.com/egannguyen/go-food-ordering/internal/client/session"
	"github.com/egannguyen/go-food-ordering/internal/config"
	"github.com/egannguyen/go-food-ordering/internal/entity"
	"github.com/egannguyen/go-food-ordering/internal/storefront"
)

const usage = `usage: storefront <command> [args]

commands:
  menu                         print the catalog
  watch                        print the catalog and orders as they change
  cart show|clear              show or empty the cart
  cart add <product-id>        add one unit
  cart set <product-id> <n>    set a quantity (0 removes)
  cart remove <product-id>     remove a line
  checkout -name N -email E -phone P
  track <order-id>             follow an order's status
  orders                       list orders (ADMIN=true)
  status <order-id> <status>   move an order (ADMIN=true)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg.Client, os.Args[1], os.Args[2:]); err != nil {
		slog.Error("❌ "+os.Args[1]+" failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ClientConfig, cmd string, args []string) error {
	logger := slog.Default()

	store, closeStore := cartStore(cfg)
	defer closeStore()
	c, err := cart.New(ctx, store, logger)
	if err != nil {
		return err
	}

	changed := make(chan struct{}, 1)
	sf := storefront.New(
		api.New(cfg.APIURL, cfg.RequestTimeout),
		session.WebSocketDialer{URL: cfg.WSURL},
		c,
		storefront.Config{
			Admin: cfg.Admin,
			Session: session.Config{
				MaxAttempts:  cfg.ReconnectAttempts,
				InitialDelay: cfg.ReconnectDelay,
				Multiplier:   2,
				MaxDelay:     cfg.ReconnectMaxDelay,
			},
			OnChange: func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			},
		},
		logger,
	)
	defer sf.Close()

	sf.OnStatus(func(st session.Status) {
		slog.Info("Connection", "state", st.State, "healthy", st.Healthy())
	})

	if err := sf.Start(ctx); err != nil {
		return err
	}

	switch cmd {
	case "menu":
		printMenu(sf)
		return nil
	case "watch":
		return watch(ctx, sf, changed)
	case "cart":
		return cartCommand(ctx, sf, args)
	case "checkout":
		return checkout(ctx, sf, args)
	case "track":
		if len(args) != 1 {
			return errors.New("track needs an order id")
		}
		if err := sf.Track(ctx, args[0]); err != nil {
			return err
		}
		return watch(ctx, sf, changed)
	case "orders":
		printOrders(sf)
		return nil
	case "status":
		if len(args) != 2 {
			return errors.New("status needs an order id and a status")
		}
		o, err := sf.Orders.UpdateStatus(ctx, args[0], entity.OrderStatus(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("order %s is now %s\n", o.ID, o.Status)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cartStore(cfg config.ClientConfig) (cart.Store, func()) {
	if cfg.RedisAddr == "" {
		return cart.NewFileStore(cfg.CartFile), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return cart.NewRedisStore(rdb, cfg.CartID, 0), func() { rdb.Close() }
}

func cartCommand(ctx context.Context, sf *storefront.Storefront, args []string) error {
	if len(args) == 0 {
		args = []string{"show"}
	}
	c := sf.Cart()

	switch args[0] {
	case "show":
	case "clear":
		if err := c.Clear(ctx); err != nil {
			return err
		}
	case "add", "remove":
		if len(args) != 2 {
			return fmt.Errorf("cart %s needs a product id", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid product id %q", args[1])
		}
		if args[0] == "add" {
			err = sf.AddToCart(ctx, id)
		} else {
			err = c.Remove(ctx, id)
		}
		if err != nil {
			return err
		}
	case "set":
		if len(args) != 3 {
			return errors.New("cart set needs a product id and a quantity")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid product id %q", args[1])
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[2])
		}
		if err := c.SetQuantity(ctx, id, n); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown cart command %q", args[0])
	}

	printCart(c)
	return nil
}

func checkout(ctx context.Context, sf *storefront.Storefront, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	var customer entity.CustomerInfo
	fs.StringVar(&customer.Name, "name", "", "customer name")
	fs.StringVar(&customer.Email, "email", "", "customer email")
	fs.StringVar(&customer.Phone, "phone", "", "customer phone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	order, err := sf.Checkout(ctx, customer)
	var v *entity.ValidationError
	if errors.As(err, &v) {
		for _, fe := range v.Errors {
			fmt.Printf("  %s: %s\n", fe.Field, fe.Message)
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("order %s placed, total %s, status %s\n", order.ID, order.Total.StringFixed(2), order.Status)
	return nil
}

func watch(ctx context.Context, sf *storefront.Storefront, changed <-chan struct{}) error {
	for {
		printMenu(sf)
		printOrders(sf)
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

func printMenu(sf *storefront.Storefront) {
	categories, groups := sf.Products.ByCategory()
	if err := sf.Products.Err(); err != nil {
		fmt.Printf("(catalog may be stale: %v)\n", err)
	}
	if !sf.Healthy() {
		fmt.Println("(offline: live updates paused)")
	}
	for _, category := range categories {
		fmt.Printf("== %s ==\n", category)
		for _, p := range groups[category] {
			status := ""
			if !p.Active {
				status = " [inactive]"
			}
			fmt.Printf("  #%-4d %-24s %8s  stock %d%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock, status)
		}
	}
}

func printOrders(sf *storefront.Storefront) {
	for _, o := range sf.Orders.Snapshot() {
		fmt.Printf("  %s  %-10s %8s  %s\n", o.ID, o.Status, o.Total.StringFixed(2), o.Customer.Name)
	}
}

func printCart(c *cart.Cart) {
	for _, l := range c.Lines() {
		fmt.Printf("  #%-4d %-24s x%d  %8s\n", l.ProductID, l.Name, l.Quantity, l.Subtotal().StringFixed(2))
	}
	fmt.Printf("  %d item(s), total %s\n", c.Count(), c.Total().StringFixed(2))
}
