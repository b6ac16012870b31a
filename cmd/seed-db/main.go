// Binary seed-db loads a demo catalog and coupon set, and prints a signed
// buyer token for exercising the API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendora/checkout/internal/handler"
	"github.com/trendora/checkout/internal/repository"
)

type seedProduct struct {
	id          string
	name        string
	price       string
	category    string
	subCategory string
	sizes       []string
	stock       int
	discount    string
	bestseller  bool
}

var products = []seedProduct{
	{id: "shirt-oxford", name: "Oxford Shirt", price: "49.90", category: "Men", subCategory: "Topwear",
		sizes: []string{"S", "M", "L", "XL"}, stock: 40, discount: "0", bestseller: true},
	{id: "tee-basic", name: "Basic Tee", price: "19.90", category: "Men", subCategory: "Topwear",
		sizes: []string{"S", "M", "L"}, stock: 120, discount: "10"},
	{id: "dress-linen", name: "Linen Dress", price: "89.00", category: "Women", subCategory: "Topwear",
		sizes: []string{"S", "M"}, stock: 25, discount: "0", bestseller: true},
	{id: "jeans-slim", name: "Slim Jeans", price: "69.50", category: "Men", subCategory: "Bottomwear",
		sizes: []string{"M", "L", "XL"}, stock: 60, discount: "15"},
	{id: "hoodie-kids", name: "Kids Hoodie", price: "34.00", category: "Kids", subCategory: "Winterwear",
		sizes: []string{"S", "M"}, stock: 80, discount: "0"},
}

type seedCoupon struct {
	code        string
	kind        string
	value       string
	minPurchase string
	maxDiscount string
	maxUses     int
	description string
}

var coupons = []seedCoupon{
	{code: "SUMMER10", kind: "percentage", value: "10", minPurchase: "50", maxDiscount: "25",
		description: "Summer sale: 10% off orders over $50"},
	{code: "WELCOME-5", kind: "fixed", value: "5", minPurchase: "0", maxDiscount: "0",
		maxUses: 1000, description: "Welcome: $5 off your first order"},
	{code: "VIP20", kind: "percentage", value: "20", minPurchase: "100", maxDiscount: "50",
		maxUses: 100, description: "VIP: 20% off orders over $100"},
}

const (
	upsertProductSQL = `INSERT INTO products (id, name, price, category, sub_category, sizes, stock, discount, bestseller)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			sub_category = EXCLUDED.sub_category,
			sizes = EXCLUDED.sizes,
			stock = EXCLUDED.stock,
			discount = EXCLUDED.discount,
			bestseller = EXCLUDED.bestseller`

	upsertVariantSQL = `INSERT INTO product_variants (product_id, size, stock)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, size) DO UPDATE SET stock = EXCLUDED.stock`

	upsertSeedCouponSQL = `INSERT INTO coupons (code, kind, value, min_purchase, max_discount, max_uses, description, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind,
			value = EXCLUDED.value,
			min_purchase = EXCLUDED.min_purchase,
			max_discount = EXCLUDED.max_discount,
			max_uses = EXCLUDED.max_uses,
			description = EXCLUDED.description,
			active = TRUE`
)

func main() {
	var (
		databaseURL string
		jwtSecret   string
		buyerID     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HS256 signing secret (or CHECKOUT_JWT_SECRET env)")
	flag.StringVar(&buyerID, "buyer-id", "demo-buyer", "buyer ID to issue a token for")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("CHECKOUT_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, jwtSecret, buyerID); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, jwtSecret, buyerID string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if jwtSecret != "" {
		token, err := handler.NewAuthenticator([]byte(jwtSecret)).IssueToken(buyerID)
		if err != nil {
			return errors.Wrap(err, "issue buyer token")
		}
		slog.Info("demo buyer token issued", slog.String("buyer_id", buyerID), slog.String("token", token))
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.id, p.name, p.price, p.category, p.subCategory, p.sizes,
			p.stock, p.discount, p.bestseller,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.id)
		}

		// Spread the aggregate stock evenly over the sizes so per-variant
		// deployments have rows to decrement.
		perSize := p.stock / len(p.sizes)
		for _, size := range p.sizes {
			if _, err := pool.Exec(ctx, upsertVariantSQL, p.id, size, perSize); err != nil {
				return errors.Wrapf(err, "upsert variant %s/%s", p.id, size)
			}
		}

		slog.Info("upserted product", slog.String("id", p.id), slog.String("name", p.name))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertSeedCouponSQL,
			c.code, c.kind, c.value, c.minPurchase, c.maxDiscount, c.maxUses, c.description,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
	}
	return nil
}
