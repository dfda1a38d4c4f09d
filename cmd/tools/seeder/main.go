package main

import (
	"context"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/adiwidodo/backend-belanja/internal/config"
	"github.com/adiwidodo/backend-belanja/internal/db"
	"github.com/adiwidodo/backend-belanja/internal/obs"
)

// Seeds a development database with an admin account, a small catalog, and a
// pair of coupons. Safe to run repeatedly.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "belanja-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	adminHash, err := argon2id.CreateHash("admin12345", argon2id.DefaultParams)
	if err != nil {
		logger.Fatal().Err(err).Msg("hash admin password")
	}
	customerHash, err := argon2id.CreateHash("customer12345", argon2id.DefaultParams)
	if err != nil {
		logger.Fatal().Err(err).Msg("hash customer password")
	}

	statements := []struct {
		label string
		sql   string
		args  []any
	}{
		{
			"admin user",
			`INSERT INTO users (email, password_hash, full_name, role)
			 VALUES ($1, $2, 'Admin Belanja', 'admin')
			 ON CONFLICT DO NOTHING`,
			[]any{"admin@belanja.test", adminHash},
		},
		{
			"customer user",
			`INSERT INTO users (email, password_hash, full_name, role)
			 VALUES ($1, $2, 'Budi Santoso', 'customer')
			 ON CONFLICT DO NOTHING`,
			[]any{"budi@belanja.test", customerHash},
		},
		{
			"categories",
			`INSERT INTO categories (name, slug)
			 VALUES ('Elektronik', 'elektronik'), ('Fashion', 'fashion'), ('Rumah Tangga', 'rumah-tangga')
			 ON CONFLICT (slug) DO NOTHING`,
			nil,
		},
		{
			"brands",
			`INSERT INTO brands (name, slug)
			 VALUES ('Nusantara', 'nusantara'), ('Garuda', 'garuda')
			 ON CONFLICT (slug) DO NOTHING`,
			nil,
		},
		{
			"products",
			`INSERT INTO products (category_id, brand_id, name, slug, description, price, sale_price, stock, is_active, is_featured)
			 SELECT c.id, b.id, v.name, v.slug, v.description, v.price, v.sale_price, v.stock, TRUE, v.is_featured
			 FROM (VALUES
				('Headphone Nirkabel', 'headphone-nirkabel', 'Headphone bluetooth dengan peredam bising.', 75000000::bigint, 59900000::bigint, 40, TRUE),
				('Kemeja Batik', 'kemeja-batik', 'Kemeja batik katun premium.', 25000000::bigint, NULL::bigint, 120, FALSE),
				('Blender Dapur', 'blender-dapur', 'Blender 1.5 liter untuk kebutuhan harian.', 45000000::bigint, NULL::bigint, 25, FALSE)
			 ) AS v(name, slug, description, price, sale_price, stock, is_featured)
			 CROSS JOIN LATERAL (SELECT id FROM categories WHERE slug = 'elektronik') c
			 CROSS JOIN LATERAL (SELECT id FROM brands WHERE slug = 'nusantara') b
			 ON CONFLICT (slug) DO NOTHING`,
			nil,
		},
		{
			"coupons",
			`INSERT INTO coupons (code, kind, value, percent_bps, min_purchase, max_discount, valid_from, valid_to, is_active)
			 VALUES
				('HEMAT10', 'percentage', 0, 1000, 10000000, 5000000, now(), now() + interval '90 days', TRUE),
				('POTONGAN50K', 'fixed', 5000000, 0, 25000000, NULL, now(), now() + interval '30 days', TRUE)
			 ON CONFLICT DO NOTHING`,
			nil,
		},
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt.sql, stmt.args...); err != nil {
			logger.Fatal().Err(err).Str("step", stmt.label).Msg("seed step failed")
		}
		logger.Info().Str("step", stmt.label).Msg("seeded")
	}

	logger.Info().Msg("seeding completed")
}
