// README: Product store backed by PostgreSQL with a Redis read-through cache.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"taskdrive/internal/types"
)

var ErrNotFound = errors.New("product not found")

const activeProductsCacheKey = "drive:products:active"

type Store struct {
	db       *pgxpool.Pool
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewStore builds a store. cache may be nil; caching is then disabled.
func NewStore(db *pgxpool.Pool, cache *redis.Client, cacheTTL time.Duration) *Store {
	return &Store{db: db, cache: cache, cacheTTL: cacheTTL}
}

func (s *Store) Get(ctx context.Context, id int64) (*Product, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), price, COALESCE(image_url, ''), is_active
		FROM products
		WHERE id = $1`, id,
	)
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create persists a product and drops the active-listing cache.
func (s *Store) Create(ctx context.Context, p Product) (*Product, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO products (name, description, price, image_url, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, name, COALESCE(description, ''), price, COALESCE(image_url, ''), is_active`,
		p.Name, p.Description, p.Price, p.ImageURL, p.IsActive,
	)
	var created Product
	if err := row.Scan(&created.ID, &created.Name, &created.Description, &created.Price, &created.ImageURL, &created.IsActive); err != nil {
		return nil, err
	}
	s.InvalidateActiveCache(ctx)
	return &created, nil
}

func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

// ListActive returns all active products, serving from Redis when warm.
func (s *Store) ListActive(ctx context.Context) ([]Product, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, activeProductsCacheKey).Bytes()
		if err == nil {
			var cached []Product
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), price, COALESCE(image_url, ''), is_active
		FROM products
		WHERE is_active = TRUE
		ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(products); err == nil {
			// Cache failures are not load-bearing.
			_ = s.cache.Set(ctx, activeProductsCacheKey, raw, s.cacheTTL).Err()
		}
	}
	return products, nil
}

// InvalidateActiveCache drops the cached active-product listing.
func (s *Store) InvalidateActiveCache(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, activeProductsCacheKey).Err()
	}
}

// ProductsInBalanceRange returns active products priced within the balance
// filter window, in random order, capped at limit when limit > 0.
func (s *Store) ProductsInBalanceRange(ctx context.Context, balance types.Money, limit int) ([]Product, error) {
	r := RangeForBalance(balance)
	q := `
		SELECT id, name, COALESCE(description, ''), price, COALESCE(image_url, ''), is_active
		FROM products
		WHERE is_active = TRUE
		  AND price >= $1
		  AND price <= $2
		ORDER BY RANDOM()`
	args := []any{r.Min.Amount, r.Max.Amount}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

// ListForConfiguration returns the distinct active products referenced by a
// configuration's task sets, ordered by name.
func (s *Store) ListForConfiguration(ctx context.Context, configID int64) ([]Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT p.id, p.name, COALESCE(p.description, ''), p.price, COALESCE(p.image_url, ''), p.is_active
		FROM products p
		JOIN drive_task_set_products dtsp ON p.id = dtsp.product_id
		JOIN drive_task_sets dts ON dtsp.task_set_id = dts.id
		WHERE dts.drive_configuration_id = $1 AND p.is_active = TRUE
		ORDER BY p.name`, configID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

// TierQuantity returns the product quantity cap for a tier, preferring the
// tier_quantity_configs row and falling back to the built-in defaults.
// Tier names are stored lowercase; the lookup normalizes its input so
// "Gold" and "gold" resolve to the same cap.
func (s *Store) TierQuantity(ctx context.Context, tier string) (int, error) {
	tier = strings.ToLower(tier)
	var limit int
	err := s.db.QueryRow(ctx, `
		SELECT quantity_limit FROM tier_quantity_configs
		WHERE tier_name = $1 AND is_active = TRUE`, tier,
	).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultTierQuantity(tier), nil
	}
	if err != nil {
		return 0, err
	}
	return limit, nil
}

type TierQuantityConfig struct {
	TierName      string `json:"tier_name"`
	QuantityLimit int    `json:"quantity_limit"`
	IsActive      bool   `json:"is_active"`
}

func (s *Store) ListTierQuantities(ctx context.Context) ([]TierQuantityConfig, error) {
	rows, err := s.db.Query(ctx, `
		SELECT tier_name, quantity_limit, is_active
		FROM tier_quantity_configs
		ORDER BY quantity_limit, tier_name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []TierQuantityConfig
	for rows.Next() {
		var c TierQuantityConfig
		if err := rows.Scan(&c.TierName, &c.QuantityLimit, &c.IsActive); err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

func (s *Store) UpsertTierQuantity(ctx context.Context, tier string, limit int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tier_quantity_configs (tier_name, quantity_limit)
		VALUES ($1, $2)
		ON CONFLICT (tier_name) DO UPDATE SET quantity_limit = EXCLUDED.quantity_limit`,
		tier, limit,
	)
	return err
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.IsActive); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
