// README: Drive configuration store backed by PostgreSQL.
package driveconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Create persists a configuration and one non-combo task set per product, in
// list order, each holding its product at order_in_set = 1.
func (s *Store) Create(ctx context.Context, cfg DriveConfiguration, productIDs []int64) (*DriveConfiguration, error) {
	var created DriveConfiguration
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO drive_configurations (name, description, tasks_required, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING id, name, COALESCE(description, ''), tasks_required, is_active, created_at, updated_at`,
			cfg.Name, cfg.Description, cfg.TasksRequired, cfg.IsActive,
		)
		if err := scanConfiguration(row, &created); err != nil {
			return err
		}
		for i, productID := range productIDs {
			if err := createTaskSetWithProduct(ctx, tx, created.ID, positionalName(i+1), i+1, false, productID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*DriveConfiguration, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), tasks_required, is_active, created_at, updated_at
		FROM drive_configurations
		WHERE id = $1`, id,
	)
	var cfg DriveConfiguration
	if err := scanConfiguration(row, &cfg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) List(ctx context.Context) ([]DriveConfiguration, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), tasks_required, is_active, created_at, updated_at
		FROM drive_configurations
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []DriveConfiguration
	for rows.Next() {
		var cfg DriveConfiguration
		if err := scanConfiguration(rows, &cfg); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Update rewrites the configuration's scalar fields and resequences its
// non-combo task sets against the target product list, all in one
// transaction. Combo task sets are never touched. The returned bool reports
// whether the resequence changed anything.
func (s *Store) Update(ctx context.Context, cfg DriveConfiguration, productIDs []int64) (*DriveConfiguration, bool, error) {
	var updated DriveConfiguration
	var changed bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE drive_configurations
			SET name = $1, description = $2, tasks_required = $3, is_active = $4, updated_at = NOW()
			WHERE id = $5
			RETURNING id, name, COALESCE(description, ''), tasks_required, is_active, created_at, updated_at`,
			cfg.Name, cfg.Description, cfg.TasksRequired, cfg.IsActive, cfg.ID,
		)
		if err := scanConfiguration(row, &updated); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		current, err := nonComboLinks(ctx, tx, cfg.ID)
		if err != nil {
			return err
		}
		plan := Resequence(current, productIDs)
		if plan.IsNoop() {
			return nil
		}
		changed = true
		return applyPlan(ctx, tx, cfg.ID, plan)
	})
	if err != nil {
		return nil, false, err
	}
	return &updated, changed, nil
}

// Delete removes a configuration once nothing references it: no session in a
// non-terminal status, no user assignment, no remaining task set.
func (s *Store) Delete(ctx context.Context, id int64) (*DriveConfiguration, error) {
	var deleted DriveConfiguration
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM drive_sessions
				WHERE drive_configuration_id = $1
				  AND status IN ('active', 'pending_reset', 'frozen')
			)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: configuration has active drive sessions", ErrConflict)
		}

		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM users WHERE assigned_drive_configuration_id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: configuration is assigned to users", ErrConflict)
		}

		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM drive_task_sets WHERE drive_configuration_id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: configuration still has task sets", ErrConflict)
		}

		row := tx.QueryRow(ctx, `
			DELETE FROM drive_configurations
			WHERE id = $1
			RETURNING id, name, COALESCE(description, ''), tasks_required, is_active, created_at, updated_at`, id,
		)
		if err := scanConfiguration(row, &deleted); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// --- task sets ---

// CreateTaskSet persists an ad-hoc task set with its products in list order.
func (s *Store) CreateTaskSet(ctx context.Context, ts TaskSet, productIDs []int64) (*TaskSet, error) {
	var created TaskSet
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM drive_configurations WHERE id = $1)`, ts.DriveConfigurationID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO drive_task_sets (drive_configuration_id, name, description, order_in_drive, is_combo, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id, drive_configuration_id, name, COALESCE(description, ''), order_in_drive, is_combo, created_at`,
			ts.DriveConfigurationID, ts.Name, ts.Description, ts.OrderInDrive, ts.IsCombo,
		)
		if err := scanTaskSet(row, &created); err != nil {
			return err
		}
		for i, productID := range productIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO drive_task_set_products (task_set_id, product_id, order_in_set, created_at)
				VALUES ($1, $2, $3, NOW())`,
				created.ID, productID, i+1,
			); err != nil {
				return translateUniqueViolation(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetTaskSet(ctx context.Context, id int64) (*TaskSet, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, drive_configuration_id, name, COALESCE(description, ''), order_in_drive, is_combo, created_at
		FROM drive_task_sets
		WHERE id = $1`, id,
	)
	var ts TaskSet
	if err := scanTaskSet(row, &ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ts, nil
}

func (s *Store) ListTaskSets(ctx context.Context, configID int64) ([]TaskSet, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, drive_configuration_id, name, COALESCE(description, ''), order_in_drive, is_combo, created_at
		FROM drive_task_sets
		WHERE drive_configuration_id = $1
		ORDER BY order_in_drive ASC`, configID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []TaskSet
	for rows.Next() {
		var ts TaskSet
		if err := scanTaskSet(rows, &ts); err != nil {
			return nil, err
		}
		sets = append(sets, ts)
	}
	return sets, rows.Err()
}

// DeleteTaskSet removes a task set once it has no product links.
func (s *Store) DeleteTaskSet(ctx context.Context, id int64) (*TaskSet, error) {
	var deleted TaskSet
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM drive_task_set_products WHERE task_set_id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: task set still has product links", ErrConflict)
		}
		row := tx.QueryRow(ctx, `
			DELETE FROM drive_task_sets
			WHERE id = $1
			RETURNING id, drive_configuration_id, name, COALESCE(description, ''), order_in_drive, is_combo, created_at`, id,
		)
		if err := scanTaskSet(row, &deleted); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// AddProduct links a product into a task set slot. A colliding
// (task_set_id, order_in_set) is a conflict. Combo sets accept only one link.
func (s *Store) AddProduct(ctx context.Context, link TaskSetProduct) (*TaskSetProduct, error) {
	var created TaskSetProduct
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var isCombo bool
		err := tx.QueryRow(ctx,
			`SELECT is_combo FROM drive_task_sets WHERE id = $1`, link.TaskSetID,
		).Scan(&isCombo)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if isCombo {
			var linked bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM drive_task_set_products WHERE task_set_id = $1)`, link.TaskSetID,
			).Scan(&linked); err != nil {
				return err
			}
			if linked {
				return fmt.Errorf("%w: combo task sets hold exactly one product", ErrValidation)
			}
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO drive_task_set_products (task_set_id, product_id, order_in_set, price_override, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING id, task_set_id, product_id, order_in_set, price_override`,
			link.TaskSetID, link.ProductID, link.OrderInSet, link.PriceOverride,
		)
		if err := row.Scan(&created.ID, &created.TaskSetID, &created.ProductID, &created.OrderInSet, &created.PriceOverride); err != nil {
			return translateUniqueViolation(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) RemoveProduct(ctx context.Context, linkID int64) (*TaskSetProduct, error) {
	row := s.db.QueryRow(ctx, `
		DELETE FROM drive_task_set_products
		WHERE id = $1
		RETURNING id, task_set_id, product_id, order_in_set, price_override`, linkID,
	)
	var removed TaskSetProduct
	err := row.Scan(&removed.ID, &removed.TaskSetID, &removed.ProductID, &removed.OrderInSet, &removed.PriceOverride)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// NonComboLinks returns the current primary links of a configuration, one
// per non-combo task set, ordered by position.
func (s *Store) NonComboLinks(ctx context.Context, configID int64) ([]TaskSetLink, error) {
	return nonComboLinksQuerier(ctx, s.db, configID)
}

// --- internals ---

func nonComboLinks(ctx context.Context, tx pgx.Tx, configID int64) ([]TaskSetLink, error) {
	return nonComboLinksQuerier(ctx, tx, configID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func nonComboLinksQuerier(ctx context.Context, q querier, configID int64) ([]TaskSetLink, error) {
	rows, err := q.Query(ctx, `
		SELECT ts.id, tsp.product_id, ts.order_in_drive
		FROM drive_task_sets ts
		JOIN drive_task_set_products tsp ON tsp.task_set_id = ts.id
		WHERE ts.drive_configuration_id = $1
		  AND ts.is_combo = FALSE
		  AND tsp.order_in_set = 1
		ORDER BY ts.order_in_drive ASC`, configID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []TaskSetLink
	for rows.Next() {
		var l TaskSetLink
		if err := rows.Scan(&l.TaskSetID, &l.ProductID, &l.OrderInDrive); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func applyPlan(ctx context.Context, tx pgx.Tx, configID int64, plan Plan) error {
	for _, setID := range plan.ToDelete {
		if _, err := tx.Exec(ctx,
			`DELETE FROM drive_task_set_products WHERE task_set_id = $1`, setID,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM drive_task_sets WHERE id = $1 AND drive_configuration_id = $2`, setID, configID,
		); err != nil {
			return err
		}
	}
	for _, u := range plan.ToUpdate {
		if _, err := tx.Exec(ctx, `
			UPDATE drive_task_sets
			SET order_in_drive = $1, name = $2
			WHERE id = $3 AND drive_configuration_id = $4`,
			u.OrderInDrive, u.Name, u.TaskSetID, configID,
		); err != nil {
			return err
		}
	}
	for _, c := range plan.ToCreate {
		if err := createTaskSetWithProduct(ctx, tx, configID, c.Name, c.OrderInDrive, false, c.ProductID); err != nil {
			return err
		}
	}
	return nil
}

func createTaskSetWithProduct(ctx context.Context, tx pgx.Tx, configID int64, name string, order int, isCombo bool, productID int64) error {
	var taskSetID int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO drive_task_sets (drive_configuration_id, name, order_in_drive, is_combo, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id`,
		configID, name, order, isCombo,
	).Scan(&taskSetID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO drive_task_set_products (task_set_id, product_id, order_in_set, created_at)
		VALUES ($1, $2, 1, NOW())`,
		taskSetID, productID,
	); err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: order slot already taken", ErrConflict)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfiguration(row rowScanner, cfg *DriveConfiguration) error {
	return row.Scan(&cfg.ID, &cfg.Name, &cfg.Description, &cfg.TasksRequired, &cfg.IsActive, &cfg.CreatedAt, &cfg.UpdatedAt)
}

func scanTaskSet(row rowScanner, ts *TaskSet) error {
	return row.Scan(&ts.ID, &ts.DriveConfigurationID, &ts.Name, &ts.Description, &ts.OrderInDrive, &ts.IsCombo, &ts.CreatedAt)
}
