// README: Drive session store backed by PostgreSQL; all mutations are single transactions.
package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// ItemSeed is one task to materialize when a session is created.
type ItemSeed struct {
	ProductID    int64
	OrderInDrive int
	TaskType     TaskType
}

// ItemWithProducts is an item joined to the names of its product slots, for
// the progress report.
type ItemWithProducts struct {
	ActiveDriveItem
	ProductName1  string  `json:"product_name_1"`
	ProductName2  *string `json:"product_name_2,omitempty"`
	ProductName3  *string `json:"product_name_3,omitempty"`
	ProductPrice1 int64   `json:"product_price_1"`
	ProductPrice2 *int64  `json:"product_price_2,omitempty"`
	ProductPrice3 *int64  `json:"product_price_3,omitempty"`
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
	if err := tx.Commit(ctx); err != nil {
		// Deferred constraints fire here.
		return translateUniqueViolation(err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (*DriveSession, error) {
	row := s.db.QueryRow(ctx, sessionSelect+` WHERE id = $1`, id)
	return scanSessionRow(row)
}

// CurrentSessionForUser returns the user's newest session still in flight
// (active, frozen or pending_reset).
func (s *Store) CurrentSessionForUser(ctx context.Context, userID int64) (*DriveSession, error) {
	row := s.db.QueryRow(ctx, sessionSelect+`
		WHERE user_id = $1 AND status IN ('active', 'frozen', 'pending_reset')
		ORDER BY created_at DESC
		LIMIT 1`, userID,
	)
	return scanSessionRow(row)
}

// CreateSessionWithItems creates a session and its item snapshot in one
// transaction: session row, one item per seed with the first marked CURRENT,
// then the session's current-item pointer. The user row is locked so two
// concurrent assignments for the same user serialize; the loser sees the
// winner's in-flight session and fails with ErrActiveSession.
func (s *Store) CreateSessionWithItems(ctx context.Context, userID, configID int64, tasksRequired int, seeds []ItemSeed) (*DriveSession, []ActiveDriveItem, error) {
	if len(seeds) == 0 {
		return nil, nil, fmt.Errorf("%w: no primary task set products defined", ErrValidation)
	}

	var session *DriveSession
	var items []ActiveDriveItem
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		if err != nil {
			return err
		}

		var inFlight bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM drive_sessions
				WHERE user_id = $1 AND status IN ('active', 'frozen', 'pending_reset')
			)`, userID,
		).Scan(&inFlight); err != nil {
			return err
		}
		if inFlight {
			return ErrActiveSession
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO drive_sessions (user_id, drive_configuration_id, status, tasks_required, started_at, created_at)
			VALUES ($1, $2, 'active', $3, NOW(), NOW())
			`+sessionReturning,
			userID, configID, tasksRequired,
		)
		session, err = scanSessionRow(row)
		if err != nil {
			return err
		}

		for i, seed := range seeds {
			status := ItemPending
			if i == 0 {
				status = ItemCurrent
			}
			item, err := insertItem(ctx, tx, userID, session.ID, seed.ProductID, seed.OrderInDrive, status, seed.TaskType)
			if err != nil {
				return err
			}
			items = append(items, *item)
		}

		firstID := items[0].ID
		if _, err := tx.Exec(ctx, `
			UPDATE drive_sessions SET current_user_active_drive_item_id = $1 WHERE id = $2`,
			firstID, session.ID,
		); err != nil {
			return err
		}
		session.CurrentItemID = &firstID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return session, items, nil
}

func (s *Store) GetItem(ctx context.Context, id int64) (*ActiveDriveItem, error) {
	row := s.db.QueryRow(ctx, itemSelect+` WHERE id = $1`, id)
	item, err := scanItemRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: active item %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store) ItemsForSession(ctx context.Context, sessionID int64) ([]ActiveDriveItem, error) {
	rows, err := s.db.Query(ctx, itemSelect+`
		WHERE drive_session_id = $1
		ORDER BY order_in_drive ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ActiveDriveItem
	for rows.Next() {
		item, err := scanItemRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// InsertComboItems shifts every item at or after insertAt right by
// len(productIDs) and inserts one combo item per product, all in one
// transaction. The session row is locked first, then the target item's
// position is re-read under that lock: if it no longer matches afterOrder
// a concurrent insertion renumbered the list and the caller gets
// ErrConflict instead of a write at a stale position. The deferred unique
// on (session, order) turns any remaining lost race into ErrConflict at
// commit.
func (s *Store) InsertComboItems(ctx context.Context, sessionID, afterItemID int64, afterOrder, insertAt int, productIDs []int64) ([]ActiveDriveItem, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one product is required", ErrValidation)
	}

	var inserted []ActiveDriveItem
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var userID int64
		var status Status
		err := tx.QueryRow(ctx,
			`SELECT user_id, status FROM drive_sessions WHERE id = $1 FOR UPDATE`, sessionID,
		).Scan(&userID, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		if err != nil {
			return err
		}
		if status != StatusActive {
			return fmt.Errorf("%w: status is %s", ErrSessionClosed, status)
		}

		var currentOrder int
		err = tx.QueryRow(ctx, `
			SELECT order_in_drive FROM user_active_drive_items
			WHERE id = $1 AND drive_session_id = $2`,
			afterItemID, sessionID,
		).Scan(&currentOrder)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: active item %d", ErrNotFound, afterItemID)
		}
		if err != nil {
			return err
		}
		if currentOrder != afterOrder {
			return fmt.Errorf("%w: item %d moved from order %d to %d, retry with fresh state",
				ErrConflict, afterItemID, afterOrder, currentOrder)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE user_active_drive_items
			SET order_in_drive = order_in_drive + $1, updated_at = NOW()
			WHERE drive_session_id = $2 AND order_in_drive >= $3`,
			len(productIDs), sessionID, insertAt,
		); err != nil {
			return translateUniqueViolation(err)
		}

		for i, productID := range productIDs {
			item, err := insertItem(ctx, tx, userID, sessionID, productID, insertAt+i, ItemPending, TaskComboOrder)
			if err != nil {
				return err
			}
			inserted = append(inserted, *item)
		}

		_, err = tx.Exec(ctx, `
			UPDATE drive_sessions SET tasks_required = tasks_required + $1 WHERE id = $2`,
			len(productIDs), sessionID,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// AddProductToSlot fills the first free add-on slot (product_id_2, then
// product_id_3) of an item that has not been completed yet.
func (s *Store) AddProductToSlot(ctx context.Context, itemID, productID int64) (*ActiveDriveItem, error) {
	var updated *ActiveDriveItem
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, itemSelect+` WHERE id = $1 FOR UPDATE`, itemID)
		item, err := scanItemRow(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: active item %d", ErrNotFound, itemID)
		}
		if err != nil {
			return err
		}
		if item.UserStatus == ItemCompleted {
			return fmt.Errorf("%w: item already completed", ErrValidation)
		}
		if item.ProductID1 == productID ||
			(item.ProductID2 != nil && *item.ProductID2 == productID) ||
			(item.ProductID3 != nil && *item.ProductID3 == productID) {
			return fmt.Errorf("%w: product already on item", ErrConflict)
		}

		var column string
		switch {
		case item.ProductID2 == nil:
			column = "product_id_2"
		case item.ProductID3 == nil:
			column = "product_id_3"
		default:
			return fmt.Errorf("%w: both add-on slots are full", ErrValidation)
		}

		row = tx.QueryRow(ctx, `
			UPDATE user_active_drive_items
			SET `+column+` = $1, updated_at = NOW()
			WHERE id = $2
			`+itemReturning, productID, itemID,
		)
		updated, err = scanItemRow(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateSessionStatus applies a guarded status transition.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID int64, to Status) (*DriveSession, error) {
	var updated *DriveSession
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var from Status
		err := tx.QueryRow(ctx,
			`SELECT status FROM drive_sessions WHERE id = $1 FOR UPDATE`, sessionID,
		).Scan(&from)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		if err != nil {
			return err
		}
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
		}

		var completedAt *time.Time
		if to == StatusCompleted {
			now := time.Now()
			completedAt = &now
		}
		row := tx.QueryRow(ctx, `
			UPDATE drive_sessions
			SET status = $1, completed_at = COALESCE($2, completed_at)
			WHERE id = $3
			`+sessionReturning, to, completedAt, sessionID,
		)
		updated, err = scanSessionRow(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ItemsWithProducts resolves product names for every slot of every item in a
// session, ordered by position. Reads live state; combo renumbering is
// visible immediately.
func (s *Store) ItemsWithProducts(ctx context.Context, sessionID int64) ([]ItemWithProducts, error) {
	rows, err := s.db.Query(ctx, `
		SELECT i.id, i.user_id, i.drive_session_id,
		       i.product_id_1, i.product_id_2, i.product_id_3,
		       i.order_in_drive, i.user_status, i.task_type,
		       i.created_at, i.updated_at,
		       p1.name, p2.name, p3.name,
		       p1.price, p2.price, p3.price
		FROM user_active_drive_items i
		JOIN products p1 ON p1.id = i.product_id_1
		LEFT JOIN products p2 ON p2.id = i.product_id_2
		LEFT JOIN products p3 ON p3.id = i.product_id_3
		WHERE i.drive_session_id = $1
		ORDER BY i.order_in_drive ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ItemWithProducts
	for rows.Next() {
		var it ItemWithProducts
		if err := rows.Scan(
			&it.ID, &it.UserID, &it.DriveSessionID,
			&it.ProductID1, &it.ProductID2, &it.ProductID3,
			&it.OrderInDrive, &it.UserStatus, &it.TaskType,
			&it.CreatedAt, &it.UpdatedAt,
			&it.ProductName1, &it.ProductName2, &it.ProductName3,
			&it.ProductPrice1, &it.ProductPrice2, &it.ProductPrice3,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ConfigurationName looks up the name of the configuration a session was
// instantiated from.
func (s *Store) ConfigurationName(ctx context.Context, configID int64) (string, error) {
	var name string
	err := s.db.QueryRow(ctx,
		`SELECT name FROM drive_configurations WHERE id = $1`, configID,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: configuration %d", ErrNotFound, configID)
	}
	return name, err
}

// --- internals ---

const sessionReturning = `
	RETURNING id, user_id, drive_configuration_id, status, tasks_required,
	          current_user_active_drive_item_id, started_at, completed_at, created_at`

const sessionSelect = `
	SELECT id, user_id, drive_configuration_id, status, tasks_required,
	       current_user_active_drive_item_id, started_at, completed_at, created_at
	FROM drive_sessions`

const itemReturning = `
	RETURNING id, user_id, drive_session_id, product_id_1, product_id_2, product_id_3,
	          order_in_drive, user_status, task_type, created_at, updated_at`

const itemSelect = `
	SELECT id, user_id, drive_session_id, product_id_1, product_id_2, product_id_3,
	       order_in_drive, user_status, task_type, created_at, updated_at
	FROM user_active_drive_items`

func insertItem(ctx context.Context, tx pgx.Tx, userID, sessionID, productID int64, order int, status ItemStatus, taskType TaskType) (*ActiveDriveItem, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO user_active_drive_items (
			user_id, drive_session_id, product_id_1,
			order_in_drive, user_status, task_type, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`+itemReturning,
		userID, sessionID, productID, order, status, taskType,
	)
	item, err := scanItemRow(row)
	if err != nil {
		return nil, translateUniqueViolation(err)
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionRow(row rowScanner) (*DriveSession, error) {
	var sess DriveSession
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.DriveConfigurationID, &sess.Status, &sess.TasksRequired,
		&sess.CurrentItemID, &sess.StartedAt, &sess.CompletedAt, &sess.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanItemRow(row rowScanner) (*ActiveDriveItem, error) {
	var item ActiveDriveItem
	err := row.Scan(
		&item.ID, &item.UserID, &item.DriveSessionID,
		&item.ProductID1, &item.ProductID2, &item.ProductID3,
		&item.OrderInDrive, &item.UserStatus, &item.TaskType,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: concurrent renumbering, retry with fresh state", ErrConflict)
	}
	return err
}
