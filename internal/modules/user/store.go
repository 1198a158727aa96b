// README: User lookups backed by PostgreSQL (tier, balance, assigned configuration).
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID                      int64
	Username                string
	Tier                    string
	Balance                 int64
	AssignedConfigurationID *int64
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, tier, balance, assigned_drive_configuration_id
		FROM users
		WHERE id = $1`, id,
	)
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Tier, &u.Balance, &u.AssignedConfigurationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TierForUser satisfies commission.TierSource.
func (s *Store) TierForUser(ctx context.Context, id int64) (string, error) {
	var tier string
	err := s.db.QueryRow(ctx, `SELECT tier FROM users WHERE id = $1`, id).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return tier, nil
}

func (s *Store) SetAssignedConfiguration(ctx context.Context, userID, configID int64) (*User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET assigned_drive_configuration_id = $1
		WHERE id = $2
		RETURNING id, username, tier, balance, assigned_drive_configuration_id`,
		configID, userID,
	)
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Tier, &u.Balance, &u.AssignedConfigurationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
