// README: Drive service: session assignment, combo insertion, progress reporting.
package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskdrive/internal/logger"
	"taskdrive/internal/metrics"
	"taskdrive/internal/modules/driveconfig"
	"taskdrive/internal/modules/product"
	"taskdrive/internal/modules/user"
	"taskdrive/internal/types"
)

// UserDirectory resolves users and their assigned-configuration pointer.
type UserDirectory interface {
	Get(ctx context.Context, id int64) (*user.User, error)
	SetAssignedConfiguration(ctx context.Context, userID, configID int64) (*user.User, error)
}

// ConfigSource reads configurations and their non-combo primary links, and
// materializes generated configurations for tier-based assignment.
type ConfigSource interface {
	Get(ctx context.Context, id int64) (*driveconfig.DriveConfiguration, error)
	NonComboLinks(ctx context.Context, configID int64) ([]driveconfig.TaskSetLink, error)
	Create(ctx context.Context, cfg driveconfig.DriveConfiguration, productIDs []int64) (*driveconfig.DriveConfiguration, error)
}

// ProductSource covers the product lookups assignment needs: existence
// checks, the balance-window filter and the per-tier quantity cap.
type ProductSource interface {
	Exists(ctx context.Context, id int64) (bool, error)
	ProductsInBalanceRange(ctx context.Context, balance types.Money, limit int) ([]product.Product, error)
	TierQuantity(ctx context.Context, tier string) (int, error)
}

// RateProvider yields the commission rate and amount for a tier and task
// kind. The commission service is the only pricing authority; progress
// reporting never recomputes amounts on its own.
type RateProvider interface {
	RateForTier(tier string, combo bool) float64
	CommissionForTier(price types.Money, tier string, combo bool) types.Money
}

type Service struct {
	store    *Store
	users    UserDirectory
	configs  ConfigSource
	products ProductSource
	rates    RateProvider
	log      *logger.Logger
}

func NewService(store *Store, users UserDirectory, configs ConfigSource, products ProductSource, rates RateProvider, log *logger.Logger) *Service {
	return &Service{store: store, users: users, configs: configs, products: products, rates: rates, log: log}
}

type AssignCommand struct {
	UserID               int64
	DriveConfigurationID int64
}

type AddComboCommand struct {
	UserID        int64
	AfterItemID   int64
	ProductIDs    []int64
	InsertAtOrder *int
}

// Assignment is the result of creating a session: the session row plus its
// item snapshot in order.
type Assignment struct {
	Session *DriveSession     `json:"drive_session"`
	Items   []ActiveDriveItem `json:"items"`
}

// ProgressItem is one row of the progress report, priced with the user's
// commission rate for its task kind.
type ProgressItem struct {
	ItemWithProducts
	CommissionRate   float64 `json:"commission_rate"`
	CommissionAmount int64   `json:"commission_amount"`
}

// Progress is the per-session view the admin UI polls.
type Progress struct {
	DriveSessionID    int64          `json:"drive_session_id"`
	UserID            int64          `json:"user_id"`
	ConfigurationName string         `json:"configuration_name"`
	Status            Status         `json:"status"`
	TasksRequired     int            `json:"tasks_required"`
	TotalItems        int            `json:"total_items"`
	CompletedItems    int            `json:"completed_items"`
	CurrentItemID     *int64         `json:"current_item_id,omitempty"`
	Items             []ProgressItem `json:"items"`
}

// AssignDriveToUser creates a session for the user from an active
// configuration: one item per non-combo task set in order, first item
// CURRENT, session pointer set, all in one transaction.
func (s *Service) AssignDriveToUser(ctx context.Context, cmd AssignCommand) (*Assignment, error) {
	cfg, err := s.loadConfiguration(ctx, cmd.DriveConfigurationID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsActive {
		return nil, fmt.Errorf("%w: configuration %d is inactive", ErrNotFound, cfg.ID)
	}
	return s.assign(ctx, cmd.UserID, cfg)
}

// AssignConfigurationToUser is the idempotent admin override: it repoints
// users.assigned_drive_configuration_id, and creates a session only when the
// user has none in flight.
func (s *Service) AssignConfigurationToUser(ctx context.Context, cmd AssignCommand) (*user.User, *Assignment, error) {
	cfg, err := s.loadConfiguration(ctx, cmd.DriveConfigurationID)
	if err != nil {
		return nil, nil, err
	}

	u, err := s.users.SetAssignedConfiguration(ctx, cmd.UserID, cfg.ID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: user %d", ErrNotFound, cmd.UserID)
	}
	if err != nil {
		return nil, nil, err
	}

	assignment, err := s.assign(ctx, cmd.UserID, cfg)
	if errors.Is(err, ErrActiveSession) {
		// Running session stays untouched.
		return u, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return u, assignment, nil
}

// AssignTierBasedDrive builds a one-off configuration from the user's
// balance window and tier quantity cap, then runs the normal assignment
// path. The generated configuration is kept inactive so it never shows up as
// a reusable template.
func (s *Service) AssignTierBasedDrive(ctx context.Context, userID int64) (*Assignment, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	// Fail before materializing a configuration the user cannot take on.
	// The assignment transaction re-checks under the user lock.
	if _, err := s.store.CurrentSessionForUser(ctx, userID); err == nil {
		return nil, ErrActiveSession
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	limit, err := s.products.TierQuantity(ctx, u.Tier)
	if err != nil {
		return nil, err
	}
	candidates, err := s.products.ProductsInBalanceRange(ctx, types.Money{Amount: u.Balance}, limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no products in balance range for user %d", ErrValidation, userID)
	}

	productIDs := make([]int64, len(candidates))
	for i, p := range candidates {
		productIDs[i] = p.ID
	}
	cfg, err := s.configs.Create(ctx, driveconfig.DriveConfiguration{
		Name:          fmt.Sprintf("%s tier drive %s", u.Tier, time.Now().Format("20060102150405")),
		Description:   fmt.Sprintf("Generated for %s from balance filter", u.Username),
		TasksRequired: len(productIDs),
		IsActive:      false,
	}, productIDs)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.SetAssignedConfiguration(ctx, userID, cfg.ID); err != nil {
		return nil, err
	}
	return s.assign(ctx, userID, cfg)
}

// AddComboAfterItem inserts combo items immediately after the target item,
// shifting everything at or past the insertion point right by the number of
// products. A concurrent renumbering surfaces as ErrConflict; retry with
// fresh state.
func (s *Service) AddComboAfterItem(ctx context.Context, cmd AddComboCommand) ([]ActiveDriveItem, error) {
	if len(cmd.ProductIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one product is required", ErrValidation)
	}
	for _, id := range cmd.ProductIDs {
		ok, err := s.products.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: product %d does not exist", ErrValidation, id)
		}
	}

	item, err := s.store.GetItem(ctx, cmd.AfterItemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != cmd.UserID {
		return nil, fmt.Errorf("%w: item %d does not belong to user %d", ErrValidation, cmd.AfterItemID, cmd.UserID)
	}

	insertAt := item.OrderInDrive + 1
	if cmd.InsertAtOrder != nil {
		if *cmd.InsertAtOrder <= item.OrderInDrive {
			return nil, fmt.Errorf("%w: insert position %d is not after item order %d", ErrValidation, *cmd.InsertAtOrder, item.OrderInDrive)
		}
		insertAt = *cmd.InsertAtOrder
	}

	inserted, err := s.store.InsertComboItems(ctx, item.DriveSessionID, item.ID, item.OrderInDrive, insertAt, cmd.ProductIDs)
	if errors.Is(err, ErrConflict) {
		metrics.ConflictsTotal.WithLabelValues("combo_insert").Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	metrics.CombosInsertedTotal.Add(float64(len(inserted)))
	s.log.Info("combo items inserted",
		"user_id", cmd.UserID, "session_id", item.DriveSessionID,
		"insert_at", insertAt, "count", len(inserted))
	return inserted, nil
}

// AddProductToItemSlot fills product slot 2 or 3 on one of the user's items.
func (s *Service) AddProductToItemSlot(ctx context.Context, userID, itemID, productID int64) (*ActiveDriveItem, error) {
	ok, err := s.products.Exists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: product %d does not exist", ErrValidation, productID)
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, fmt.Errorf("%w: item %d does not belong to user %d", ErrValidation, itemID, userID)
	}
	return s.store.AddProductToSlot(ctx, itemID, productID)
}

// UserProgress builds the report for the user's in-flight session. Reads
// live state, so combo renumbering shows up immediately.
func (s *Service) UserProgress(ctx context.Context, userID int64) (*Progress, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	session, err := s.store.CurrentSessionForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	configName, err := s.store.ConfigurationName(ctx, session.DriveConfigurationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ItemsWithProducts(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	report := &Progress{
		DriveSessionID:    session.ID,
		UserID:            userID,
		ConfigurationName: configName,
		Status:            session.Status,
		TasksRequired:     session.TasksRequired,
		TotalItems:        len(rows),
		CurrentItemID:     session.CurrentItemID,
		Items:             make([]ProgressItem, 0, len(rows)),
	}
	for _, row := range rows {
		if row.UserStatus == ItemCompleted {
			report.CompletedItems++
		}
		combo := row.TaskType == TaskComboOrder
		commission := s.rates.CommissionForTier(types.Money{Amount: itemPrice(row)}, u.Tier, combo)
		report.Items = append(report.Items, ProgressItem{
			ItemWithProducts: row,
			CommissionRate:   s.rates.RateForTier(u.Tier, combo),
			CommissionAmount: commission.Amount,
		})
	}
	return report, nil
}

// ActiveItems returns the raw item list of the user's in-flight session.
func (s *Service) ActiveItems(ctx context.Context, userID int64) ([]ActiveDriveItem, error) {
	session, err := s.store.CurrentSessionForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ItemsForSession(ctx, session.ID)
}

// UpdateSessionStatus transitions the user's in-flight session.
func (s *Service) UpdateSessionStatus(ctx context.Context, userID int64, to Status) (*DriveSession, error) {
	switch to {
	case StatusActive, StatusFrozen, StatusPendingReset, StatusCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	session, err := s.store.CurrentSessionForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateSessionStatus(ctx, session.ID, to)
	if err != nil {
		return nil, err
	}
	s.log.Info("session status updated",
		"user_id", userID, "session_id", session.ID,
		"from", session.Status, "to", to)
	return updated, nil
}

func (s *Service) loadConfiguration(ctx context.Context, id int64) (*driveconfig.DriveConfiguration, error) {
	cfg, err := s.configs.Get(ctx, id)
	if errors.Is(err, driveconfig.ErrNotFound) {
		return nil, fmt.Errorf("%w: configuration %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Service) assign(ctx context.Context, userID int64, cfg *driveconfig.DriveConfiguration) (*Assignment, error) {
	links, err := s.configs.NonComboLinks(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: no primary task set products defined", ErrValidation)
	}

	seeds := make([]ItemSeed, len(links))
	for i, link := range links {
		seeds[i] = ItemSeed{
			ProductID:    link.ProductID,
			OrderInDrive: link.OrderInDrive,
			TaskType:     TaskOrder,
		}
	}
	session, items, err := s.store.CreateSessionWithItems(ctx, userID, cfg.ID, cfg.TasksRequired, seeds)
	if err != nil {
		return nil, err
	}
	metrics.SessionsAssignedTotal.Inc()
	s.log.Info("drive session assigned",
		"user_id", userID, "configuration_id", cfg.ID,
		"session_id", session.ID, "items", len(items))
	return &Assignment{Session: session, Items: items}, nil
}

func itemPrice(row ItemWithProducts) int64 {
	total := row.ProductPrice1
	if row.ProductPrice2 != nil {
		total += *row.ProductPrice2
	}
	if row.ProductPrice3 != nil {
		total += *row.ProductPrice3
	}
	return total
}
