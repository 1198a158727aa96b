// README: Drive configuration service: validation and resequencing entrypoints.
package driveconfig

import (
	"context"
	"fmt"

	"taskdrive/internal/metrics"
)

// ProductChecker reports whether a product exists before it gets linked into
// a task set.
type ProductChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	store    *Store
	products ProductChecker
}

func NewService(store *Store, products ProductChecker) *Service {
	return &Service{store: store, products: products}
}

type CreateCommand struct {
	Name          string
	Description   string
	TasksRequired int
	IsActive      bool
	ProductIDs    []int64
}

type UpdateCommand struct {
	ID            int64
	Name          string
	Description   string
	TasksRequired int
	IsActive      bool
	ProductIDs    []int64
}

type CreateTaskSetCommand struct {
	DriveConfigurationID int64
	Name                 string
	Description          string
	OrderInDrive         int
	IsCombo              bool
	ProductIDs           []int64
}

type AddProductCommand struct {
	TaskSetID     int64
	ProductID     int64
	OrderInSet    int
	PriceOverride *int64
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*DriveConfiguration, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if cmd.TasksRequired <= 0 {
		return nil, fmt.Errorf("%w: tasks_required must be positive", ErrValidation)
	}
	if err := s.checkProducts(ctx, cmd.ProductIDs); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, DriveConfiguration{
		Name:          cmd.Name,
		Description:   cmd.Description,
		TasksRequired: cmd.TasksRequired,
		IsActive:      cmd.IsActive,
	}, cmd.ProductIDs)
}

func (s *Service) Get(ctx context.Context, id int64) (*DriveConfiguration, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]DriveConfiguration, error) {
	return s.store.List(ctx)
}

// Update rewrites the scalar fields and resequences the non-combo task sets
// to match the target product list in one transaction.
func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*DriveConfiguration, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if cmd.TasksRequired <= 0 {
		return nil, fmt.Errorf("%w: tasks_required must be positive", ErrValidation)
	}
	if err := s.checkProducts(ctx, cmd.ProductIDs); err != nil {
		return nil, err
	}
	updated, resequenced, err := s.store.Update(ctx, DriveConfiguration{
		ID:            cmd.ID,
		Name:          cmd.Name,
		Description:   cmd.Description,
		TasksRequired: cmd.TasksRequired,
		IsActive:      cmd.IsActive,
	}, cmd.ProductIDs)
	if err != nil {
		return nil, err
	}
	if resequenced {
		metrics.ResequenceRunsTotal.Inc()
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*DriveConfiguration, error) {
	return s.store.Delete(ctx, id)
}

func (s *Service) CreateTaskSet(ctx context.Context, cmd CreateTaskSetCommand) (*TaskSet, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if cmd.OrderInDrive <= 0 {
		return nil, fmt.Errorf("%w: order_in_drive must be positive", ErrValidation)
	}
	if cmd.IsCombo && len(cmd.ProductIDs) != 1 {
		return nil, fmt.Errorf("%w: combo task sets hold exactly one product", ErrValidation)
	}
	if err := s.checkProducts(ctx, cmd.ProductIDs); err != nil {
		return nil, err
	}
	return s.store.CreateTaskSet(ctx, TaskSet{
		DriveConfigurationID: cmd.DriveConfigurationID,
		Name:                 cmd.Name,
		Description:          cmd.Description,
		OrderInDrive:         cmd.OrderInDrive,
		IsCombo:              cmd.IsCombo,
	}, cmd.ProductIDs)
}

func (s *Service) GetTaskSet(ctx context.Context, id int64) (*TaskSet, error) {
	return s.store.GetTaskSet(ctx, id)
}

func (s *Service) ListTaskSets(ctx context.Context, configID int64) ([]TaskSet, error) {
	if _, err := s.store.Get(ctx, configID); err != nil {
		return nil, err
	}
	return s.store.ListTaskSets(ctx, configID)
}

func (s *Service) DeleteTaskSet(ctx context.Context, id int64) (*TaskSet, error) {
	return s.store.DeleteTaskSet(ctx, id)
}

func (s *Service) AddProduct(ctx context.Context, cmd AddProductCommand) (*TaskSetProduct, error) {
	if cmd.OrderInSet <= 0 {
		return nil, fmt.Errorf("%w: order_in_set must be positive", ErrValidation)
	}
	if err := s.checkProducts(ctx, []int64{cmd.ProductID}); err != nil {
		return nil, err
	}
	return s.store.AddProduct(ctx, TaskSetProduct{
		TaskSetID:     cmd.TaskSetID,
		ProductID:     cmd.ProductID,
		OrderInSet:    cmd.OrderInSet,
		PriceOverride: cmd.PriceOverride,
	})
}

func (s *Service) RemoveProduct(ctx context.Context, linkID int64) (*TaskSetProduct, error) {
	return s.store.RemoveProduct(ctx, linkID)
}

func (s *Service) checkProducts(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		ok, err := s.products.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: product %d does not exist", ErrValidation, id)
		}
	}
	return nil
}
