// README: Drive service tests (assignment, combo shift, races, progress).
package drive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskdrive/internal/logger"
	"taskdrive/internal/modules/commission"
	"taskdrive/internal/modules/driveconfig"
	"taskdrive/internal/modules/product"
	"taskdrive/internal/modules/user"
)

// TestCanTransition verifies the session state machine without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusActive, StatusFrozen, true},
		{StatusActive, StatusPendingReset, true},
		{StatusActive, StatusCompleted, true},
		{StatusFrozen, StatusActive, true},
		{StatusPendingReset, StatusCompleted, true},
		// terminal and backward edges
		{StatusCompleted, StatusActive, false},
		{StatusCompleted, StatusFrozen, false},
		{StatusFrozen, StatusCompleted, false},
		{StatusFrozen, StatusPendingReset, false},
		{StatusPendingReset, StatusActive, false},
		{StatusPendingReset, StatusFrozen, false},
		{StatusActive, StatusActive, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAssignDriveToUser(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "assign_happy", "bronze", 500000)
	configID := f.createConfig(t, "starter", true, f.createProducts(t, 3, 2000)...)

	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.Session.Status != StatusActive {
		t.Fatalf("expected active session, got %s", got.Session.Status)
	}
	if len(got.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got.Items))
	}
	for i, item := range got.Items {
		if item.OrderInDrive != i+1 {
			t.Fatalf("item %d: order = %d, want %d", i, item.OrderInDrive, i+1)
		}
		if item.TaskType != TaskOrder {
			t.Fatalf("item %d: task type = %s", i, item.TaskType)
		}
	}
	if got.Items[0].UserStatus != ItemCurrent {
		t.Fatalf("first item status = %s, want CURRENT", got.Items[0].UserStatus)
	}
	if got.Items[1].UserStatus != ItemPending || got.Items[2].UserStatus != ItemPending {
		t.Fatalf("later items must start PENDING")
	}
	if got.Session.CurrentItemID == nil || *got.Session.CurrentItemID != got.Items[0].ID {
		t.Fatalf("session pointer not set to first item")
	}

	// A second assignment while the first is in flight must fail.
	if _, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID}); !errors.Is(err, ErrActiveSession) {
		t.Fatalf("second assign: expected ErrActiveSession, got %v", err)
	}
}

func TestAssignRejectsInactiveAndEmptyConfigurations(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "assign_guards", "bronze", 500000)

	inactive := f.createConfig(t, "inactive", false, f.createProducts(t, 1, 2000)...)
	if _, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: inactive}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inactive config: expected ErrNotFound, got %v", err)
	}

	empty := f.createConfig(t, "empty", true)
	if _, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: empty}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty config: expected ErrValidation, got %v", err)
	}

	if _, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: 999999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing config: expected ErrNotFound, got %v", err)
	}

	ok := f.createConfig(t, "ok", true, f.createProducts(t, 1, 2000)...)
	if _, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: 999999, DriveConfigurationID: ok}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: expected ErrNotFound, got %v", err)
	}
}

// Editing a configuration after assignment must not touch the items already
// snapshotted into a session.
func TestSessionSnapshotIsolation(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "snapshot", "bronze", 500000)
	products := f.createProducts(t, 3, 2000)
	configID := f.createConfig(t, "snapshot_cfg", true, products...)

	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Drop the middle product and reverse the remainder.
	if _, err := f.configs.Update(ctx, driveconfig.UpdateCommand{
		ID: configID, Name: "snapshot_cfg", TasksRequired: 2, IsActive: true,
		ProductIDs: []int64{products[2], products[0]},
	}); err != nil {
		t.Fatalf("update config: %v", err)
	}

	after, err := f.svc.ActiveItems(ctx, userID)
	if err != nil {
		t.Fatalf("active items: %v", err)
	}
	if len(after) != len(got.Items) {
		t.Fatalf("item count changed: %d -> %d", len(got.Items), len(after))
	}
	for i := range after {
		if after[i].ID != got.Items[i].ID || after[i].ProductID1 != got.Items[i].ProductID1 || after[i].OrderInDrive != got.Items[i].OrderInDrive {
			t.Fatalf("item %d mutated by configuration edit", i)
		}
	}
}

// Inserting a combo after the item at order 2 of [1,2,3,4] must yield
// [1,2,3(combo),4,5].
func TestComboShiftCorrectness(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "combo_shift", "bronze", 500000)
	configID := f.createConfig(t, "combo_cfg", true, f.createProducts(t, 4, 2000)...)
	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	comboProduct := f.createProduct(t, "combo_product", 2000)
	inserted, err := f.svc.AddComboAfterItem(ctx, AddComboCommand{
		UserID:      userID,
		AfterItemID: got.Items[1].ID,
		ProductIDs:  []int64{comboProduct},
	})
	if err != nil {
		t.Fatalf("add combo: %v", err)
	}
	if len(inserted) != 1 || inserted[0].OrderInDrive != 3 || inserted[0].TaskType != TaskComboOrder {
		t.Fatalf("unexpected inserted item: %+v", inserted)
	}

	items, err := f.svc.ActiveItems(ctx, userID)
	if err != nil {
		t.Fatalf("active items: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for i, item := range items {
		if item.OrderInDrive != i+1 {
			t.Fatalf("orders not contiguous: position %d has order %d", i, item.OrderInDrive)
		}
	}
	if items[2].TaskType != TaskComboOrder || items[2].ProductID1 != comboProduct {
		t.Fatalf("combo item not at order 3: %+v", items[2])
	}
	if items[3].ID != got.Items[2].ID || items[4].ID != got.Items[3].ID {
		t.Fatalf("trailing items not shifted in place")
	}

	sess, err := f.store.GetSession(ctx, got.Session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.TasksRequired != got.Session.TasksRequired+1 {
		t.Fatalf("tasks_required = %d, want %d", sess.TasksRequired, got.Session.TasksRequired+1)
	}
}

// Two products picked in one combo action become two sequential combo items.
func TestComboMultiProductInsertsSequentialItems(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "combo_multi", "bronze", 500000)
	configID := f.createConfig(t, "combo_multi_cfg", true, f.createProducts(t, 2, 2000)...)
	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	pair := f.createProducts(t, 2, 3000)
	inserted, err := f.svc.AddComboAfterItem(ctx, AddComboCommand{
		UserID:      userID,
		AfterItemID: got.Items[0].ID,
		ProductIDs:  pair,
	})
	if err != nil {
		t.Fatalf("add combo: %v", err)
	}
	if len(inserted) != 2 || inserted[0].OrderInDrive != 2 || inserted[1].OrderInDrive != 3 {
		t.Fatalf("unexpected combo orders: %+v", inserted)
	}

	items, err := f.svc.ActiveItems(ctx, userID)
	if err != nil {
		t.Fatalf("active items: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	if items[3].ID != got.Items[1].ID || items[3].OrderInDrive != 4 {
		t.Fatalf("trailing item shifted by wrong amount: %+v", items[3])
	}
}

func TestComboInsertConcurrent(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "combo_race", "bronze", 500000)
	configID := f.createConfig(t, "combo_race_cfg", true, f.createProducts(t, 3, 2000)...)
	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	const attempts = 6
	comboProducts := f.createProducts(t, attempts, 2500)

	start := make(chan struct{})
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(productID int64) {
			defer wg.Done()
			<-start
			_, err := f.svc.AddComboAfterItem(ctx, AddComboCommand{
				UserID:      userID,
				AfterItemID: got.Items[1].ID,
				ProductIDs:  []int64{productID},
			})
			errs <- err
		}(comboProducts[i])
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success < 1 {
		t.Fatalf("expected at least one insertion to win")
	}

	// Whatever the interleaving, ordering stays contiguous and gapless.
	items, err := f.svc.ActiveItems(ctx, userID)
	if err != nil {
		t.Fatalf("active items: %v", err)
	}
	if len(items) != 3+success {
		t.Fatalf("expected %d items, got %d", 3+success, len(items))
	}
	for i, item := range items {
		if item.OrderInDrive != i+1 {
			t.Fatalf("orders not contiguous after race: position %d has order %d", i, item.OrderInDrive)
		}
	}
}

// An insertion whose target item was renumbered after the caller read it
// must surface ErrConflict instead of landing ahead of the target.
func TestComboInsertStaleOrderConflicts(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "combo_stale", "bronze", 500000)
	configID := f.createConfig(t, "combo_stale_cfg", true, f.createProducts(t, 3, 2000)...)
	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	target := got.Items[1]

	// Another insertion lands after the first item and shifts the target
	// from order 2 to order 3 before the stale write goes in.
	first := f.createProduct(t, "combo_stale_first", 2500)
	if _, err := f.svc.AddComboAfterItem(ctx, AddComboCommand{
		UserID:      userID,
		AfterItemID: got.Items[0].ID,
		ProductIDs:  []int64{first},
	}); err != nil {
		t.Fatalf("first combo: %v", err)
	}

	second := f.createProduct(t, "combo_stale_second", 2500)
	_, err = f.store.InsertComboItems(ctx, got.Session.ID, target.ID, target.OrderInDrive, target.OrderInDrive+1, []int64{second})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale position, got %v", err)
	}

	// Nothing landed, and retrying with fresh state places the combo
	// immediately after the shifted target.
	items, err := f.svc.ActiveItems(ctx, userID)
	if err != nil {
		t.Fatalf("active items: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items after rejected insert, got %d", len(items))
	}

	inserted, err := f.svc.AddComboAfterItem(ctx, AddComboCommand{
		UserID:      userID,
		AfterItemID: target.ID,
		ProductIDs:  []int64{second},
	})
	if err != nil {
		t.Fatalf("retry combo: %v", err)
	}
	moved, err := f.store.GetItem(ctx, target.ID)
	if err != nil {
		t.Fatalf("get target: %v", err)
	}
	if moved.OrderInDrive != 3 {
		t.Fatalf("target order = %d, want 3", moved.OrderInDrive)
	}
	if len(inserted) != 1 || inserted[0].OrderInDrive != moved.OrderInDrive+1 {
		t.Fatalf("retry landed at %+v, want order %d", inserted, moved.OrderInDrive+1)
	}
}

func TestComboRejectsForeignAndClosedSessions(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	ownerID := f.createUser(t, "combo_owner", "bronze", 500000)
	otherID := f.createUser(t, "combo_other", "bronze", 500000)
	configID := f.createConfig(t, "combo_guard_cfg", true, f.createProducts(t, 2, 2000)...)
	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: ownerID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	comboProduct := f.createProduct(t, "combo_guard_product", 2000)

	if _, err := f.svc.AddComboAfterItem(ctx, AddComboCommand{
		UserID: otherID, AfterItemID: got.Items[0].ID, ProductIDs: []int64{comboProduct},
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("foreign item: expected ErrValidation, got %v", err)
	}

	if _, err := f.svc.UpdateSessionStatus(ctx, ownerID, StatusFrozen); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if _, err := f.svc.AddComboAfterItem(ctx, AddComboCommand{
		UserID: ownerID, AfterItemID: got.Items[0].ID, ProductIDs: []int64{comboProduct},
	}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("frozen session: expected ErrSessionClosed, got %v", err)
	}
}

func TestUpdateSessionStatusTransitions(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "status_flow", "bronze", 500000)
	configID := f.createConfig(t, "status_cfg", true, f.createProducts(t, 1, 2000)...)
	if _, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := f.svc.UpdateSessionStatus(ctx, userID, StatusFrozen); err != nil {
		t.Fatalf("active -> frozen: %v", err)
	}
	if _, err := f.svc.UpdateSessionStatus(ctx, userID, StatusPendingReset); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("frozen -> pending_reset: expected ErrInvalidState, got %v", err)
	}
	if _, err := f.svc.UpdateSessionStatus(ctx, userID, StatusActive); err != nil {
		t.Fatalf("frozen -> active: %v", err)
	}

	sess, err := f.svc.UpdateSessionStatus(ctx, userID, StatusCompleted)
	if err != nil {
		t.Fatalf("active -> completed: %v", err)
	}
	if sess.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}

	// Completed is terminal; there is no in-flight session anymore.
	if _, err := f.svc.UpdateSessionStatus(ctx, userID, StatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after completion: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateSessionStatus(ctx, userID, Status("bogus")); !errors.Is(err, ErrValidation) {
		t.Fatalf("bogus status: expected ErrValidation, got %v", err)
	}
}

func TestAddProductToItemSlot(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "slots", "bronze", 500000)
	configID := f.createConfig(t, "slots_cfg", true, f.createProducts(t, 1, 2000)...)
	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	itemID := got.Items[0].ID
	extras := f.createProducts(t, 3, 1500)

	item, err := f.svc.AddProductToItemSlot(ctx, userID, itemID, extras[0])
	if err != nil {
		t.Fatalf("fill slot 2: %v", err)
	}
	if item.ProductID2 == nil || *item.ProductID2 != extras[0] {
		t.Fatalf("slot 2 not filled: %+v", item)
	}

	if _, err := f.svc.AddProductToItemSlot(ctx, userID, itemID, extras[0]); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate product: expected ErrConflict, got %v", err)
	}

	item, err = f.svc.AddProductToItemSlot(ctx, userID, itemID, extras[1])
	if err != nil {
		t.Fatalf("fill slot 3: %v", err)
	}
	if item.ProductID3 == nil || *item.ProductID3 != extras[1] {
		t.Fatalf("slot 3 not filled: %+v", item)
	}

	if _, err := f.svc.AddProductToItemSlot(ctx, userID, itemID, extras[2]); !errors.Is(err, ErrValidation) {
		t.Fatalf("full item: expected ErrValidation, got %v", err)
	}
}

func TestAssignConfigurationToUserIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "override", "bronze", 500000)
	first := f.createConfig(t, "override_first", true, f.createProducts(t, 2, 2000)...)
	second := f.createConfig(t, "override_second", true, f.createProducts(t, 3, 2000)...)

	u, assignment, err := f.svc.AssignConfigurationToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: first})
	if err != nil {
		t.Fatalf("first override: %v", err)
	}
	if assignment == nil || len(assignment.Items) != 2 {
		t.Fatalf("expected fresh session with 2 items")
	}
	if u.AssignedConfigurationID == nil || *u.AssignedConfigurationID != first {
		t.Fatalf("assigned pointer not set")
	}

	// Second override repoints the user but leaves the running session alone.
	u, assignment, err = f.svc.AssignConfigurationToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: second})
	if err != nil {
		t.Fatalf("second override: %v", err)
	}
	if assignment != nil {
		t.Fatalf("expected no new session while one is in flight")
	}
	if u.AssignedConfigurationID == nil || *u.AssignedConfigurationID != second {
		t.Fatalf("assigned pointer not repointed")
	}
	items, err := f.svc.ActiveItems(ctx, userID)
	if err != nil {
		t.Fatalf("active items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("running session mutated by override")
	}
}

func TestAssignTierBasedDrive(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	// Balance 100.00: filter window is 75.00 to 99.00.
	userID := f.createUser(t, "tier_based", "gold", 10000)
	inWindow := []int64{
		f.createProduct(t, "w1", 7600),
		f.createProduct(t, "w2", 8800),
		f.createProduct(t, "w3", 9900),
	}
	f.createProduct(t, "too_cheap", 7000)
	f.createProduct(t, "too_dear", 10000)

	got, err := f.svc.AssignTierBasedDrive(ctx, userID)
	if err != nil {
		t.Fatalf("tier-based assign: %v", err)
	}
	if len(got.Items) != len(inWindow) {
		t.Fatalf("expected %d items, got %d", len(inWindow), len(got.Items))
	}
	allowed := make(map[int64]bool, len(inWindow))
	for _, id := range inWindow {
		allowed[id] = true
	}
	for _, item := range got.Items {
		if !allowed[item.ProductID1] {
			t.Fatalf("item product %d outside balance window", item.ProductID1)
		}
	}

	cfg, err := f.configs.Get(ctx, got.Session.DriveConfigurationID)
	if err != nil {
		t.Fatalf("get generated config: %v", err)
	}
	if cfg.IsActive {
		t.Fatalf("generated configuration must stay inactive")
	}

	broke := f.createUser(t, "tier_broke", "bronze", 100)
	if _, err := f.svc.AssignTierBasedDrive(ctx, broke); !errors.Is(err, ErrValidation) {
		t.Fatalf("no products in window: expected ErrValidation, got %v", err)
	}
}

// End-to-end: three tasks, combo after order 1, gold-tier commission on a
// 20.00 combo item is 0.90.
func TestProgressEndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "progress", "gold", 500000)
	configID := f.createConfig(t, "progress_cfg", true, f.createProducts(t, 3, 2000)...)
	got, err := f.svc.AssignDriveToUser(ctx, AssignCommand{UserID: userID, DriveConfigurationID: configID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	report, err := f.svc.UserProgress(ctx, userID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if report.TotalItems != 3 || report.CompletedItems != 0 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.ConfigurationName != "progress_cfg" {
		t.Fatalf("configuration name = %q", report.ConfigurationName)
	}
	if report.CurrentItemID == nil || *report.CurrentItemID != got.Items[0].ID {
		t.Fatalf("current item pointer wrong")
	}
	for i, item := range report.Items {
		if item.OrderInDrive != i+1 {
			t.Fatalf("progress order gap at %d", i)
		}
		if item.ProductName1 == "" {
			t.Fatalf("product name not resolved")
		}
	}

	comboProduct := f.createProduct(t, "progress_combo", 2000)
	if _, err := f.svc.AddComboAfterItem(ctx, AddComboCommand{
		UserID: userID, AfterItemID: got.Items[0].ID, ProductIDs: []int64{comboProduct},
	}); err != nil {
		t.Fatalf("add combo: %v", err)
	}

	report, err = f.svc.UserProgress(ctx, userID)
	if err != nil {
		t.Fatalf("progress after combo: %v", err)
	}
	if report.TotalItems != 4 {
		t.Fatalf("expected 4 items, got %d", report.TotalItems)
	}
	combo := report.Items[1]
	if combo.TaskType != TaskComboOrder || combo.OrderInDrive != 2 {
		t.Fatalf("combo not at order 2: %+v", combo)
	}
	if combo.CommissionRate != 0.045 {
		t.Fatalf("gold combo rate = %v, want 0.045", combo.CommissionRate)
	}
	if combo.CommissionAmount != 90 {
		t.Fatalf("gold combo commission on 20.00 = %d cents, want 90", combo.CommissionAmount)
	}
	regular := report.Items[0]
	if regular.CommissionRate != 0.015 {
		t.Fatalf("gold regular rate = %v, want 0.015", regular.CommissionRate)
	}

	if _, err := f.svc.UserProgress(ctx, f.createUser(t, "no_session", "bronze", 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no session: expected ErrNotFound, got %v", err)
	}
}

// --- fixture ---

type fixture struct {
	db      *pgxpool.Pool
	store   *Store
	svc     *Service
	configs *driveconfig.Service
}

func setupTestFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := os.Getenv("DRIVE_TEST_DSN")
	if dsn == "" {
		t.Skip("DRIVE_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE TABLE
		user_active_drive_items, drive_sessions, drive_task_set_products,
		drive_task_sets, users, drive_configurations, products`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	store := NewStore(db)
	users := user.NewStore(db)
	configStore := driveconfig.NewStore(db)
	products := product.NewStore(db, nil, time.Minute)
	rates := commission.NewService(users)

	return &fixture{
		db:      db,
		store:   store,
		svc:     NewService(store, users, configStore, products, rates, logger.NewNop()),
		configs: driveconfig.NewService(configStore, products),
	}
}

func (f *fixture) createUser(t *testing.T, username, tier string, balance int64) int64 {
	t.Helper()
	var id int64
	err := f.db.QueryRow(context.Background(), `
		INSERT INTO users (username, tier, balance) VALUES ($1, $2, $3) RETURNING id`,
		username, tier, balance,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func (f *fixture) createProduct(t *testing.T, name string, price int64) int64 {
	t.Helper()
	var id int64
	err := f.db.QueryRow(context.Background(), `
		INSERT INTO products (name, price) VALUES ($1, $2) RETURNING id`,
		name, price,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return id
}

func (f *fixture) createProducts(t *testing.T, n int, price int64) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = f.createProduct(t, fmt.Sprintf("%s_p%d_%d", t.Name(), i+1, time.Now().UnixNano()), price)
	}
	return ids
}

func (f *fixture) createConfig(t *testing.T, name string, active bool, productIDs ...int64) int64 {
	t.Helper()
	tasks := len(productIDs)
	if tasks == 0 {
		tasks = 1
	}
	cfg, err := f.configs.Create(context.Background(), driveconfig.CreateCommand{
		Name:          name,
		TasksRequired: tasks,
		IsActive:      active,
		ProductIDs:    productIDs,
	})
	if err != nil {
		t.Fatalf("create config: %v", err)
	}
	return cfg.ID
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
