package driveconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func link(setID, productID int64, order int) TaskSetLink {
	return TaskSetLink{TaskSetID: setID, ProductID: productID, OrderInDrive: order}
}

func TestResequenceFromEmpty(t *testing.T) {
	plan := Resequence(nil, []int64{10, 20, 30})

	assert.Empty(t, plan.ToDelete)
	assert.Empty(t, plan.ToUpdate)
	assert.Equal(t, []PlannedCreate{
		{ProductID: 10, OrderInDrive: 1, Name: "Task 1"},
		{ProductID: 20, OrderInDrive: 2, Name: "Task 2"},
		{ProductID: 30, OrderInDrive: 3, Name: "Task 3"},
	}, plan.ToCreate)
}

func TestResequenceIdempotent(t *testing.T) {
	current := []TaskSetLink{link(1, 10, 1), link(2, 20, 2), link(3, 30, 3)}
	plan := Resequence(current, []int64{10, 20, 30})
	assert.True(t, plan.IsNoop(), "unchanged target must be a no-op, got %+v", plan)
}

func TestResequenceReorderReusesSets(t *testing.T) {
	current := []TaskSetLink{link(1, 10, 1), link(2, 20, 2), link(3, 30, 3)}
	plan := Resequence(current, []int64{30, 10, 20})

	assert.Empty(t, plan.ToCreate)
	assert.Empty(t, plan.ToDelete)
	assert.ElementsMatch(t, []PlannedUpdate{
		{TaskSetID: 3, OrderInDrive: 1, Name: "Task 1"},
		{TaskSetID: 1, OrderInDrive: 2, Name: "Task 2"},
		{TaskSetID: 2, OrderInDrive: 3, Name: "Task 3"},
	}, plan.ToUpdate)
}

func TestResequenceRemovalClosesGap(t *testing.T) {
	current := []TaskSetLink{link(1, 10, 1), link(2, 20, 2), link(3, 30, 3)}
	plan := Resequence(current, []int64{10, 30})

	assert.Equal(t, []int64{2}, plan.ToDelete)
	assert.Empty(t, plan.ToCreate)
	assert.Equal(t, []PlannedUpdate{
		{TaskSetID: 3, OrderInDrive: 2, Name: "Task 2"},
	}, plan.ToUpdate)
}

func TestResequenceMixedAddRemoveReorder(t *testing.T) {
	current := []TaskSetLink{link(1, 10, 1), link(2, 20, 2), link(3, 30, 3)}
	plan := Resequence(current, []int64{20, 40, 10})

	assert.Equal(t, []int64{3}, plan.ToDelete)
	assert.Equal(t, []PlannedCreate{
		{ProductID: 40, OrderInDrive: 2, Name: "Task 2"},
	}, plan.ToCreate)
	assert.ElementsMatch(t, []PlannedUpdate{
		{TaskSetID: 2, OrderInDrive: 1, Name: "Task 1"},
		{TaskSetID: 1, OrderInDrive: 3, Name: "Task 3"},
	}, plan.ToUpdate)
}

func TestResequenceContiguousOrdering(t *testing.T) {
	// Whatever the diff, final positions are exactly 1..N in target order.
	current := []TaskSetLink{link(1, 10, 4), link(2, 20, 7), link(3, 30, 9)}
	target := []int64{30, 50, 20}
	plan := Resequence(current, target)

	final := map[int]int64{} // order -> product
	for _, u := range plan.ToUpdate {
		switch u.TaskSetID {
		case 2:
			final[u.OrderInDrive] = 20
		case 3:
			final[u.OrderInDrive] = 30
		}
	}
	for _, c := range plan.ToCreate {
		final[c.OrderInDrive] = c.ProductID
	}
	assert.Equal(t, []int64{1}, plan.ToDelete)
	for i, productID := range target {
		assert.Equal(t, productID, final[i+1], "position %d", i+1)
	}
}

func TestResequenceDuplicateProductInTarget(t *testing.T) {
	current := []TaskSetLink{link(1, 10, 1)}
	plan := Resequence(current, []int64{10, 10})

	// First occurrence reuses set 1 (already at order 1), second is created.
	assert.Empty(t, plan.ToDelete)
	assert.Empty(t, plan.ToUpdate)
	assert.Equal(t, []PlannedCreate{
		{ProductID: 10, OrderInDrive: 2, Name: "Task 2"},
	}, plan.ToCreate)
}

func TestResequenceToEmptyDeletesEverything(t *testing.T) {
	current := []TaskSetLink{link(1, 10, 1), link(2, 20, 2)}
	plan := Resequence(current, nil)

	assert.ElementsMatch(t, []int64{1, 2}, plan.ToDelete)
	assert.Empty(t, plan.ToCreate)
	assert.Empty(t, plan.ToUpdate)
}
