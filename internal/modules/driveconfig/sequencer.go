// README: Pure product-diff resequencer for a configuration's task sets.
package driveconfig

import "fmt"

// TaskSetLink is the current state of one non-combo task set: the set, its
// single primary product, and its position.
type TaskSetLink struct {
	TaskSetID    int64
	ProductID    int64
	OrderInDrive int
}

// PlannedCreate is a new task set to materialize at a position.
type PlannedCreate struct {
	ProductID    int64
	OrderInDrive int
	Name         string
}

// PlannedUpdate moves a surviving task set to a new position (and renames it
// to match).
type PlannedUpdate struct {
	TaskSetID    int64
	OrderInDrive int
	Name         string
}

// Plan is the minimal mutation set turning current into target. Applying
// ToDelete, then ToUpdate, then ToCreate yields task sets contiguously
// numbered 1..len(target) in target product order, reusing existing task set
// identities wherever the product survives the edit.
type Plan struct {
	ToCreate []PlannedCreate
	ToUpdate []PlannedUpdate
	ToDelete []int64
}

// IsNoop reports whether applying the plan would change nothing.
func (p Plan) IsNoop() bool {
	return len(p.ToCreate) == 0 && len(p.ToUpdate) == 0 && len(p.ToDelete) == 0
}

// Resequence diffs the current non-combo task sets of a configuration
// against a target ordered product list. Pure; the transactional apply lives
// in the store. A product appearing more than once in target gets one reused
// set for its first occurrence and fresh sets for the rest.
func Resequence(current []TaskSetLink, target []int64) Plan {
	inTarget := make(map[int64]int, len(target))
	for _, productID := range target {
		inTarget[productID]++
	}

	// Sets whose product left the target list are removed entirely.
	var plan Plan
	surviving := make(map[int64][]TaskSetLink)
	for _, link := range current {
		if inTarget[link.ProductID] == 0 {
			plan.ToDelete = append(plan.ToDelete, link.TaskSetID)
			continue
		}
		surviving[link.ProductID] = append(surviving[link.ProductID], link)
	}

	for i, productID := range target {
		order := i + 1
		name := positionalName(order)
		if links := surviving[productID]; len(links) > 0 {
			link := links[0]
			surviving[productID] = links[1:]
			if link.OrderInDrive != order {
				plan.ToUpdate = append(plan.ToUpdate, PlannedUpdate{
					TaskSetID:    link.TaskSetID,
					OrderInDrive: order,
					Name:         name,
				})
			}
			continue
		}
		plan.ToCreate = append(plan.ToCreate, PlannedCreate{
			ProductID:    productID,
			OrderInDrive: order,
			Name:         name,
		})
	}

	// Duplicate sets for a product that shrank below its current multiplicity.
	for _, links := range surviving {
		for _, link := range links {
			plan.ToDelete = append(plan.ToDelete, link.TaskSetID)
		}
	}
	return plan
}

func positionalName(order int) string {
	return fmt.Sprintf("Task %d", order)
}
