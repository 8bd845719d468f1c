package taskboard

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/graph"
	"github.com/heartmarshall/gqlcrud/model"
)

// taskUpdater is the part of *postgres.Store the custom operations need.
type taskUpdater interface {
	Update(ctx context.Context, rm *model.Registered, id uuid.UUID, values map[string]any, preds ...squirrel.Sqlizer) (any, error)
}

// RegisterOperations adds the taskboard's custom mutations to the builder.
// Call before Builder.Schema.
func RegisterOperations(b *graph.Builder, reg *model.Registry, store taskUpdater) {
	taskModel, _ := reg.Get("Task")

	b.RegisterOperation("Task", "completeTask", "Mark a task as done.",
		func(ctx context.Context, instance any) error {
			t, ok := instance.(*Task)
			if !ok {
				return fmt.Errorf("unexpected instance type %T", instance)
			}
			_, err := store.Update(ctx, taskModel, t.ID, map[string]any{"status": "done"})
			return err
		})
}
