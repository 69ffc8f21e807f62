package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

const (
	defaultTaskLimit = 10
	maxTaskLimit     = 100
)

// TaskInput describes a new task. A nil CategoryID selects the owner's
// default category.
type TaskInput struct {
	Name        string
	Description *string
	DueDate     *time.Time
	IsCompleted bool
	CategoryID  *int
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Name        *string
	Description *string
	DueDate     *time.Time
	IsCompleted *bool
	CategoryID  *int
	UserID      *int
}

// TaskQuery narrows a task listing.
type TaskQuery struct {
	DueFrom *time.Time
	DueTo   *time.Time
	Offset  int
	Limit   int
}

// TaskService encapsulates task use-cases.
type TaskService struct {
	store Store
	log   *zap.Logger
}

func NewTaskService(store Store, log *zap.Logger) *TaskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{store: store, log: log}
}

// List returns the tasks actor may see: their own, or all of them for
// admins and superadmins.
func (s *TaskService) List(ctx context.Context, actor authz.Actor, query TaskQuery) ([]types.Task, int, error) {
	if query.Limit <= 0 {
		query.Limit = defaultTaskLimit
	}
	if query.Limit > maxTaskLimit {
		query.Limit = maxTaskLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	if query.DueFrom != nil && query.DueTo != nil && query.DueTo.Before(*query.DueFrom) {
		return nil, 0, FieldError("end_date", "end_date must not be before start_date")
	}

	scope := authz.VisibleTasks(actor)
	return s.store.Repositories().Tasks.List(ctx, types.TaskFilter{
		OwnerID: scope.OwnerID,
		DueFrom: query.DueFrom,
		DueTo:   query.DueTo,
		Offset:  query.Offset,
		Limit:   query.Limit,
	})
}

func (s *TaskService) Get(ctx context.Context, actor authz.Actor, id int) (types.Task, error) {
	return visibleTask(ctx, s.store.Repositories(), actor, id)
}

// Create adds a task owned by actor.
func (s *TaskService) Create(ctx context.Context, actor authz.Actor, input TaskInput) (types.Task, error) {
	name, err := taskName(input.Name)
	if err != nil {
		return types.Task{}, err
	}

	var task types.Task
	err = s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		categoryID, err := taskCategory(ctx, repos, actor.UserID, input.CategoryID, s.log)
		if err != nil {
			return err
		}
		task, err = repos.Tasks.Create(ctx, types.Task{
			UserID:      actor.UserID,
			CategoryID:  &categoryID,
			Name:        name,
			Description: input.Description,
			DueDate:     input.DueDate,
			IsCompleted: input.IsCompleted,
		})
		return err
	})
	return task, err
}

func (s *TaskService) Update(ctx context.Context, actor authz.Actor, id int, patch TaskPatch) (types.Task, error) {
	if patch.Name != nil {
		name, err := taskName(*patch.Name)
		if err != nil {
			return types.Task{}, err
		}
		patch.Name = &name
	}

	var task types.Task
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		task, err = visibleTask(ctx, repos, actor, id)
		if err != nil {
			return err
		}
		if !authz.CanMutateTask(actor, task) {
			return Forbidden("you cannot modify this task")
		}

		if patch.UserID != nil && *patch.UserID != task.UserID {
			if !authz.CanReassignTask(actor) {
				return Forbidden("only a superadmin can change the owner of a task")
			}
			if _, err := repos.Users.GetByID(ctx, *patch.UserID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return FieldError("user_id", "user not found")
				}
				return err
			}
			task.UserID = *patch.UserID

			// A personal category of the previous owner does not follow the task.
			if patch.CategoryID == nil && task.CategoryID != nil {
				if _, err := repos.Categories.GetVisible(ctx, *task.CategoryID, task.UserID); err != nil {
					if !errors.Is(err, store.ErrNotFound) {
						return err
					}
					categoryID, err := resolveDefault(ctx, repos, task.UserID, s.log)
					if err != nil {
						return err
					}
					task.CategoryID = &categoryID
				}
			}
		}
		if patch.CategoryID != nil {
			if _, err := repos.Categories.GetVisible(ctx, *patch.CategoryID, task.UserID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return FieldError("category_id", "category not found")
				}
				return err
			}
			categoryID := *patch.CategoryID
			task.CategoryID = &categoryID
		}
		if patch.Name != nil {
			task.Name = *patch.Name
		}
		if patch.Description != nil {
			task.Description = patch.Description
		}
		if patch.DueDate != nil {
			task.DueDate = patch.DueDate
		}
		if patch.IsCompleted != nil {
			task.IsCompleted = *patch.IsCompleted
		}

		task, err = repos.Tasks.Update(ctx, task)
		return notFoundAs(err, "task not found")
	})
	return task, err
}

func (s *TaskService) Delete(ctx context.Context, actor authz.Actor, id int) error {
	return s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		task, err := visibleTask(ctx, repos, actor, id)
		if err != nil {
			return err
		}
		if !authz.CanMutateTask(actor, task) {
			return Forbidden("you cannot delete this task")
		}
		return notFoundAs(repos.Tasks.Delete(ctx, id), "task not found")
	})
}

// visibleTask loads a task and hides it when it lies outside actor's scope.
func visibleTask(ctx context.Context, repos Repositories, actor authz.Actor, id int) (types.Task, error) {
	task, err := repos.Tasks.Get(ctx, id)
	if err != nil {
		return types.Task{}, notFoundAs(err, "task not found")
	}
	if !authz.VisibleTasks(actor).Includes(task) {
		return types.Task{}, NotFound("task not found")
	}
	return task, nil
}

// taskCategory checks an explicit category against the owner's visible set,
// or resolves the owner's default when none is given.
func taskCategory(ctx context.Context, repos Repositories, ownerID int, requested *int, log *zap.Logger) (int, error) {
	if requested == nil {
		return resolveDefault(ctx, repos, ownerID, log)
	}
	category, err := repos.Categories.GetVisible(ctx, *requested, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, FieldError("category_id", "category not found")
		}
		return 0, err
	}
	return category.ID, nil
}

func taskName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", FieldError("name", "this field is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", FieldError("name", "ensure this field has no more than 100 characters")
	}
	return name, nil
}
