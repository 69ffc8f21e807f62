package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

const maxNameLength = 100

// CategoryService encapsulates category use-cases.
type CategoryService struct {
	store Store
	log   *zap.Logger
}

func NewCategoryService(store Store, log *zap.Logger) *CategoryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CategoryService{store: store, log: log}
}

// DefaultCategory returns the shared Default Category, creating or repairing
// it as needed.
func (s *CategoryService) DefaultCategory(ctx context.Context) (types.Category, error) {
	var category types.Category
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		category, err = defaultCategory(ctx, repos, s.log)
		return err
	})
	return category, err
}

// ResolveDefault returns the default category id of userID, assigning the
// shared Default Category when the profile has none.
func (s *CategoryService) ResolveDefault(ctx context.Context, userID int) (int, error) {
	var id int
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		id, err = resolveDefault(ctx, repos, userID, s.log)
		return err
	})
	return id, err
}

func (s *CategoryService) List(ctx context.Context, actor authz.Actor) ([]types.CategoryView, error) {
	scope := authz.VisibleCategories(actor)
	categories, err := s.store.Repositories().Categories.ListVisible(ctx, scope.ViewerID)
	if err != nil {
		return nil, err
	}
	views := make([]types.CategoryView, 0, len(categories))
	for _, category := range categories {
		views = append(views, categoryView(actor, category))
	}
	return views, nil
}

func (s *CategoryService) Get(ctx context.Context, actor authz.Actor, id int) (types.CategoryView, error) {
	category, err := s.store.Repositories().Categories.GetVisible(ctx, id, authz.VisibleCategories(actor).ViewerID)
	if err != nil {
		return types.CategoryView{}, notFoundAs(err, "category not found")
	}
	return categoryView(actor, category), nil
}

// Create always produces a personal category owned by actor.
func (s *CategoryService) Create(ctx context.Context, actor authz.Actor, name string) (types.CategoryView, error) {
	name, err := categoryName(name)
	if err != nil {
		return types.CategoryView{}, err
	}
	creator := actor.UserID
	category, err := s.store.Repositories().Categories.Create(ctx, types.Category{
		Name:      name,
		CreatorID: &creator,
		IsGeneral: false,
	})
	if err != nil {
		return types.CategoryView{}, err
	}
	return categoryView(actor, category), nil
}

func (s *CategoryService) Update(ctx context.Context, actor authz.Actor, id int, name string) (types.CategoryView, error) {
	name, err := categoryName(name)
	if err != nil {
		return types.CategoryView{}, err
	}

	var category types.Category
	err = s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		category, err = repos.Categories.GetVisible(ctx, id, authz.VisibleCategories(actor).ViewerID)
		if err != nil {
			return notFoundAs(err, "category not found")
		}
		if !authz.CanEditCategory(actor, category) {
			return Forbidden("you can only edit your own categories")
		}
		if err := repos.Categories.Rename(ctx, id, name); err != nil {
			return notFoundAs(err, "category not found")
		}
		category.Name = name
		return nil
	})
	if err != nil {
		return types.CategoryView{}, err
	}
	return categoryView(actor, category), nil
}

// Delete removes a personal category of actor. Tasks in it become
// uncategorized; a category still used as a profile default is kept.
func (s *CategoryService) Delete(ctx context.Context, actor authz.Actor, id int) error {
	return s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		category, err := repos.Categories.GetVisible(ctx, id, authz.VisibleCategories(actor).ViewerID)
		if err != nil {
			return notFoundAs(err, "category not found")
		}
		referenced, err := repos.Profiles.ReferencesCategory(ctx, id)
		if err != nil {
			return err
		}
		switch authz.CanDeleteCategory(actor, category, referenced) {
		case authz.DenyPermission:
			return Forbidden("you can only delete your own categories")
		case authz.DenyConflict:
			return Conflict("category is used as a default category")
		}
		if err := repos.Categories.Delete(ctx, id); err != nil {
			if errors.Is(err, store.ErrReferenced) {
				return Conflict("category is used as a default category")
			}
			return notFoundAs(err, "category not found")
		}
		return nil
	})
}

// CreateGeneral creates a shared category. It is an operator action and is
// not reachable through the HTTP API.
func (s *CategoryService) CreateGeneral(ctx context.Context, name string) (types.Category, error) {
	name, err := categoryName(name)
	if err != nil {
		return types.Category{}, err
	}
	category, err := s.store.Repositories().Categories.Create(ctx, types.Category{
		Name:      name,
		IsGeneral: true,
	})
	if err != nil {
		return types.Category{}, err
	}
	s.log.Info("general category created", zap.Int("category_id", category.ID), zap.String("name", name))
	return category, nil
}

func categoryView(actor authz.Actor, c types.Category) types.CategoryView {
	return types.CategoryView{
		ID:         c.ID,
		Name:       c.Name,
		IsGeneral:  c.IsGeneral,
		IsEditable: authz.CanEditCategory(actor, c),
		Type:       c.Type(),
		CreatedAt:  c.CreatedAt,
	}
}

func categoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", FieldError("name", "this field is required")
	case utf8.RuneCountInString(name) > maxNameLength:
		return "", FieldError("name", "ensure this field has no more than 100 characters")
	case strings.EqualFold(name, types.DefaultCategoryName):
		return "", FieldError("name", "this name is reserved")
	}
	return name, nil
}

// defaultCategory runs the get-or-create of the shared Default Category and
// repairs a row that is not a general, creator-less category.
func defaultCategory(ctx context.Context, repos Repositories, log *zap.Logger) (types.Category, error) {
	category, err := repos.Categories.GetOrCreateDefault(ctx)
	if err != nil {
		return types.Category{}, err
	}
	setGeneral := !category.IsGeneral
	clearCreator := category.CreatorID != nil
	if setGeneral || clearCreator {
		if err := repos.Categories.MarkGeneral(ctx, category.ID, setGeneral, clearCreator); err != nil {
			return types.Category{}, err
		}
		log.Warn("default category repaired",
			zap.Int("category_id", category.ID),
			zap.Bool("set_general", setGeneral),
			zap.Bool("cleared_creator", clearCreator),
		)
		category.IsGeneral = true
		category.CreatorID = nil
	}
	return category, nil
}

// resolveDefault returns the profile default of userID, persisting the
// shared Default Category when none is set.
func resolveDefault(ctx context.Context, repos Repositories, userID int, log *zap.Logger) (int, error) {
	profile, err := repos.Profiles.Ensure(ctx, userID)
	if err != nil {
		return 0, err
	}
	if profile.DefaultCategoryID != nil {
		return *profile.DefaultCategoryID, nil
	}

	category, err := defaultCategory(ctx, repos, log)
	if err != nil {
		return 0, err
	}
	assigned, err := repos.Profiles.AssignDefaultCategory(ctx, userID, category.ID)
	if err != nil {
		return 0, err
	}
	if assigned {
		return category.ID, nil
	}

	// Someone else set a default in between; use theirs.
	profile, err = repos.Profiles.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if profile.DefaultCategoryID == nil {
		return 0, errors.New("default category assignment lost")
	}
	return *profile.DefaultCategoryID, nil
}
