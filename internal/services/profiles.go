package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/internal/storage"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

// ProfileDetails is a profile together with the account email.
type ProfileDetails struct {
	types.Profile
	Email string `json:"email"`
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	Name              *string
	Location          *string
	DefaultCategoryID *int
	Image             *ImageUpload
}

// ProfileService encapsulates profile use-cases.
type ProfileService struct {
	store  Store
	images ImageStore
	log    *zap.Logger
}

// NewProfileService constructs a ProfileService. images may be nil when no
// object storage is configured.
func NewProfileService(store Store, images ImageStore, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{store: store, images: images, log: log}
}

// Ensure returns the profile of userID, creating it and assigning the
// default category when either is missing.
func (s *ProfileService) Ensure(ctx context.Context, userID int) (types.Profile, error) {
	var profile types.Profile
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		profile, err = ensureProfile(ctx, repos, userID, s.log)
		return err
	})
	return profile, err
}

func (s *ProfileService) Get(ctx context.Context, actor authz.Actor) (ProfileDetails, error) {
	var details ProfileDetails
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		user, err := repos.Users.GetByID(ctx, actor.UserID)
		if err != nil {
			return notFoundAs(err, "user not found")
		}
		profile, err := ensureProfile(ctx, repos, actor.UserID, s.log)
		if err != nil {
			return err
		}
		details = ProfileDetails{Profile: profile, Email: user.Email}
		return nil
	})
	return details, err
}

func (s *ProfileService) Update(ctx context.Context, actor authz.Actor, update ProfileUpdate) (ProfileDetails, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if utf8.RuneCountInString(name) > maxNameLength {
			return ProfileDetails{}, FieldError("name", "ensure this field has no more than 100 characters")
		}
		update.Name = &name
	}
	if update.Location != nil {
		location := strings.TrimSpace(*update.Location)
		update.Location = &location
	}

	imageKey, err := saveImage(ctx, s.images, update.Image)
	if err != nil {
		return ProfileDetails{}, err
	}

	var (
		details  ProfileDetails
		oldImage string
	)
	err = s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		user, err := repos.Users.GetByID(ctx, actor.UserID)
		if err != nil {
			return notFoundAs(err, "user not found")
		}
		profile, err := ensureProfile(ctx, repos, actor.UserID, s.log)
		if err != nil {
			return err
		}

		if update.Name != nil {
			profile.Name = *update.Name
		}
		if update.Location != nil {
			profile.Location = *update.Location
		}
		if update.DefaultCategoryID != nil {
			if _, err := repos.Categories.GetVisible(ctx, *update.DefaultCategoryID, authz.VisibleCategories(actor).ViewerID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return FieldError("default_category_id", "category not found")
				}
				return err
			}
			id := *update.DefaultCategoryID
			profile.DefaultCategoryID = &id
		}
		if imageKey != "" {
			oldImage = profile.ImageKey
			profile.ImageKey = imageKey
		}

		profile, err = repos.Profiles.Update(ctx, profile)
		if err != nil {
			return err
		}
		details = ProfileDetails{Profile: profile, Email: user.Email}
		return nil
	})
	if err != nil {
		s.discardImage(ctx, imageKey)
		return ProfileDetails{}, err
	}
	s.discardImage(ctx, oldImage)
	return details, nil
}

// Image opens the profile image of actor.
func (s *ProfileService) Image(ctx context.Context, actor authz.Actor) (storage.Object, error) {
	profile, err := s.store.Repositories().Profiles.Get(ctx, actor.UserID)
	if err != nil {
		return storage.Object{}, notFoundAs(err, "profile has no image")
	}
	if profile.ImageKey == "" || s.images == nil {
		return storage.Object{}, NotFound("profile has no image")
	}
	obj, err := s.images.Open(ctx, profile.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.Object{}, NotFound("profile has no image")
		}
		return storage.Object{}, Upstream("failed to load image", err)
	}
	return obj, nil
}

func (s *ProfileService) discardImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Remove(ctx, key); err != nil {
		s.log.Warn("failed to remove image", zap.String("key", key), zap.Error(err))
	}
}

func ensureProfile(ctx context.Context, repos Repositories, userID int, log *zap.Logger) (types.Profile, error) {
	profile, err := repos.Profiles.Ensure(ctx, userID)
	if err != nil {
		return types.Profile{}, err
	}
	if profile.DefaultCategoryID == nil {
		id, err := resolveDefault(ctx, repos, userID, log)
		if err != nil {
			return types.Profile{}, err
		}
		profile.DefaultCategoryID = &id
	}
	return profile, nil
}
