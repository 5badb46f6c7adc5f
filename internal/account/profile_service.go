package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/myrealpet/accountauth/internal/phone"
)

const (
	maxNicknameLength        = 20
	maxProfileImageURLLength = 500
	maxBioLength             = 500
)

// ProfileService manages the public profile attached to an account.
type ProfileService struct {
	repository Repository
	logger     *zap.Logger
}

// NewProfileService wires the profile service. A nil logger disables logging.
func NewProfileService(repository Repository, logger *zap.Logger) *ProfileService {
	if repository == nil {
		panic("account: profile service requires a repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repository: repository, logger: logger}
}

// CreateProfile attaches a profile with the given nickname to an existing account.
func (service *ProfileService) CreateProfile(ctx context.Context, accountID int64, nickname string) (Profile, error) {
	nickname = strings.TrimSpace(nickname)
	if err := validateNickname(nickname); err != nil {
		return Profile{}, err
	}
	if _, err := service.repository.FindAccountByID(ctx, accountID); err != nil {
		return Profile{}, err
	}
	if _, err := service.repository.FindProfileByAccountID(ctx, accountID); err == nil {
		return Profile{}, fmt.Errorf("account.create_profile: %w", ErrProfileExists)
	} else if !errors.Is(err, ErrProfileNotFound) {
		return Profile{}, err
	}
	if err := service.ensureNicknameFree(ctx, nickname); err != nil {
		return Profile{}, err
	}
	created, err := service.repository.CreateProfile(ctx, Profile{AccountID: accountID, Nickname: nickname})
	if err != nil {
		return Profile{}, err
	}
	service.logger.Info("profile created", zap.Int64("account_id", accountID))
	return created, nil
}

// FindProfileByAccountID loads the profile of an account.
func (service *ProfileService) FindProfileByAccountID(ctx context.Context, accountID int64) (Profile, error) {
	return service.repository.FindProfileByAccountID(ctx, accountID)
}

// FindProfileByNickname loads a profile by nickname.
func (service *ProfileService) FindProfileByNickname(ctx context.Context, nickname string) (Profile, error) {
	return service.repository.FindProfileByNickname(ctx, strings.TrimSpace(nickname))
}

// UpdateProfile applies the non-nil fields of update. Keeping the current nickname is not a conflict.
func (service *ProfileService) UpdateProfile(ctx context.Context, accountID int64, update ProfileUpdate) (Profile, error) {
	current, err := service.repository.FindProfileByAccountID(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	if update.Nickname != nil {
		nickname := strings.TrimSpace(*update.Nickname)
		if nickname != current.Nickname {
			if validateErr := validateNickname(nickname); validateErr != nil {
				return Profile{}, validateErr
			}
			if freeErr := service.ensureNicknameFree(ctx, nickname); freeErr != nil {
				return Profile{}, freeErr
			}
			current.Nickname = nickname
		}
	}
	if update.ProfileImageURL != nil {
		if utf8.RuneCountInString(*update.ProfileImageURL) > maxProfileImageURLLength {
			return Profile{}, fmt.Errorf("profile.image_url: %w", ErrInvalidInput)
		}
		current.ProfileImageURL = *update.ProfileImageURL
	}
	if update.Phone != nil {
		formatted, phoneErr := phone.Format(*update.Phone)
		if phoneErr != nil {
			return Profile{}, fmt.Errorf("profile.phone: %w: %w", ErrInvalidInput, phoneErr)
		}
		current.Phone = formatted
	}
	if update.Bio != nil {
		if utf8.RuneCountInString(*update.Bio) > maxBioLength {
			return Profile{}, fmt.Errorf("profile.bio: %w", ErrInvalidInput)
		}
		current.Bio = *update.Bio
	}
	if update.Gender != nil {
		if !update.Gender.Valid() {
			return Profile{}, fmt.Errorf("profile.gender: %w", ErrInvalidInput)
		}
		current.Gender = *update.Gender
	}
	switch {
	case update.ClearBirthDate:
		current.BirthDate = nil
	case update.BirthDate != nil:
		current.BirthDate = truncateToDay(*update.BirthDate)
	}
	return service.repository.SaveProfile(ctx, current)
}

func truncateToDay(moment time.Time) *time.Time {
	day := time.Date(moment.Year(), moment.Month(), moment.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}

// UpdateNickname replaces the nickname; any nickname already in use is rejected.
func (service *ProfileService) UpdateNickname(ctx context.Context, accountID int64, nickname string) (Profile, error) {
	nickname = strings.TrimSpace(nickname)
	if err := validateNickname(nickname); err != nil {
		return Profile{}, err
	}
	current, err := service.repository.FindProfileByAccountID(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	if freeErr := service.ensureNicknameFree(ctx, nickname); freeErr != nil {
		return Profile{}, freeErr
	}
	current.Nickname = nickname
	return service.repository.SaveProfile(ctx, current)
}

// UpdateProfileImage replaces the profile image URL.
func (service *ProfileService) UpdateProfileImage(ctx context.Context, accountID int64, imageURL string) (Profile, error) {
	return service.UpdateProfile(ctx, accountID, ProfileUpdate{ProfileImageURL: &imageURL})
}

// UpdatePhone replaces the profile phone with its hyphenated form.
func (service *ProfileService) UpdatePhone(ctx context.Context, accountID int64, rawPhone string) (Profile, error) {
	return service.UpdateProfile(ctx, accountID, ProfileUpdate{Phone: &rawPhone})
}

// UpdateBio replaces the bio.
func (service *ProfileService) UpdateBio(ctx context.Context, accountID int64, bio string) (Profile, error) {
	return service.UpdateProfile(ctx, accountID, ProfileUpdate{Bio: &bio})
}

// UpdateBirthDate replaces the birth date. A nil date clears it.
func (service *ProfileService) UpdateBirthDate(ctx context.Context, accountID int64, birthDate *time.Time) (Profile, error) {
	if birthDate == nil {
		return service.UpdateProfile(ctx, accountID, ProfileUpdate{ClearBirthDate: true})
	}
	return service.UpdateProfile(ctx, accountID, ProfileUpdate{BirthDate: birthDate})
}

// UpdateGender replaces the declared gender.
func (service *ProfileService) UpdateGender(ctx context.Context, accountID int64, gender Gender) (Profile, error) {
	return service.UpdateProfile(ctx, accountID, ProfileUpdate{Gender: &gender})
}

// SearchProfilesByNickname returns profiles whose nickname contains keyword.
func (service *ProfileService) SearchProfilesByNickname(ctx context.Context, keyword string) ([]Profile, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []Profile{}, nil
	}
	return service.repository.SearchProfilesByNickname(ctx, keyword)
}

// IsNicknameTaken reports whether any profile uses the nickname.
func (service *ProfileService) IsNicknameTaken(ctx context.Context, nickname string) (bool, error) {
	return service.repository.NicknameExists(ctx, strings.TrimSpace(nickname))
}

// DeleteProfile removes the profile of an account.
func (service *ProfileService) DeleteProfile(ctx context.Context, accountID int64) error {
	return service.repository.DeleteProfile(ctx, accountID)
}

func (service *ProfileService) ensureNicknameFree(ctx context.Context, nickname string) error {
	taken, err := service.repository.NicknameExists(ctx, nickname)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("profile.nickname: %w", ErrNicknameTaken)
	}
	return nil
}

func validateNickname(nickname string) error {
	length := utf8.RuneCountInString(nickname)
	if length == 0 || length > maxNicknameLength {
		return fmt.Errorf("profile.nickname: %w", ErrInvalidInput)
	}
	return nil
}
