package usecase

import (
	"context"
	"sort"
	"strings"

	"pairchat/internal/domain/entity"
	"pairchat/internal/domain/repository"
	"pairchat/pkg/errors"
)

const searchFetchLimit = 500

type UserUseCase struct {
	userRepo repository.UserRepository
}

func NewUserUseCase(userRepo repository.UserRepository) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
	}
}

func (uc *UserUseCase) GetProfile(ctx context.Context, id string) (*entity.User, error) {
	return uc.userRepo.GetByID(ctx, id)
}

func (uc *UserUseCase) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return uc.userRepo.GetByUsername(ctx, username)
}

func (uc *UserUseCase) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := uc.userRepo.UsernameExists(ctx, username)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

type UpdateProfileInput struct {
	DisplayName string
	PhotoURL    string
	Bio         string
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.DisplayName = input.DisplayName
	user.PhotoURL = input.PhotoURL
	user.Bio = input.Bio

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return uc.userRepo.GetByID(ctx, userID)
}

// Search finds peers by a case-insensitive substring over username, display
// name, and email. The document store has no substring queries, so
// candidates are fetched and filtered here.
func (uc *UserUseCase) Search(ctx context.Context, term string) ([]*entity.User, error) {
	if strings.TrimSpace(term) == "" {
		return nil, errors.Validation("Search term must not be empty", nil)
	}

	users, err := uc.userRepo.List(ctx, searchFetchLimit)
	if err != nil {
		return nil, err
	}

	return RankProfiles(term, users), nil
}

// RankProfiles filters candidates by substring match and orders them with
// exact-username hits first, the rest alphabetical by username.
func RankProfiles(term string, users []*entity.User) []*entity.User {
	needle := strings.ToLower(strings.TrimSpace(term))

	var matches []*entity.User
	for _, user := range users {
		if strings.Contains(strings.ToLower(user.Username), needle) ||
			strings.Contains(strings.ToLower(user.DisplayName), needle) ||
			strings.Contains(strings.ToLower(user.Email), needle) {
			matches = append(matches, user)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		iExact := strings.EqualFold(matches[i].Username, needle)
		jExact := strings.EqualFold(matches[j].Username, needle)
		if iExact != jExact {
			return iExact
		}
		return strings.ToLower(matches[i].Username) < strings.ToLower(matches[j].Username)
	})

	return matches
}
