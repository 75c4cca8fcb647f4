package users

import (
	"context"
	"errors"
	"strings"

	"persona-backend/internal/credits"
)

var errNotConfigured = errors.New("users service not configured")

// Balances reads a user's remaining credits.
type Balances interface {
	Balance(ctx context.Context, userID string) (credits.Balance, error)
}

// Service manages signed-in accounts. Credits is optional.
type Service struct {
	Repo    Repo
	Credits Balances
}

func NewService(repo Repo, balances ...Balances) *Service {
	s := &Service{Repo: repo}
	if len(balances) > 0 {
		s.Credits = balances[0]
	}
	return s
}

// UpsertFromAuth records the identity returned by an OAuth login.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errNotConfigured
	}
	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.TrimSpace(user.Email)
	if user.ID == "" || user.Email == "" {
		return errors.New("user id and email are required")
	}
	if strings.HasPrefix(user.ID, "guest:") {
		return errors.New("guest identities are not stored")
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errNotConfigured
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// Profile loads the account and, when credits are wired, its balance.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{User: user}
	if s.Credits != nil {
		bal, err := s.Credits.Balance(ctx, userID)
		if err != nil {
			return Profile{}, err
		}
		p.CreditsRemaining = bal.Remaining
	}
	return p, nil
}
