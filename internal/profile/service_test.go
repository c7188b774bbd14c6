package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/6ixhq/creator/internal/model"
	"github.com/6ixhq/creator/internal/repository"
	"github.com/6ixhq/creator/internal/security"
)

// --- モック ---

type mockProfileRepo struct {
	findFn   func(ctx context.Context, userID string) (*model.Profile, error)
	upsertFn func(ctx context.Context, p *model.Profile) error
	upserted []*model.Profile
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	if m.findFn != nil {
		return m.findFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockProfileRepo) IsOnboarded(ctx context.Context, userID string) (bool, error) {
	p, err := m.FindByUserID(ctx, userID)
	if err != nil || p == nil {
		return false, err
	}
	return p.Onboarded, nil
}
func (m *mockProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(ctx, p); err != nil {
			return err
		}
	}
	m.upserted = append(m.upserted, p)
	return nil
}

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo *mockProfileRepo) *Service {
	s := NewService(repo, security.NewTextSanitizer())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestService_Onboard_CreatesProfile(t *testing.T) {
	repo := &mockProfileRepo{}
	svc := newTestService(repo)

	p, err := svc.Onboard(context.Background(), "user-1", OnboardInput{
		Username:    "  Neo_6IX ",
		DisplayName: "<b>Neo</b>",
		Bio:         "making beats",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Username != "neo_6ix" {
		t.Errorf("Username = %q, want lowercased and trimmed", p.Username)
	}
	if p.DisplayName != "Neo" {
		t.Errorf("DisplayName = %q, want HTML stripped", p.DisplayName)
	}
	if !p.Onboarded {
		t.Error("profile should be onboarded")
	}
	if !p.CreatedAt.Equal(fixedNow) || !p.UpdatedAt.Equal(fixedNow) {
		t.Errorf("timestamps = %v / %v", p.CreatedAt, p.UpdatedAt)
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(repo.upserted))
	}
}

func TestService_Onboard_KeepsCreatedAt(t *testing.T) {
	created := fixedNow.Add(-48 * time.Hour)
	repo := &mockProfileRepo{
		findFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Username: "old", CreatedAt: created}, nil
		},
	}
	svc := newTestService(repo)

	p, err := svc.Onboard(context.Background(), "user-1", OnboardInput{Username: "newname", DisplayName: "New"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, created)
	}
	if !p.UpdatedAt.Equal(fixedNow) {
		t.Errorf("UpdatedAt = %v, want %v", p.UpdatedAt, fixedNow)
	}
}

func TestService_Onboard_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   OnboardInput
	}{
		{"username too short", OnboardInput{Username: "ab", DisplayName: "A"}},
		{"username too long", OnboardInput{Username: strings.Repeat("a", 25), DisplayName: "A"}},
		{"username with dash", OnboardInput{Username: "neo-6ix", DisplayName: "A"}},
		{"username with space", OnboardInput{Username: "neo six", DisplayName: "A"}},
		{"display name missing", OnboardInput{Username: "neo", DisplayName: "  "}},
		{"display name only markup", OnboardInput{Username: "neo", DisplayName: "<i></i>"}},
		{"display name too long", OnboardInput{Username: "neo", DisplayName: strings.Repeat("名", 61)}},
		{"bio too long", OnboardInput{Username: "neo", DisplayName: "Neo", Bio: strings.Repeat("b", 281)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockProfileRepo{}
			_, err := newTestService(repo).Onboard(context.Background(), "user-1", tt.in)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(repo.upserted) != 0 {
				t.Error("invalid input must not be stored")
			}
		})
	}
}

func TestService_Onboard_UsernameTaken(t *testing.T) {
	repo := &mockProfileRepo{
		upsertFn: func(ctx context.Context, p *model.Profile) error {
			return repository.ErrUsernameTaken
		},
	}

	_, err := newTestService(repo).Onboard(context.Background(), "user-2", OnboardInput{Username: "neo", DisplayName: "Neo"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUsernameTaken {
		t.Fatalf("expected USERNAME_TAKEN, got %v", err)
	}
}

func TestService_Onboard_RepositoryError(t *testing.T) {
	repo := &mockProfileRepo{
		findFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return nil, errors.New("db down")
		},
	}

	_, err := newTestService(repo).Onboard(context.Background(), "user-1", OnboardInput{Username: "neo", DisplayName: "Neo"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("repository failure should not be a client error: %v", err)
	}
}

func TestService_Get(t *testing.T) {
	repo := &mockProfileRepo{
		findFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			if userID == "user-1" {
				return &model.Profile{UserID: "user-1", Username: "neo", Onboarded: true}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(repo)

	p, err := svc.Get(context.Background(), "user-1")
	if err != nil || p.Username != "neo" {
		t.Fatalf("Get(user-1) = %+v, %v", p, err)
	}

	_, err = svc.Get(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProfileNotFound {
		t.Errorf("expected PROFILE_NOT_FOUND, got %v", err)
	}

	ok, err := svc.IsOnboarded(context.Background(), "user-1")
	if err != nil || !ok {
		t.Errorf("IsOnboarded(user-1) = %v, %v", ok, err)
	}
}
