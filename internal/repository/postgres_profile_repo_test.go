package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/6ixhq/creator/internal/model"
)

// newMockDB は期待値の検証とクローズを自動で行うsqlmockのDBを生成する。
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var profileColumns = []string{"user_id", "username", "display_name", "bio", "onboarded", "created_at", "updated_at"}

func TestPostgresProfileRepo_FindByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProfileRepo(db)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM profiles WHERE user_id = \\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(profileColumns).
			AddRow("user-1", "neo", "Neo", "bio", true, now, now))

	p, err := repo.FindByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected profile, got nil")
	}
	if p.Username != "neo" || !p.Onboarded || !p.CreatedAt.Equal(now) {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestPostgresProfileRepo_FindByUserID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProfileRepo(db)

	mock.ExpectQuery("SELECT .+ FROM profiles").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(profileColumns))

	p, err := repo.FindByUserID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil profile, got %+v", p)
	}
}

func TestPostgresProfileRepo_IsOnboarded(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		want bool
	}{
		{"onboarded", sqlmock.NewRows([]string{"onboarded"}).AddRow(true), true},
		{"not onboarded", sqlmock.NewRows([]string{"onboarded"}).AddRow(false), false},
		{"no profile", sqlmock.NewRows([]string{"onboarded"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery("SELECT onboarded FROM profiles WHERE user_id = \\$1").
				WithArgs("user-1").
				WillReturnRows(tt.rows)

			got, err := NewPostgresProfileRepo(db).IsOnboarded(context.Background(), "user-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsOnboarded = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresProfileRepo_IsOnboarded_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT onboarded FROM profiles").
		WithArgs("user-1").
		WillReturnError(errors.New("connection reset"))

	if _, err := NewPostgresProfileRepo(db).IsOnboarded(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPostgresProfileRepo_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	p := &model.Profile{UserID: "user-1", Username: "neo", DisplayName: "Neo", Onboarded: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO profiles .+ ON CONFLICT \\(user_id\\) DO UPDATE").
		WithArgs("user-1", "neo", "Neo", "", true, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPostgresProfileRepo(db).Upsert(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgresProfileRepo_Upsert_UsernameTaken(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	p := &model.Profile{UserID: "user-2", Username: "neo", DisplayName: "Other", Onboarded: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO profiles").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "profiles_username_key"})

	err := NewPostgresProfileRepo(db).Upsert(context.Background(), p)
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}
