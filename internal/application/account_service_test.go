package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/account-service/internal/domain/entity"
	repo "github.com/campuslink/account-service/internal/domain/repository"
	"github.com/campuslink/account-service/pkg/helpers"
)

type mockUserRepo struct {
	createFn     func(ctx context.Context, u *entity.User) error
	getByIDFn    func(ctx context.Context, id int64) (*entity.User, error)
	getByEmailFn func(ctx context.Context, email string) (*entity.User, error)
	updateFn     func(ctx context.Context, u *entity.User) error
	deleteFn     func(ctx context.Context, id int64) error

	createCalls     int
	getByEmailCalls int
	updateCalls     int
	deleteCalls     int
}

func (m *mockUserRepo) Create(ctx context.Context, u *entity.User) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	u.ID = 1
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repo.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	m.getByEmailCalls++
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, repo.ErrNotFound
}

func (m *mockUserRepo) Update(ctx context.Context, u *entity.User) error {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, u)
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockAvatarRepo struct {
	createFn  func(ctx context.Context, a *entity.Avatar) error
	getByIDFn func(ctx context.Context, id int64) (*entity.Avatar, error)
}

func (m *mockAvatarRepo) Create(ctx context.Context, a *entity.Avatar) error {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	a.ID = 1
	return nil
}

func (m *mockAvatarRepo) GetByID(ctx context.Context, id int64) (*entity.Avatar, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repo.ErrNotFound
}

func newTestService(users *mockUserRepo) *Service {
	return &Service{Users: users, Avatars: &mockAvatarRepo{}}
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := helpers.HashPassword(plain)
	require.NoError(t, err)
	return h
}

func ptr[T any](v T) *T { return &v }

func TestCreateRejectsAdminFlagBeforeStorage(t *testing.T) {
	users := &mockUserRepo{}
	svc := newTestService(users)

	_, err := svc.Create(context.Background(), CreateInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "supersecret",
		IsAdmin:  true,
	})

	assert.ErrorIs(t, err, ErrAdminFieldForbidden)
	assert.Zero(t, users.getByEmailCalls, "no lookup should run for a rejected payload")
	assert.Zero(t, users.createCalls)
}

func TestCreateConflictWithoutInsert(t *testing.T) {
	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*entity.User, error) {
			return &entity.User{ID: 7, Email: email}, nil
		},
	}
	svc := newTestService(users)

	_, err := svc.Create(context.Background(), CreateInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "supersecret",
	})

	assert.ErrorIs(t, err, ErrUserExists)
	assert.Zero(t, users.createCalls, "conflict must be detected without an insert")
}

func TestCreateMapsInsertRaceToConflict(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, u *entity.User) error {
			return repo.ErrEmailTaken
		},
	}
	svc := newTestService(users)

	_, err := svc.Create(context.Background(), CreateInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "supersecret",
	})

	assert.ErrorIs(t, err, ErrUserExists)
}

func TestCreateHashesPasswordAndProjects(t *testing.T) {
	var stored *entity.User
	users := &mockUserRepo{
		createFn: func(ctx context.Context, u *entity.User) error {
			u.ID = 1
			stored = u
			return nil
		},
	}
	svc := newTestService(users)

	birthday := time.Date(1999, 4, 12, 0, 0, 0, 0, time.UTC)
	p, err := svc.Create(context.Background(), CreateInput{
		Name:        "Alice",
		Email:       "alice@example.com",
		Password:    "supersecret",
		Description: "first year",
		Birthday:    &birthday,
		Course:      "Physics",
	})
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.NotEqual(t, "supersecret", stored.PasswordHash)
	assert.True(t, helpers.CompareHashAndPassword(stored.PasswordHash, "supersecret"))
	assert.False(t, stored.IsAdmin)

	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, "1999-04-12", p.Birthday)
	assert.Equal(t, "Physics", p.Course)
}

func TestCreateMapsMissingAvatarReference(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, u *entity.User) error {
			return repo.ErrAvatarMissing
		},
	}
	svc := newTestService(users)

	_, err := svc.Create(context.Background(), CreateInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "supersecret",
		AvatarID: ptr(int64(99)),
	})

	assert.ErrorIs(t, err, ErrAvatarNotFound)
}

func TestUpdateRejectsAdminFlag(t *testing.T) {
	users := &mockUserRepo{}
	svc := newTestService(users)

	_, err := svc.Update(context.Background(), 1, UpdateInput{IsAdmin: ptr(true)})

	assert.ErrorIs(t, err, ErrAdminFieldForbidden)
	assert.Zero(t, users.updateCalls)
}

func TestUpdateSkipsUniquenessForUnchangedEmail(t *testing.T) {
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return &entity.User{ID: id, Name: "Alice", Email: "alice@example.com"}, nil
		},
	}
	svc := newTestService(users)

	_, err := svc.Update(context.Background(), 1, UpdateInput{Email: ptr("alice@example.com")})

	require.NoError(t, err)
	assert.Zero(t, users.getByEmailCalls, "unchanged email must not trigger a uniqueness lookup")
	assert.Equal(t, 1, users.updateCalls)
}

func TestUpdateConflictOnChangedEmail(t *testing.T) {
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return &entity.User{ID: id, Email: "alice@example.com"}, nil
		},
		getByEmailFn: func(ctx context.Context, email string) (*entity.User, error) {
			return &entity.User{ID: 9, Email: email}, nil
		},
	}
	svc := newTestService(users)

	_, err := svc.Update(context.Background(), 1, UpdateInput{Email: ptr("bob@example.com")})

	assert.ErrorIs(t, err, ErrEmailRegistered)
	assert.Zero(t, users.updateCalls)
}

func TestUpdateVerifiesOldPasswordWithoutNewPassword(t *testing.T) {
	hash := mustHash(t, "supersecret")
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return &entity.User{ID: id, Email: "alice@example.com", PasswordHash: hash}, nil
		},
	}
	svc := newTestService(users)

	_, err := svc.Update(context.Background(), 1, UpdateInput{
		Name:        ptr("Alicia"),
		OldPassword: ptr("wrongsecret"),
	})

	assert.ErrorIs(t, err, ErrIncorrectPassword)
	assert.Zero(t, users.updateCalls)
}

func TestUpdateChangesPasswordAfterVerification(t *testing.T) {
	hash := mustHash(t, "supersecret")
	var saved *entity.User
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return &entity.User{ID: id, Email: "alice@example.com", PasswordHash: hash}, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			saved = u
			return nil
		},
	}
	svc := newTestService(users)

	_, err := svc.Update(context.Background(), 1, UpdateInput{
		OldPassword: ptr("supersecret"),
		Password:    ptr("newsecret99"),
	})

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, helpers.CompareHashAndPassword(saved.PasswordHash, "newsecret99"))
	assert.False(t, helpers.CompareHashAndPassword(saved.PasswordHash, "supersecret"))
}

func TestUpdateMergesPartialFields(t *testing.T) {
	birthday := time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)
	var saved *entity.User
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return &entity.User{
				ID:          id,
				Name:        "Alice",
				Email:       "alice@example.com",
				Description: "first year",
				Birthday:    &birthday,
				Course:      "Physics",
			}, nil
		},
		updateFn: func(ctx context.Context, u *entity.User) error {
			saved = u
			return nil
		},
	}
	svc := newTestService(users)

	p, err := svc.Update(context.Background(), 1, UpdateInput{Course: ptr("Maths")})

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Alice", saved.Name)
	assert.Equal(t, "alice@example.com", saved.Email)
	assert.Equal(t, "first year", saved.Description)
	assert.Equal(t, "Maths", saved.Course)
	assert.Equal(t, "2000-01-02", p.Birthday)
}

func TestUpdateUnknownActor(t *testing.T) {
	users := &mockUserRepo{}
	svc := newTestService(users)

	_, err := svc.Update(context.Background(), 42, UpdateInput{Name: ptr("ghost")})

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteRequiresAdminBeforeParsingTarget(t *testing.T) {
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return &entity.User{ID: id, IsAdmin: false}, nil
		},
	}
	svc := newTestService(users)

	// Even a malformed target id must yield the authorization failure
	// when the actor is not an admin.
	_, err := svc.Delete(context.Background(), 1, "not-a-number")

	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Zero(t, users.deleteCalls)
}

func TestDeleteUnknownActorIsNotAuthorized(t *testing.T) {
	users := &mockUserRepo{}
	svc := newTestService(users)

	_, err := svc.Delete(context.Background(), 999, "2")

	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestDeleteRejectsMalformedTargetID(t *testing.T) {
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return &entity.User{ID: id, IsAdmin: true}, nil
		},
	}
	svc := newTestService(users)

	_, err := svc.Delete(context.Background(), 1, "abc")

	assert.ErrorIs(t, err, ErrInvalidTargetID)
	assert.Zero(t, users.deleteCalls)
}

func TestDeleteMissingTarget(t *testing.T) {
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			if id == 1 {
				return &entity.User{ID: 1, IsAdmin: true}, nil
			}
			return nil, repo.ErrNotFound
		},
	}
	svc := newTestService(users)

	_, err := svc.Delete(context.Background(), 1, "55")

	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Zero(t, users.deleteCalls)
}

func TestDeleteRemovesTarget(t *testing.T) {
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			if id == 1 {
				return &entity.User{ID: 1, IsAdmin: true}, nil
			}
			return &entity.User{ID: id}, nil
		},
	}
	svc := newTestService(users)

	id, err := svc.Delete(context.Background(), 1, " 2 ")

	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, 1, users.deleteCalls)
}

func TestGetProfileNotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.GetProfile(context.Background(), 5)

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetProfileIncludesAvatarURL(t *testing.T) {
	avatarID := int64(3)
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.User, error) {
			return &entity.User{ID: id, Name: "Alice", Email: "alice@example.com", AvatarID: &avatarID}, nil
		},
	}
	svc := newTestService(users)
	svc.Avatars = &mockAvatarRepo{
		getByIDFn: func(ctx context.Context, id int64) (*entity.Avatar, error) {
			return &entity.Avatar{ID: id, URL: "https://storage.googleapis.com/b/avatars/1/x.png"}, nil
		},
	}

	p, err := svc.GetProfile(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/b/avatars/1/x.png", p.AvatarURL)
}
