package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/campuslink/account-service/internal/domain/entity"
	repo "github.com/campuslink/account-service/internal/domain/repository"
	"github.com/campuslink/account-service/pkg/helpers"
	"github.com/campuslink/account-service/pkg/mailer"
	mailtpl "github.com/campuslink/account-service/pkg/mailer/templates"
)

// Stable failure kinds for the account mutation workflow. Handlers map these
// to HTTP statuses; anything else is treated as an internal error.
var (
	ErrAdminFieldForbidden = errors.New("invalid request")
	ErrUserExists          = errors.New("user already exists")
	ErrEmailRegistered     = errors.New("email already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrIncorrectPassword   = errors.New("incorrect password")
	ErrNotAuthorized       = errors.New("action not authorized")
	ErrInvalidTargetID     = errors.New("invalid request")
	ErrAvatarNotFound      = errors.New("referenced avatar does not exist")
)

const profileCacheTTL = 10 * time.Minute

// Service implements the account mutation workflow: create, update and
// delete user records with validation, uniqueness checks, password
// re-verification and admin gating. All state lives in the repositories;
// the service itself holds no memory between calls.
//
// GCS, Redis, ES and the mail publisher are optional; each is nil-checked
// so tests can construct the service with repositories only.
type Service struct {
	Users        repo.UserRepository
	Avatars      repo.AvatarRepository
	GCS          *storage.Client
	GCSBucket    string
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Mail         *helpers.RabbitPublisher
}

func NewService(users repo.UserRepository, avatars repo.AvatarRepository, gcs *storage.Client, gcsBucket string, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, mail *helpers.RabbitPublisher) *Service {
	return &Service{
		Users:        users,
		Avatars:      avatars,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		Mail:         mail,
	}
}

// Profile is the allow-list projection of a user that is safe for external
// exposure. The password hash and admin flag are never part of it.
type Profile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Description string `json:"description,omitempty"`
	Birthday    string `json:"birthday,omitempty"`
	Course      string `json:"course,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func projectUser(u *entity.User) *Profile {
	p := &Profile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Description: u.Description,
		Course:      u.Course,
	}
	if u.Birthday != nil {
		p.Birthday = u.Birthday.Format("2006-01-02")
	}
	return p
}

func profileCacheKey(id int64) string {
	return "user:profile:" + strconv.FormatInt(id, 10)
}

// CreateInput carries the fields a caller may supply when registering.
// IsAdmin is present only so the escalation attempt can be rejected
// explicitly instead of silently dropped.
type CreateInput struct {
	Name        string
	Email       string
	Password    string
	Description string
	Birthday    *time.Time
	Course      string
	AvatarID    *int64
	IsAdmin     bool
}

// Create registers a new account. The admin flag is rejected before any
// storage access; the email pre-check gives a friendly conflict without an
// insert, and the unique constraint on users.email catches the
// check-then-insert race at insert time.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Profile, error) {
	if in.IsAdmin {
		return nil, ErrAdminFieldForbidden
	}

	if _, err := s.Users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &entity.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Description:  in.Description,
		Birthday:     in.Birthday,
		Course:       in.Course,
		IsAdmin:      false,
		AvatarID:     in.AvatarID,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, repo.ErrEmailTaken):
			// Lost the race against a concurrent insert with the same email.
			return nil, ErrUserExists
		case errors.Is(err, repo.ErrAvatarMissing):
			return nil, ErrAvatarNotFound
		}
		return nil, err
	}

	s.publishWelcomeEmail(ctx, u)
	_ = s.indexUser(ctx, u)

	return projectUser(u), nil
}

// UpdateInput carries a partial update; nil fields keep their prior values.
// OldPassword, when supplied, is re-verified against the current hash even
// if no new password is being set.
type UpdateInput struct {
	Name        *string
	Email       *string
	Description *string
	Birthday    *time.Time
	Course      *string
	AvatarID    *int64
	OldPassword *string
	Password    *string
	IsAdmin     *bool
}

// Update applies a partial update to the actor's own record.
func (s *Service) Update(ctx context.Context, actorID int64, in UpdateInput) (*Profile, error) {
	if in.IsAdmin != nil && *in.IsAdmin {
		return nil, ErrAdminFieldForbidden
	}

	u, err := s.Users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// Uniqueness lookup only when the email actually changes.
	if in.Email != nil && *in.Email != u.Email {
		if _, err := s.Users.GetByEmail(ctx, *in.Email); err == nil {
			return nil, ErrEmailRegistered
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	// Re-authentication gate: verify the supplied old password against the
	// current hash regardless of whether a new password follows.
	if in.OldPassword != nil {
		if !helpers.CompareHashAndPassword(u.PasswordHash, *in.OldPassword) {
			return nil, ErrIncorrectPassword
		}
	}

	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Description != nil {
		u.Description = *in.Description
	}
	if in.Birthday != nil {
		u.Birthday = in.Birthday
	}
	if in.Course != nil {
		u.Course = *in.Course
	}
	if in.AvatarID != nil {
		u.AvatarID = in.AvatarID
	}
	if in.Password != nil {
		hash, err := helpers.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	if err := s.Users.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, repo.ErrEmailTaken):
			return nil, ErrEmailRegistered
		case errors.Is(err, repo.ErrAvatarMissing):
			return nil, ErrAvatarNotFound
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.invalidateProfileCache(ctx, u.ID)
	_ = s.indexUser(ctx, u)

	return projectUser(u), nil
}

// Delete removes the target user. Only administrators may delete accounts,
// and the admin check runs before the target identifier is even parsed.
func (s *Service) Delete(ctx context.Context, actorID int64, targetID string) (int64, error) {
	actor, err := s.Users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrNotAuthorized
		}
		return 0, err
	}
	if !actor.IsAdmin {
		return 0, ErrNotAuthorized
	}

	id, err := strconv.ParseInt(strings.TrimSpace(targetID), 10, 64)
	if err != nil {
		return 0, ErrInvalidTargetID
	}

	if _, err := s.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	if err := s.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	s.invalidateProfileCache(ctx, id)
	_ = s.deleteUserDoc(ctx, id)

	return id, nil
}

// GetProfile returns the actor's own profile, read through the Redis cache.
func (s *Service) GetProfile(ctx context.Context, actorID int64) (*Profile, error) {
	key := profileCacheKey(actorID)
	if s.Redis != nil {
		var cached Profile
		if ok, err := helpers.RedisGetJSON(ctx, s.Redis, key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	u, err := s.Users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	p := projectUser(u)
	if u.AvatarID != nil && s.Avatars != nil {
		if a, err := s.Avatars.GetByID(ctx, *u.AvatarID); err == nil {
			p.AvatarURL = a.URL
		}
	}

	if s.Redis != nil {
		if err := helpers.RedisSetJSON(ctx, s.Redis, key, p, profileCacheTTL); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("key", key).Warn("profile cache write failed")
		}
	}
	return p, nil
}

// UploadAvatar stores the image in GCS, records an avatars row and links it
// to the actor's account.
func (s *Service) UploadAvatar(ctx context.Context, actorID int64, r io.Reader, filename, contentType string) (*entity.Avatar, error) {
	u, err := s.Users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	url, err := s.uploadImageToGCS(ctx, actorID, r, filename, contentType)
	if err != nil {
		return nil, err
	}

	a := &entity.Avatar{URL: url, ContentType: contentType}
	if err := s.Avatars.Create(ctx, a); err != nil {
		return nil, err
	}

	u.AvatarID = &a.ID
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}

	s.invalidateProfileCache(ctx, u.ID)
	_ = s.indexUser(ctx, u)

	return a, nil
}

func (s *Service) uploadImageToGCS(ctx context.Context, userID int64, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}
	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", strconv.FormatInt(userID, 10), id+ext))
	return helpers.UploadImageToGCS(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
}

func (s *Service) invalidateProfileCache(ctx context.Context, id int64) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisDel(ctx, s.Redis, profileCacheKey(id)); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", id).Warn("profile cache invalidation failed")
	}
}

func (s *Service) publishWelcomeEmail(ctx context.Context, u *entity.User) {
	if s.Mail == nil {
		return
	}
	job := mailer.EmailJob{
		To:       u.Email,
		Template: mailtpl.Welcome,
		Data:     mailtpl.ToMap(mailtpl.EmailData{Name: u.Name, Email: u.Email}),
	}
	if err := s.Mail.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("welcome email publish failed")
	}
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"course":     u.Course,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: strconv.FormatInt(u.ID, 10), Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

func (s *Service) deleteUserDoc(ctx context.Context, id int64) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	req := esapi.DeleteRequest{Index: s.ESUsersIndex, DocumentID: strconv.FormatInt(id, 10)}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", id).Warn("es delete failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	return nil
}

// SearchUsers performs a simple multi_match search on name, email and course.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name", "course"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
