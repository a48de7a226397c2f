package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/go-playground/validator/v10"
)

// RegisterRequest is the registration form. An empty Role registers a
// regular user.
type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
	DisplayName     string `json:"display_name" validate:"required,max=100"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,number,max=20"`
	Role            string `json:"role,omitempty" validate:"omitempty,role"`
}

// trimmed returns req with surrounding whitespace removed from the free text
// fields. Passwords are taken verbatim.
func (req RegisterRequest) trimmed() RegisterRequest {
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Role = strings.TrimSpace(req.Role)
	return req
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report violations under their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseRoleName(fl.Field().String())
		return err == nil
	})
	return v
}

// IdentityService registers users and checks their credentials.
type IdentityService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Policy PasswordPolicy
	Now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func (s *IdentityService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register validates req, stores the user and assigns the requested role in
// one transaction. The role row is created if this is its first member.
func (s *IdentityService) Register(ctx context.Context, req RegisterRequest) (domain.User, error) {
	l := slogx.FromContext(ctx)

	req = req.trimmed()
	role, err := s.validateRegistration(req)
	if err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		l.Error("failed to hash password", "error", err)
		return domain.User{}, storeErr("hash_password", err)
	}

	now := s.now()
	user := domain.User{
		ID:              idx.NewAt(now).String(),
		Email:           req.Email,
		NormalizedEmail: domain.NormalizeEmail(req.Email),
		DisplayName:     req.DisplayName,
		Phone:           req.Phone,
		PasswordHash:    hash,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}

		r, err := tx.Roles().FindOrCreateRole(ctx, domain.Role{
			ID:        idx.NewAt(now).String(),
			Name:      role,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("find or create role %s: %w", role, err)
		}

		return tx.Roles().AssignRole(ctx, user.ID, r.ID, now)
	})
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.User{}, ErrDuplicateEmail
	case err != nil:
		l.Error("failed to register user", "error", err)
		return domain.User{}, storeErr("register", err)
	}

	l.Info("user registered", "user_id", user.ID, "role", role)
	return user, nil
}

// validateRegistration collects every field violation and the password
// policy result into a single error.
func (s *IdentityService) validateRegistration(req RegisterRequest) (domain.RoleName, error) {
	verr := &ValidationError{}

	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return "", err
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), violationMessage(fe))
		}
	}

	for _, msg := range s.Policy.Check(req.Password) {
		verr.add("password", msg)
	}

	if len(verr.Violations) > 0 {
		return "", verr
	}

	if req.Role == "" {
		return domain.RoleUser, nil
	}
	return domain.ParseRoleName(req.Role)
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "eqfield":
		return "does not match password"
	case "number":
		return "must contain digits only"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "role":
		return "must be one of Admin, User"
	default:
		return "is invalid"
	}
}

// Authenticate returns the user owning email when password matches. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials after the same
// amount of hashing work.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		_ = s.Hasher.Verify(password, s.dummy())
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		l.Error("failed to load user", "error", err)
		return domain.User{}, storeErr("get_user", err)
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrMalformedHash) {
			l.Error("stored password hash is malformed", "user_id", user.ID, "error", err)
		}
		return domain.User{}, ErrInvalidCredentials
	}

	if s.Hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, &user, password)
	}

	return user, nil
}

// rehash upgrades a hash produced under weaker parameters. Failure leaves the
// old hash in place; the user is already authenticated.
func (s *IdentityService) rehash(ctx context.Context, user *domain.User, password string) {
	l := slogx.FromContext(ctx)

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		l.Warn("failed to rehash password", "user_id", user.ID, "error", err)
		return
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		l.Warn("failed to store upgraded password hash", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	l.Info("password hash upgraded", "user_id", user.ID)
}

// dummy is a hash under the current parameters used to burn the same KDF
// time for unknown emails.
func (s *IdentityService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("dummy-password-for-timing")
		if err != nil {
			// Verify against a malformed record returns fast, which is
			// still correct, just not timing-equivalent.
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// HasRole reports whether user currently holds name.
func (s *IdentityService) HasRole(ctx context.Context, user domain.User, name domain.RoleName) (bool, error) {
	roles, err := s.RolesFor(ctx, user.ID)
	if err != nil {
		return false, err
	}
	return roles.Has(name), nil
}

// RolesFor returns the role set held by userID.
func (s *IdentityService) RolesFor(ctx context.Context, userID string) (domain.RoleSet, error) {
	roles, err := s.Store.Roles().ListRolesForUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list_roles", err)
	}
	return roles, nil
}

// EmailAvailable reports whether no account uses email yet.
func (s *IdentityService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	_, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return true, nil
	case err != nil:
		return false, storeErr("get_user", err)
	}
	return false, nil
}

// ListRoles returns every role with its member count.
func (s *IdentityService) ListRoles(ctx context.Context) ([]domain.RoleMembership, error) {
	roles, err := s.Store.Roles().ListWithMemberCounts(ctx)
	if err != nil {
		return nil, storeErr("list_roles", err)
	}
	return roles, nil
}
