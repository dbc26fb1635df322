package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/pantrytracker/internal/apperr"
	"github.com/dukerupert/pantrytracker/internal/auth"
	"github.com/dukerupert/pantrytracker/internal/metrics"
	"github.com/dukerupert/pantrytracker/internal/model"
	"github.com/dukerupert/pantrytracker/internal/store"
)

// validate is safe for concurrent use and caches rule parsing.
var validate = validator.New()

const maxEmailLength = 254

type AuthService struct {
	db         *sql.DB
	users      *store.UserStore
	profiles   *store.ProfileStore
	households *store.HouseholdStore
	sessions   *store.SessionStore
	pantry     *store.PantryStore
	tokens     *auth.TokenManager
	sessionTTL time.Duration
	newCode    func() string
	logger     *slog.Logger
}

func NewAuthService(db *sql.DB, tokens *auth.TokenManager, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		db:         db,
		users:      store.NewUserStore(db),
		profiles:   store.NewProfileStore(db),
		households: store.NewHouseholdStore(db),
		sessions:   store.NewSessionStore(db),
		pantry:     store.NewPantryStore(db),
		tokens:     tokens,
		sessionTTL: sessionTTL,
		newCode:    auth.NewJoinCode,
		logger:     logger.With("component", "auth"),
	}
}

// SessionTTL is the lifetime of issued sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// RegisterInput carries a registration request. Password is base64 encoded.
type RegisterInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	JoinCode         string `json:"joinCode"`
	NewHouseholdName string `json:"newHouseholdName"`
}

func (in *RegisterInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.JoinCode = strings.ToUpper(strings.TrimSpace(in.JoinCode))
	in.NewHouseholdName = strings.TrimSpace(in.NewHouseholdName)
}

// Register creates the credential, the profile, and either joins or creates
// a household, all in one transaction, then starts a session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.normalize()

	if (in.JoinCode == "") == (in.NewHouseholdName == "") {
		return nil, apperr.Validation("provide either a join code or a new household name")
	}
	if in.Email == "" || in.FirstName == "" || in.LastName == "" || in.Password == "" {
		return nil, apperr.Validation("email, password, first name and last name are required")
	}
	if len(in.Email) > maxEmailLength || validate.Var(in.Email, "email") != nil {
		return nil, apperr.Validation("email address is invalid")
	}
	password, err := auth.DecodePassword(in.Password)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	var user *model.User
	var profile *model.UserProfile
	err = store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		users := s.users.WithTx(tx)
		profiles := s.profiles.WithTx(tx)
		households := s.households.WithTx(tx)

		user, err = users.Create(ctx, in.Email, hash)
		if errors.Is(err, store.ErrDuplicateEmail) {
			return apperr.Conflict("email is already registered")
		}
		if err != nil {
			return apperr.Internal("create user", err)
		}

		profile, err = profiles.Create(ctx, user.ID, in.FirstName, in.LastName, nil)
		if err != nil {
			return apperr.Internal("create profile", err)
		}

		var household *model.Household
		if in.JoinCode != "" {
			household, err = households.GetByJoinCode(ctx, in.JoinCode)
			if err != nil {
				return apperr.Internal("look up join code", err)
			}
			if household == nil {
				return apperr.NotFound("invalid join code")
			}
		} else {
			household, err = createHousehold(ctx, households, s.newCode, in.NewHouseholdName, profile.ID)
			if err != nil {
				return err
			}
		}

		if err := profiles.SetHousehold(ctx, profile.ID, &household.ID); err != nil {
			return apperr.Internal("attach household", err)
		}
		profile.HouseholdID = &household.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	mode := "create"
	if in.JoinCode != "" {
		mode = "join"
	}
	metrics.ObserveRegistration(mode)
	s.logger.Info("user registered", "user_id", user.ID, "household_id", *profile.HouseholdID, "mode", mode)

	return s.startSession(ctx, user, profile)
}

// Login verifies a plaintext password. Unknown emails, wrong passwords and
// missing profiles all fail with the same message.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Unauthorized(MsgInvalidLogin)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Unauthorized(MsgInvalidLogin)
	}

	profile, err := s.profiles.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal("load profile", err)
	}
	if profile == nil {
		return nil, apperr.Unauthorized(MsgInvalidLogin)
	}

	return s.startSession(ctx, user, profile)
}

func (s *AuthService) startSession(ctx context.Context, user *model.User, profile *model.UserProfile) (*AuthResult, error) {
	sess, err := s.sessions.Create(ctx, user.ID, s.sessionTTL)
	if err != nil {
		return nil, apperr.Internal("create session", err)
	}
	token, err := s.tokens.Issue(user.ID, sess.Token, sess.ExpiresAt)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		User:      toUserDTO(user, profile),
	}, nil
}

// Authenticate verifies a bearer token against its session row and returns
// the auth context for the request.
func (s *AuthService) Authenticate(ctx context.Context, token string) (auth.AuthContext, error) {
	if token == "" {
		return auth.AuthContext{}, apperr.Unauthorized(MsgAuthRequired)
	}
	userID, sessionToken, err := s.tokens.Verify(token)
	if err != nil {
		return auth.AuthContext{}, apperr.Unauthorized("invalid or expired session")
	}
	sess, err := s.sessions.GetByToken(ctx, sessionToken)
	if err != nil {
		return auth.AuthContext{}, apperr.Internal("load session", err)
	}
	if sess == nil || sess.UserID != userID {
		return auth.AuthContext{}, apperr.Unauthorized("invalid or expired session")
	}
	return auth.AuthContext{UserID: userID, SessionToken: sessionToken}, nil
}

// Me returns the caller's profile with a summary of their household's items.
func (s *AuthService) Me(ctx context.Context) (*UserProfileDTO, error) {
	profile, err := ResolveCaller(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, profile.UserID)
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound(MsgNoProfile)
	}

	dto := &UserProfileDTO{
		ID:          profile.ID,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		UserID:      user.ID,
		Email:       user.Email,
		HouseholdID: profile.HouseholdID,
		PantryItems: []PantryItemSummary{},
	}
	if profile.HouseholdID == nil {
		return dto, nil
	}

	household, err := s.households.GetByID(ctx, *profile.HouseholdID)
	if err != nil {
		return nil, apperr.Internal("load household", err)
	}
	if household != nil {
		dto.HouseholdName = household.Name
	}

	items, err := s.pantry.List(ctx, *profile.HouseholdID, "", -1, 0)
	if err != nil {
		return nil, apperr.Internal("list pantry items", err)
	}
	for _, item := range items {
		dto.PantryItems = append(dto.PantryItems, PantryItemSummary{
			ID:        item.ID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UpdatedAt: item.UpdatedAt.UTC(),
		})
	}
	return dto, nil
}

// Logout deletes the caller's session so the token stops verifying.
func (s *AuthService) Logout(ctx context.Context) error {
	token := auth.SessionToken(ctx)
	if token == "" {
		return apperr.Unauthorized(MsgAuthRequired)
	}
	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return apperr.Internal("delete session", err)
	}
	return nil
}

// CleanupSessions removes expired sessions.
func (s *AuthService) CleanupSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}
