package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/flashcards/internal/access"
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

const (
	MaxUsernameLength = 64
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordBytes = 72
)

// UserService owns the account lifecycle: registration, login, token
// verification, credential changes, deletion and the saved-set list.
type UserService struct {
	users     repository.UserRepository
	sets      repository.SetRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	sets repository.SetRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		sets:      sets,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user with the token the handler hands back to the
// client, as a cookie and in the response body.
type AuthResult struct {
	User  *model.User
	Token string
}

var _ auth.Verifier = (*UserService)(nil)

// Register creates an account and issues its first token.
func (s *UserService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	token, err := s.tokens.Generate(username)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: hash, Token: token}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if apperror.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered", slog.String("username", username))
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate checks a username/password pair. The stored token is handed
// back as-is unless it no longer verifies (rotated secret, expiry), in which
// case a fresh one is issued and persisted.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "username and password are required")
	}

	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials
	}

	if _, err := s.tokens.Validate(user.Token); err != nil {
		token, err := s.tokens.Generate(user.Username)
		if err != nil {
			return nil, fmt.Errorf("issuing token: %w", err)
		}
		if err := s.users.SetToken(ctx, user.Username, token); err != nil {
			return nil, fmt.Errorf("storing token: %w", err)
		}
		user.Token = token
		s.logger.Info("token reissued on login", slog.String("username", user.Username))
	}

	return &AuthResult{User: user, Token: user.Token}, nil
}

var errInvalidCredentials = apperror.Unauthenticated("invalid username or password")

// VerifyToken resolves a presented token to the live user. The signature
// must check out, the user must still exist, and the token must be the one
// most recently issued to them.
func (s *UserService) VerifyToken(ctx context.Context, token string) (*model.User, error) {
	username, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthenticated("invalid token")
	}

	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid token")
		}
		return nil, fmt.Errorf("loading user %s: %w", username, err)
	}
	if subtle.ConstantTimeCompare([]byte(user.Token), []byte(token)) != 1 {
		return nil, apperror.Unauthenticated("token has been revoked")
	}
	return user, nil
}

// Replace sets both the username and the password of target. Checks run in
// the order: authentication, ownership, username collision, missing fields.
func (s *UserService) Replace(ctx context.Context, requester, target, newUsername, password string) (*AuthResult, error) {
	if err := authorizeAccount(requester, target); err != nil {
		return nil, err
	}
	if err := s.checkAvailable(ctx, requester, newUsername); err != nil {
		return nil, err
	}
	if err := validateCredentials(newUsername, password); err != nil {
		return nil, err
	}
	return s.update(ctx, requester, newUsername, password)
}

// Patch changes the username, the password, or both. Empty arguments leave
// the field unchanged.
func (s *UserService) Patch(ctx context.Context, requester, target, newUsername, password string) (*AuthResult, error) {
	if err := authorizeAccount(requester, target); err != nil {
		return nil, err
	}
	if newUsername == "" && password == "" {
		return nil, apperror.ValidationFailed("username", "a new username or password is required")
	}
	if newUsername == "" {
		newUsername = requester
	}
	if err := s.checkAvailable(ctx, requester, newUsername); err != nil {
		return nil, err
	}
	if err := validateUsername(newUsername); err != nil {
		return nil, err
	}
	if len(password) > MaxPasswordBytes {
		return nil, passwordTooLong()
	}
	return s.update(ctx, requester, newUsername, password)
}

// update writes the new credentials and a fresh token, which revokes every
// token issued before. An empty password keeps the current hash.
func (s *UserService) update(ctx context.Context, current, newUsername, password string) (*AuthResult, error) {
	existing, err := s.users.GetUser(ctx, current)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("account no longer exists")
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	hash := existing.PasswordHash
	if password != "" {
		if hash, err = s.passwords.Hash(password); err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
	}
	token, err := s.tokens.Generate(newUsername)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	updated := &model.User{Username: newUsername, PasswordHash: hash, Token: token}
	if err := s.users.UpdateUser(ctx, current, updated); err != nil {
		if apperror.Is(err, apperror.ErrConflict) || apperror.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("updating user %s: %w", current, err)
	}

	if newUsername != current {
		s.logger.Info("user renamed",
			slog.String("from", current),
			slog.String("to", newUsername),
		)
	} else {
		s.logger.Info("user credentials updated", slog.String("username", current))
	}

	user, err := s.users.GetUser(ctx, newUsername)
	if err != nil {
		return nil, fmt.Errorf("reloading user: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// checkAvailable reports a conflict when newUsername belongs to someone
// other than current. The store enforces the same rule atomically; checking
// first keeps the error order stable.
func (s *UserService) checkAvailable(ctx context.Context, current, newUsername string) error {
	if newUsername == "" || newUsername == current {
		return nil
	}
	_, err := s.users.GetUser(ctx, newUsername)
	switch {
	case err == nil:
		return apperror.Conflict("user", newUsername)
	case apperror.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("checking username %s: %w", newUsername, err)
	}
}

// Delete removes the requester's own account and every set it owns.
func (s *UserService) Delete(ctx context.Context, requester, target string) error {
	if err := authorizeAccount(requester, target); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, requester); err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting user %s: %w", requester, err)
	}
	s.logger.Info("user deleted", slog.String("username", requester))
	return nil
}

// SaveSet adds a set the requester can read to their saved list and returns
// the updated account.
func (s *UserService) SaveSet(ctx context.Context, requester, setID string) (*model.User, error) {
	if err := requireUser(requester); err != nil {
		return nil, err
	}
	set, err := lookupSet(ctx, s.sets, setID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(requester, set, access.Read, "set", setID); err != nil {
		return nil, err
	}

	res := s.users.AddSavedSet(ctx, requester, setID)
	switch res.Reason {
	case model.SaveOK:
		return res.User, nil
	case model.SaveSetMissing:
		return nil, apperror.NotFound("set", setID)
	case model.SaveUserMissing:
		return nil, apperror.Unauthenticated("account no longer exists")
	default:
		s.logger.Error("saving set failed",
			slog.String("username", requester),
			slog.String("set", setID),
			slog.String("message", res.Message),
		)
		if res.Err != nil {
			return nil, fmt.Errorf("saving set %s: %w", setID, res.Err)
		}
		return nil, fmt.Errorf("saving set %s: %s", setID, res.Message)
	}
}

// SavedSets lists the ids on the requester's saved list.
func (s *UserService) SavedSets(ctx context.Context, requester string) ([]string, error) {
	if err := requireUser(requester); err != nil {
		return nil, err
	}
	ids, err := s.users.SavedSets(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("listing saved sets: %w", err)
	}
	return ids, nil
}

func authorizeAccount(requester, target string) error {
	if err := requireUser(requester); err != nil {
		return err
	}
	if requester != target {
		return apperror.Forbidden("you can only change your own account")
	}
	return nil
}

func validateCredentials(username, password string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(password) > MaxPasswordBytes {
		return passwordTooLong()
	}
	return nil
}

func validateUsername(username string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return apperror.ValidationFailed("username", "username is required")
	case len(username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	case strings.ContainsAny(username, "/?#"):
		return apperror.ValidationFailed("username", "username must not contain '/', '?' or '#'")
	}
	return nil
}

func passwordTooLong() error {
	return apperror.ValidationFailed("password",
		fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes))
}
