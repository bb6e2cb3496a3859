package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/carenet/apiserver/internal/auth"
	"github.com/carenet/apiserver/internal/store"
	"github.com/carenet/apiserver/types"
	"github.com/rs/zerolog"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrIncorrectPassword   = errors.New("incorrect password")
	ErrIncorrectOTP        = errors.New("otp incorrect")
	ErrPendingTokenInvalid = errors.New("mfa token invalid")
)

// LoginResult is the outcome of the password step. Exactly one of
// AccessToken or MFARequired is set.
type LoginResult struct {
	AccessToken   string
	MFARequired   bool
	PendingUserID int
	PendingToken  string
}

// MFARequest carries the second step of a login.
type MFARequest struct {
	UserID       int
	Code         string
	PendingToken string
}

// AuthService runs the password then optional one-time-code login flow.
// It keeps no state between the two steps: every call re-reads the user.
type AuthService struct {
	users               *UserService
	passwords           *auth.PasswordVerifier
	mfa                 *auth.MFAManager
	tokens              *auth.TokenService
	requirePendingToken bool
}

// AuthOptions tunes the login flow.
type AuthOptions struct {
	// RequirePendingToken makes the MFA step accept only callers holding the
	// pending token handed out by a successful password step.
	RequirePendingToken bool
}

func NewAuthService(
	users *UserService,
	passwords *auth.PasswordVerifier,
	mfa *auth.MFAManager,
	tokens *auth.TokenService,
	opts AuthOptions,
) *AuthService {
	return &AuthService{
		users:               users,
		passwords:           passwords,
		mfa:                 mfa,
		tokens:              tokens,
		requirePendingToken: opts.RequirePendingToken,
	}
}

// Login verifies username and password. Users with MFA enabled get a
// pending challenge instead of a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	log := zerolog.Ctx(ctx)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.passwords.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		log.Debug().Int("user_id", user.ID).Msg("password rejected")
		return LoginResult{}, ErrIncorrectPassword
	}

	if s.mfa.RequiresChallenge(user) {
		pending, err := s.tokens.IssuePending(user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		log.Debug().Int("user_id", user.ID).Msg("password verified, mfa pending")
		return LoginResult{
			MFARequired:   true,
			PendingUserID: user.ID,
			PendingToken:  pending,
		}, nil
	}

	token, err := s.issue(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: token}, nil
}

// VerifyMFA completes a pending login. Unless pending tokens are required,
// a caller with a valid user id and code gets a token without repeating the
// password step.
func (s *AuthService) VerifyMFA(ctx context.Context, req MFARequest) (string, error) {
	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if s.requirePendingToken {
		boundID, err := s.tokens.VerifyPending(req.PendingToken)
		if err != nil || boundID != user.ID {
			zerolog.Ctx(ctx).Debug().Err(err).Int("user_id", user.ID).Msg("pending token rejected")
			return "", ErrPendingTokenInvalid
		}
	}

	if !s.mfa.VerifyCode(user, req.Code) {
		zerolog.Ctx(ctx).Debug().Int("user_id", user.ID).Msg("one-time code rejected")
		return "", ErrIncorrectOTP
	}

	return s.issue(ctx, user)
}

func (s *AuthService) issue(ctx context.Context, user types.User) (string, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", err
	}
	zerolog.Ctx(ctx).Info().Int("user_id", user.ID).Str("role", string(user.Role)).Msg("session token issued")
	return token, nil
}
