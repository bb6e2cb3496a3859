package store

import (
	"context"
	"fmt"
	"time"

	"github.com/carenet/apiserver/types"
)

// SeedUser is a bootstrap account with its plaintext password.
// StaticCode is the fixed demo one-time code; TOTPSecret is the base32
// secret used when real time-based codes are enabled.
type SeedUser struct {
	ID         int
	Username   string
	Password   string
	Role       types.Role
	MFAEnabled bool
	StaticCode string
	TOTPSecret string
}

// DefaultSeed is the fixed account set the service starts with.
var DefaultSeed = []SeedUser{
	{
		ID:         1,
		Username:   "admin",
		Password:   "admin123",
		Role:       types.RoleAdmin,
		MFAEnabled: true,
		StaticCode: "123456",
		TOTPSecret: "JBSWY3DPEHPK3PXP",
	},
	{
		ID:         2,
		Username:   "doctor1",
		Password:   "doctor123",
		Role:       types.RoleDoctor,
		MFAEnabled: true,
		StaticCode: "654321",
		TOTPSecret: "KRUGKIDROVUWG2ZA",
	},
}

// PasswordHasher produces a salted hash for a plaintext password.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}

// BuildSeedUsers hashes the seed passwords and picks the MFA secret that
// matches the configured code scheme.
func BuildSeedUsers(ctx context.Context, seed []SeedUser, hasher PasswordHasher, staticCodes bool) ([]types.User, error) {
	now := time.Now()
	users := make([]types.User, 0, len(seed))
	for _, s := range seed {
		hash, err := hasher.Hash(ctx, s.Password)
		if err != nil {
			return nil, fmt.Errorf("seed user %q: %w", s.Username, err)
		}
		secret := s.TOTPSecret
		if staticCodes {
			secret = s.StaticCode
		}
		users = append(users, types.User{
			ID:           s.ID,
			Username:     s.Username,
			PasswordHash: hash,
			Role:         s.Role,
			MFAEnabled:   s.MFAEnabled,
			MFASecret:    secret,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return users, nil
}
