package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// PasswordVerifier checks plaintext passwords against bcrypt hashes.
// At most maxConcurrent hash computations run at once; callers beyond that
// wait for a slot or for their context to end.
type PasswordVerifier struct {
	cost  int
	slots *semaphore.Weighted
}

// NewPasswordVerifier constructs a verifier hashing with the given bcrypt cost.
func NewPasswordVerifier(cost, maxConcurrent int) *PasswordVerifier {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &PasswordVerifier{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Verify reports whether plaintext matches hash. A wrong password is not an
// error; only a malformed hash or a cancelled context is.
func (v *PasswordVerifier) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := v.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer v.slots.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verify password: %w", err)
	}
}

// Hash returns a salted bcrypt hash of plaintext.
func (v *PasswordVerifier) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := v.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer v.slots.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}
