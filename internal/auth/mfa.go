package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/carenet/apiserver/types"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpDigits = otp.DigitsSix
	totpPeriod = 30
)

// CodeVerifier checks a submitted one-time code against a user's secret.
type CodeVerifier interface {
	Verify(secret, code string, at time.Time) bool
}

// TOTPVerifier validates RFC 6238 codes derived from a base32 secret.
type TOTPVerifier struct {
	opts totp.ValidateOpts
}

// NewTOTPVerifier accepts codes up to skew periods before or after the current one.
func NewTOTPVerifier(skew uint) TOTPVerifier {
	return TOTPVerifier{opts: totpOpts(skew)}
}

func (v TOTPVerifier) Verify(secret, code string, at time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	valid, err := totp.ValidateCustom(code, secret, at.UTC(), v.opts)
	return err == nil && valid
}

// StaticVerifier compares the code with the stored secret verbatim.
// It exists for the demo seed codes and proves nothing about time.
type StaticVerifier struct{}

func (StaticVerifier) Verify(secret, code string, _ time.Time) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(code)) == 1
}

// MFAManager decides whether a login needs a second factor and checks it.
type MFAManager struct {
	verifier CodeVerifier
	now      func() time.Time
}

func NewMFAManager(verifier CodeVerifier) *MFAManager {
	return &MFAManager{verifier: verifier, now: time.Now}
}

// RequiresChallenge reports whether user must submit a one-time code.
func (m *MFAManager) RequiresChallenge(user types.User) bool {
	return user.MFAEnabled
}

// VerifyCode reports whether code is valid for user. Users without MFA
// have no challenge to answer and always fail.
func (m *MFAManager) VerifyCode(user types.User, code string) bool {
	if !user.MFAEnabled {
		return false
	}
	return m.verifier.Verify(user.MFASecret, code, m.now())
}

// GenerateTOTPSecret creates a new secret for accountName and returns the
// base32 secret together with its otpauth:// provisioning URL.
func GenerateTOTPSecret(issuer, accountName string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// CurrentTOTPCode returns the code for secret at time at.
func CurrentTOTPCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totpOpts(0))
}

func totpOpts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      skew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	}
}
