package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestOTPCodeCommand(t *testing.T) {
	out, err := runCommand(t, "otp", "code", "--secret", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 6)
}

func TestOTPSecretCommand(t *testing.T) {
	out, err := runCommand(t, "otp", "secret", "--user", "nurse1")
	require.NoError(t, err)
	assert.Contains(t, out, "secret: ")
	assert.Contains(t, out, "otpauth://totp/")
}

func TestOTPCodeRequiresSecret(t *testing.T) {
	_, err := runCommand(t, "otp", "code", "--secret", "")
	assert.Error(t, err)
}
