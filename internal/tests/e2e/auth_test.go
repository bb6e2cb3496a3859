//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carenet/apiserver/config"
	"github.com/carenet/apiserver/internal/auth"
	"github.com/carenet/apiserver/internal/db"
	"github.com/carenet/apiserver/internal/server"
	"github.com/carenet/apiserver/internal/store"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := seedUsers(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed users: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestLoginMFAPatientsLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	status, body := postJSON(t, baseURL+"/api/auth/login", map[string]any{
		"username": "doctor1",
		"password": "doctor123",
	})
	if status != http.StatusOK {
		t.Fatalf("login status %d: %s", status, body)
	}
	var challenge struct {
		MFARequired bool   `json:"mfa_required"`
		TempUserID  int    `json:"temp_user_id"`
		MFAToken    string `json:"mfa_token"`
	}
	if err := json.Unmarshal(body, &challenge); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if !challenge.MFARequired || challenge.TempUserID != 2 || challenge.MFAToken == "" {
		t.Fatalf("unexpected challenge: %+v", challenge)
	}

	status, body = postJSON(t, baseURL+"/api/auth/mfa", map[string]any{
		"temp_user_id": challenge.TempUserID,
		"otp":          "000000",
		"mfa_token":    challenge.MFAToken,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected wrong otp to be rejected, got %d: %s", status, body)
	}

	code, err := auth.CurrentTOTPCode(store.DefaultSeed[1].TOTPSecret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	status, body = postJSON(t, baseURL+"/api/auth/mfa", map[string]any{
		"temp_user_id": challenge.TempUserID,
		"otp":          code,
		"mfa_token":    challenge.MFAToken,
	})
	if status != http.StatusOK {
		t.Fatalf("mfa status %d: %s", status, body)
	}
	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		t.Fatalf("decode mfa: %v", err)
	}

	status, body = getPatients(t, baseURL, tokenResp.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("patients status %d: %s", status, body)
	}
	if !strings.Contains(string(body), `"username":"doctor1"`) {
		t.Fatalf("expected claims in response: %s", body)
	}

	status, _ = getPatients(t, baseURL, "")
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", status)
	}
}

func postJSON(t *testing.T, url string, payload any) (int, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody
}

func getPatients(t *testing.T, baseURL, token string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/patients", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get patients: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_DRIVER", config.StorePostgres)
	_ = os.Setenv("MFA_MODE", config.MFAModeTOTP)
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "carenet")
	_ = os.Setenv("DB_PASSWORD", "carenet")
	_ = os.Setenv("DB_NAME", "carenet")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("BCRYPT_COST", "4")
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func seedUsers(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	passwords := auth.NewPasswordVerifier(cfg.Password.Cost, cfg.Password.MaxConcurrent)
	users, err := store.BuildSeedUsers(ctx, store.DefaultSeed, passwords, false)
	if err != nil {
		return err
	}
	repo := store.NewUserRepository(conn)
	for _, user := range users {
		if _, err := repo.Create(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

func startServer() (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
