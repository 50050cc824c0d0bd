package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/resource-booking/internal/application"
	"github.com/example/resource-booking/internal/availability"
	"github.com/example/resource-booking/internal/config"
	"github.com/example/resource-booking/internal/persistence"
)

type memoryUserRepo struct {
	users map[string]persistence.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]persistence.User)}
}

func (m *memoryUserRepo) CreateUser(ctx context.Context, user persistence.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserRepo) UpdateUser(ctx context.Context, user persistence.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserRepo) GetUser(ctx context.Context, id string) (persistence.User, error) {
	user, ok := m.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (m *memoryUserRepo) ListUsers(ctx context.Context) ([]persistence.User, error) {
	out := make([]persistence.User, 0, len(m.users))
	for _, user := range m.users {
		out = append(out, user)
	}
	return out, nil
}

func (m *memoryUserRepo) DeleteUser(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type memorySessionRepo struct {
	sessions map[string]persistence.Session
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]persistence.Session)}
}

func (m *memorySessionRepo) CreateSession(ctx context.Context, session persistence.Session) error {
	m.sessions[session.Token] = session
	return nil
}

func (m *memorySessionRepo) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	session, ok := m.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (m *memorySessionRepo) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	session, ok := m.sessions[token]
	if !ok {
		return persistence.ErrNotFound
	}
	stamp := revokedAt
	session.RevokedAt = &stamp
	session.UpdatedAt = stamp
	m.sessions[token] = session
	return nil
}

func (m *memorySessionRepo) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	for token, session := range m.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(m.sessions, token)
		}
	}
	return nil
}

func TestSeedAdmin(t *testing.T) {
	t.Parallel()

	cfg := config.Config{AdminEmail: "admin@example.com", AdminPassword: "change-me"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("creates the account once", func(t *testing.T) {
		t.Parallel()

		repo := newMemoryUserRepo()
		idGenerator := func() string { return "admin-1" }
		now := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

		if err := seedAdmin(context.Background(), repo, cfg, idGenerator, now, logger); err != nil {
			t.Fatalf("seedAdmin failed: %v", err)
		}

		admin, err := repo.GetUserByEmail(context.Background(), "admin@example.com")
		if err != nil {
			t.Fatalf("expected admin account: %v", err)
		}
		if !admin.IsAdmin {
			t.Fatal("expected seeded account to be admin")
		}
		if err := application.VerifyPassword(admin.PasswordHash, "change-me"); err != nil {
			t.Fatalf("expected configured password to verify: %v", err)
		}

		// A second run must not replace the stored account.
		if err := seedAdmin(context.Background(), repo, cfg, func() string { return "admin-2" }, now, logger); err != nil {
			t.Fatalf("second seedAdmin failed: %v", err)
		}
		if _, err := repo.GetUser(context.Background(), "admin-2"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatal("expected no duplicate admin account")
		}
	})
}

func TestSessionRepositoryAdapter(t *testing.T) {
	t.Parallel()

	repo := newMemorySessionRepo()
	adapter := newSessionRepositoryAdapter(repo)

	expires := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	created, err := adapter.CreateSession(context.Background(), application.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Token:     "tok-1",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Token != "tok-1" || created.ExpiresAt != expires {
		t.Fatalf("unexpected stored session: %+v", created)
	}

	revoked, err := adapter.RevokeSession(context.Background(), "tok-1", expires.Add(-time.Hour))
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil {
		t.Fatal("expected revoked timestamp")
	}

	if _, err := adapter.RevokeSession(context.Background(), "missing", time.Now()); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found for unknown token, got %v", err)
	}
}

func TestReservationConversions(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	original := application.Reservation{
		ID:             "resv-1",
		UserID:         "user-1",
		BookedBy:       "Alice",
		ResourceID:     "device-1",
		ResourceType:   availability.ResourceDevice,
		Start:          start,
		End:            start.Add(45 * time.Minute),
		Status:         availability.StatusApproved,
		Quantity:       3,
		DevicePurposes: []string{"demo", "test bench", "spare"},
		Notes:          "handle with care",
	}

	model := toPersistenceReservation(original)
	if model.Purpose != nil {
		t.Fatal("expected empty purpose to map to NULL")
	}
	if model.Notes == nil || *model.Notes != "handle with care" {
		t.Fatal("expected notes preserved")
	}

	back := toApplicationReservation(model)
	if back.Purpose != "" || back.Notes != original.Notes {
		t.Fatalf("round trip mismatch: %+v", back)
	}
	if len(back.DevicePurposes) != 3 || back.DevicePurposes[1] != "test bench" {
		t.Fatalf("device purposes mismatch: %v", back.DevicePurposes)
	}
	if back.Status != availability.StatusApproved || back.ResourceType != availability.ResourceDevice {
		t.Fatalf("typed fields mismatch: %+v", back)
	}
}

func TestIsLoginRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{"POST", "/sessions", true},
		{"POST", "/sessions/", true},
		{"DELETE", "/sessions/current", false},
		{"POST", "/reservations", false},
		{"GET", "/sessions", false},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if got := isLoginRequest(req); got != tc.want {
			t.Fatalf("isLoginRequest(%s %s) = %v, want %v", tc.method, tc.path, got, tc.want)
		}
	}
}
