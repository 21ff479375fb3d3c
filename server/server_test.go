package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-contacts/auth"
	"github.com/goliatone/go-contacts/avatar"
	"github.com/goliatone/go-contacts/contacts"
	"github.com/goliatone/go-contacts/persistence"
	"github.com/goliatone/go-contacts/server"
)

var testDBCounter atomic.Int64

type stubMailer struct {
	sent chan string
}

func (m *stubMailer) SendVerification(ctx context.Context, to, token string) error {
	m.sent <- token
	return nil
}

func (m *stubMailer) waitToken(t *testing.T) string {
	t.Helper()
	select {
	case token := <-m.sent:
		return token
	case <-time.After(5 * time.Second):
		t.Fatal("no verification dispatched")
		return ""
	}
}

type testEnv struct {
	srv    *server.Server
	mailer *stubMailer
	db     *bun.DB
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := persistence.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, persistence.Init(context.Background(), db))

	repo := auth.NewRepositoryManager(db)
	tokens := auth.NewTokenService([]byte("test-signing-key"), time.Hour, "go-contacts", nil)
	mailer := &stubMailer{sent: make(chan string, 8)}

	avatarDir := t.TempDir()
	avatars := avatar.New(avatarDir, "/avatars", avatar.WithSize(64))

	accounts := auth.NewAccounts(repo, tokens, mailer,
		auth.WithAvatarStore(avatars),
	)

	srv := server.New(server.Config{
		Addr:               ":0",
		TmpDir:             t.TempDir(),
		AvatarDir:          avatarDir,
		AvatarPublicPrefix: "/avatars",
	}, accounts, contacts.NewContactsRepository(db))

	return &testEnv{srv: srv, mailer: mailer, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.App().Test(req, 30000)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) register(t *testing.T, email, password string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func (e *testEnv) registerVerified(t *testing.T, email, password string) {
	t.Helper()
	e.register(t, email, password)

	token := e.mailer.waitToken(t)
	resp := e.do(t, http.MethodGet, "/api/users/verify/"+token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthz(t *testing.T) {
	env := setupServer(t)

	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterEndpoint(t *testing.T) {
	env := setupServer(t)

	resp := env.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"email":    "signup@example.com",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Flat body: the profile fields at the top level.
	body := decodeBody(t, resp)
	assert.Equal(t, "signup@example.com", body["email"])
	assert.Equal(t, "starter", body["subscription"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "user")

	// Same email again: exactly one record wins.
	resp = env.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"email":    "signup@example.com",
		"password": "other-password",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "Email in use", body["message"])
}

func TestRegisterEndpointValidation(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"Missing email", map[string]string{"password": "secret-password"}},
		{"Missing password", map[string]string{"email": "a@example.com"}},
		{"Bad email", map[string]string{"email": "nope", "password": "secret-password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/users", "", tt.payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestRegisterEndpointAcceptsShortPasswords(t *testing.T) {
	env := setupServer(t)

	// Presence is the only password requirement.
	for _, tt := range []struct {
		email    string
		password string
	}{
		{"a@x.com", "pw123"},
		{"b@x.com", "pw"},
	} {
		resp := env.do(t, http.MethodPost, "/api/users", "", map[string]string{
			"email":    tt.email,
			"password": tt.password,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := setupServer(t)
	env.register(t, "login@example.com", "secret-password")
	verification := env.mailer.waitToken(t)

	// Unverified account cannot log in.
	resp := env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "login@example.com",
		"password": "secret-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/users/verify/"+verification, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "login@example.com",
		"password": "secret-password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["token"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "login@example.com", user["email"])
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	env := setupServer(t)
	env.registerVerified(t, "creds@example.com", "secret-password")

	unknown := env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "stranger@example.com",
		"password": "secret-password",
	})
	wrong := env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    "creds@example.com",
		"password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)

	// Identical body: unknown email is not distinguishable.
	assert.Equal(t, decodeBody(t, unknown), decodeBody(t, wrong))
}

func TestVerifyEndpoints(t *testing.T) {
	env := setupServer(t)
	env.register(t, "verify@example.com", "secret-password")
	token := env.mailer.waitToken(t)

	resp := env.do(t, http.MethodGet, "/api/users/verify/"+token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Verification successful", body["message"])

	// Single use.
	resp = env.do(t, http.MethodGet, "/api/users/verify/"+token, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestResendVerificationEndpoint(t *testing.T) {
	env := setupServer(t)
	env.register(t, "resend@example.com", "secret-password")
	first := env.mailer.waitToken(t)

	resp := env.do(t, http.MethodPost, "/api/users/verify", "", map[string]string{
		"email": "resend@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Verification email sent", body["message"])
	assert.Equal(t, first, env.mailer.waitToken(t))

	// Unknown email and already-verified both answer 400.
	resp = env.do(t, http.MethodPost, "/api/users/verify", "", map[string]string{
		"email": "stranger@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	verify := env.do(t, http.MethodGet, "/api/users/verify/"+first, "", nil)
	require.Equal(t, http.StatusOK, verify.StatusCode)
	verify.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/users/verify", "", map[string]string{
		"email": "resend@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCurrentAndLogout(t *testing.T) {
	env := setupServer(t)
	env.registerVerified(t, "me@example.com", "secret-password")
	token := env.login(t, "me@example.com", "secret-password")

	resp := env.do(t, http.MethodGet, "/api/users/current", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "me@example.com", body["email"])
	assert.Equal(t, "starter", body["subscription"])

	resp = env.do(t, http.MethodGet, "/api/users/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// The old token still has a valid signature but is revoked.
	resp = env.do(t, http.MethodGet, "/api/users/current", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthRequired(t *testing.T) {
	env := setupServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users/current"},
		{http.MethodGet, "/api/users/logout"},
		{http.MethodPatch, "/api/users/avatars"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			resp := env.do(t, p.method, p.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()

			resp = env.do(t, p.method, p.path, "garbage-token", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestAvatarUpload(t *testing.T) {
	env := setupServer(t)
	env.registerVerified(t, "pic@example.com", "secret-password")
	token := env.login(t, "pic@example.com", "secret-password")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("avatar", "photo.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, image.NewRGBA(image.Rect(0, 0, 320, 240))))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/users/avatars", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := env.srv.App().Test(req, 30000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	avatarURL, _ := body["avatarURL"].(string)
	require.NotEmpty(t, avatarURL)
	assert.True(t, strings.HasPrefix(avatarURL, "/avatars/"))
	assert.True(t, strings.HasSuffix(avatarURL, ".png"))

	// Served statically once stored.
	resp = env.do(t, http.MethodGet, avatarURL, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAvatarUploadMissingFile(t *testing.T) {
	env := setupServer(t)
	env.registerVerified(t, "nofile@example.com", "secret-password")
	token := env.login(t, "nofile@example.com", "secret-password")

	resp := env.do(t, http.MethodPatch, "/api/users/avatars", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestContactsEndpoints(t *testing.T) {
	env := setupServer(t)

	// Empty list to start.
	resp := env.do(t, http.MethodGet, "/api/contacts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/contacts", "", map[string]string{
		"name":  "Alice",
		"email": "alice@example.com",
		"phone": "+12125551234",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	resp = env.do(t, http.MethodGet, "/api/contacts/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody(t, resp)
	assert.Equal(t, "Alice", got["name"])

	resp = env.do(t, http.MethodPut, "/api/contacts/"+id, "", map[string]string{
		"name":  "Alice B",
		"email": "alice@example.com",
		"phone": "+12125551234",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody(t, resp)
	assert.Equal(t, "Alice B", updated["name"])

	resp = env.do(t, http.MethodDelete, "/api/contacts/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deleted := decodeBody(t, resp)
	assert.Equal(t, "contact deleted", deleted["message"])

	resp = env.do(t, http.MethodGet, "/api/contacts/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestContactsValidation(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"Missing name", map[string]string{"email": "a@example.com", "phone": "+12125551234"}},
		{"Bad email", map[string]string{"name": "A", "email": "nope", "phone": "+12125551234"}},
		{"Bad phone", map[string]string{"name": "A", "email": "a@example.com", "phone": "not-a-phone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/contacts", "", tt.payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestContactsUnknownID(t *testing.T) {
	env := setupServer(t)

	for _, id := range []string{
		"00000000-0000-0000-0000-000000000001",
		"not-a-uuid",
	} {
		resp := env.do(t, http.MethodGet, "/api/contacts/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()

		resp = env.do(t, http.MethodDelete, "/api/contacts/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestInternalDetailNeverLeaks(t *testing.T) {
	env := setupServer(t)

	// Kill the store out from under the handler: the response must collapse
	// to a generic message with no driver detail.
	require.NoError(t, env.db.Close())

	resp := env.do(t, http.MethodGet, "/api/contacts", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, map[string]any{"message": "Server error"}, body)
}
