package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"scrip/internal/assets"
	"scrip/internal/platform/middleware"
	"scrip/internal/vault/service"
	rolestore "scrip/internal/vault/store/role"
	vaultstore "scrip/internal/vault/store/vault"
	"scrip/pkg/domain"
)

const signingKey = "test-signing-key"

type testEnv struct {
	router chi.Router
	engine *assets.InMemoryEngine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := assets.NewInMemoryEngine()
	svc := service.New(vaultstore.NewInMemory(), rolestore.NewInMemory(), engine,
		service.WithLogger(logger),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(middleware.NewJWTVerifier(signingKey), logger))
		New(svc, logger).Register(r)
	})
	return &testEnv{router: router, engine: engine}
}

func tokenFor(t *testing.T, address string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.MapClaims{"sub": address}).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// do performs an authenticated JSON request against the test router.
func (e *testEnv) do(t *testing.T, method, path, as string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, as))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/vaults", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestVaultLifecycleViaHandlers(t *testing.T) {
	env := newTestEnv(t)

	// Authority creates the vault.
	rec := env.do(t, http.MethodPost, "/vaults", "authority-1", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating vault, got %d: %s", rec.Code, rec.Body.String())
	}
	var vault struct {
		ID           string         `json:"id"`
		VoucherAsset domain.AssetID `json:"voucher_asset"`
		ReserveAsset domain.AssetID `json:"reserve_asset"`
	}
	decodeBody(t, rec, &vault)
	if vault.ID == "" {
		t.Fatalf("expected vault id in response")
	}
	base := "/vaults/" + vault.ID

	// A second initialize by the same authority conflicts.
	rec = env.do(t, http.MethodPost, "/vaults", "authority-1", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate vault, got %d", rec.Code)
	}

	// Register a client and a merchant.
	rec = env.do(t, http.MethodPost, base+"/clients", "authority-1", map[string]string{"address": "client-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering client, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, base+"/merchants", "authority-1", map[string]string{"address": "merchant-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering merchant, got %d", rec.Code)
	}

	// Fund the client with reserve and walk a full exchange cycle.
	if err := env.engine.Mint(t.Context(), domain.ReserveAssetID, "client-1", 100); err != nil {
		t.Fatalf("failed to fund client: %v", err)
	}

	rec = env.do(t, http.MethodPost, base+"/deposits", "client-1", map[string]uint64{"amount": 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on deposit, got %d: %s", rec.Code, rec.Body.String())
	}
	var deposit struct {
		VoucherAmount uint64 `json:"voucher_amount"`
	}
	decodeBody(t, rec, &deposit)
	if deposit.VoucherAmount != 400 {
		t.Fatalf("expected 400 voucher minted, got %d", deposit.VoucherAmount)
	}

	rec = env.do(t, http.MethodPost, base+"/transfers", "client-1",
		map[string]any{"recipient": "merchant-1", "amount": 400})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on transfer, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, base+"/settlements", "merchant-1", map[string]uint64{"amount": 400})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on settlement, got %d: %s", rec.Code, rec.Body.String())
	}
	var settlement struct {
		ReserveAmount uint64 `json:"reserve_amount"`
	}
	decodeBody(t, rec, &settlement)
	if settlement.ReserveAmount != 100 {
		t.Fatalf("expected 100 reserve released, got %d", settlement.ReserveAmount)
	}

	// Counters are back to zero and publicly observable.
	rec = env.do(t, http.MethodGet, base, "anyone", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching vault, got %d", rec.Code)
	}
	var counters struct {
		TotalReserveDeposited uint64 `json:"total_reserve_deposited"`
		TotalVoucherMinted    uint64 `json:"total_voucher_minted"`
	}
	decodeBody(t, rec, &counters)
	if counters.TotalReserveDeposited != 0 || counters.TotalVoucherMinted != 0 {
		t.Fatalf("expected zeroed counters, got (%d, %d)",
			counters.TotalReserveDeposited, counters.TotalVoucherMinted)
	}
}

func TestErrorTranslation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/vaults", "authority-1", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating vault, got %d", rec.Code)
	}
	var vault struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &vault)
	base := "/vaults/" + vault.ID

	assertError := func(rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
		t.Helper()
		if rec.Code != wantStatus {
			t.Fatalf("expected status %d, got %d: %s", wantStatus, rec.Code, rec.Body.String())
		}
		var resp struct {
			Error string `json:"error"`
		}
		decodeBody(t, rec, &resp)
		if resp.Error != wantCode {
			t.Fatalf("expected error code %q, got %q", wantCode, resp.Error)
		}
	}

	t.Run("validation error on malformed vault id", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/vaults/not-a-uuid", "anyone", nil)
		assertError(rec, http.StatusBadRequest, "validation")
	})

	t.Run("not found on unknown vault", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/vaults/00000000-0000-0000-0000-000000000001", "anyone", nil)
		assertError(rec, http.StatusNotFound, "not_found")
	})

	t.Run("forbidden when a non-authority administers roles", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base+"/clients", "outsider",
			map[string]string{"address": "client-1"})
		assertError(rec, http.StatusForbidden, "unauthorized")
	})

	t.Run("bad request on malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, base+"/deposits", bytes.NewReader([]byte("{")))
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, "client-1"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assertError(rec, http.StatusBadRequest, "validation")
	})

	t.Run("forbidden on blocked transfer", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base+"/transfers", "nobody",
			map[string]any{"recipient": "merchant-1", "amount": 10})
		assertError(rec, http.StatusForbidden, "sender_not_registered")
	})
}
