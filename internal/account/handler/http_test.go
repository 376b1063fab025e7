package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"alumni-tracker/internal/account/domain"
	"alumni-tracker/internal/account/repository"
	"alumni-tracker/internal/account/service"
	"alumni-tracker/internal/kv/memory"
	"alumni-tracker/internal/policy/engine"
	"alumni-tracker/internal/security"
	"alumni-tracker/internal/server/interceptors"
)

// withTestIdentity stands in for the bearer-token middleware.
func withTestIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-Account"); id != "" {
			r = r.WithContext(interceptors.WithIdentity(r.Context(), id, r.Header.Get("X-Test-Role")))
		}
		next.ServeHTTP(w, r)
	})
}

func newAccountRouter(t *testing.T, opts ...Option) (http.Handler, *service.AccountService) {
	t.Helper()
	gate, err := engine.NewOPAGate(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewOPAGate: %v", err)
	}
	svc := service.NewAccountService(repository.NewKVRepository(memory.New()), security.NewHasher(4), gate)
	r := chi.NewRouter()
	r.Use(withTestIdentity)
	New(svc, gate, nil, opts...).Register(r)
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, accountID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if accountID != "" {
		req.Header.Set("X-Test-Account", accountID)
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerBody(email, nationalID, role string) map[string]any {
	return map[string]any{
		"email":       email,
		"password":    "Secret1!",
		"national_id": nationalID,
		"role":        role,
		"profile":     map[string]string{"first_name": "Ana", "last_name": "Pérez"},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestRegister(t *testing.T) {
	h, _ := newAccountRouter(t)
	rec := do(t, h, http.MethodPost, "/v1/accounts", "", "", registerBody("Ana@Uni.edu", "200", "applicant"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks password hash: %s", rec.Body)
	}
	got := decode[AccountResponse](t, rec)
	if got.Email != "ana@uni.edu" || got.Status != "pending" {
		t.Errorf("account = %+v", got)
	}

	rec = do(t, h, http.MethodPost, "/v1/accounts", "", "", registerBody("ana@uni.edu", "201", "applicant"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["error"] != "duplicate_email" {
		t.Errorf("error code = %q", body["error"])
	}

	rec = do(t, h, http.MethodPost, "/v1/accounts", "", "", map[string]any{"email": "x@uni.edu"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status = %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/v1/accounts", "", "", map[string]any{"unknown": true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d", rec.Code)
	}
}

func TestRegister_CoordinatorSignup(t *testing.T) {
	h, svc := newAccountRouter(t)
	rec := do(t, h, http.MethodPost, "/v1/accounts", "", "", registerBody("boss@uni.edu", "900", "coordinator"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403; body = %s", rec.Code, rec.Body)
	}
	if body := decode[map[string]string](t, rec); body["error"] != "coordinator_signup_disabled" {
		t.Errorf("error code = %q", body["error"])
	}
	all, err := svc.List(context.Background(), service.ListFilter{})
	if err != nil || len(all) != 0 {
		t.Errorf("accounts after refused signup = %d, %v", len(all), err)
	}

	h, _ = newAccountRouter(t, WithCoordinatorSignup(true))
	rec = do(t, h, http.MethodPost, "/v1/accounts", "", "", registerBody("boss@uni.edu", "900", "coordinator"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("enabled status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[AccountResponse](t, rec); got.Status != domain.StatusApproved {
		t.Errorf("coordinator status = %q, want approved", got.Status)
	}
}

func TestDecide(t *testing.T) {
	h, svc := newAccountRouter(t)
	ctx := context.Background()
	coord, _ := svc.Register(ctx, service.RegisterInput{
		Email: "coord@uni.edu", Password: "Secret1!", NationalID: "100", Role: "coordinator",
		Profile: registerProfile(),
	})
	app, _ := svc.Register(ctx, service.RegisterInput{
		Email: "ana@uni.edu", Password: "Secret1!", NationalID: "200", Role: "applicant",
		Profile: registerProfile(),
	})
	path := "/v1/accounts/" + app.ID + "/decision"

	if rec := do(t, h, http.MethodPost, path, "", "", map[string]string{"decision": "approve"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, path, app.ID, "applicant", map[string]string{"decision": "approve"}); rec.Code != http.StatusForbidden {
		t.Errorf("applicant status = %d, want 403", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/accounts/missing/decision", app.ID, "applicant", map[string]string{"decision": "approve"}); rec.Code != http.StatusForbidden {
		t.Errorf("applicant on missing account status = %d, want 403", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, path, coord.ID, "coordinator", map[string]string{"decision": "approve"}); rec.Code != http.StatusNoContent {
		t.Fatalf("coordinator status = %d, body = %s", rec.Code, rec.Body)
	}
	rec := do(t, h, http.MethodPost, path, coord.ID, "coordinator", map[string]string{"decision": "reject"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second decision status = %d, want 409", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["error"] != "not_pending" {
		t.Errorf("error code = %q", body["error"])
	}
	if rec := do(t, h, http.MethodPost, "/v1/accounts/missing/decision", coord.ID, "coordinator", map[string]string{"decision": "approve"}); rec.Code != http.StatusNotFound {
		t.Errorf("missing account status = %d, want 404", rec.Code)
	}
}

func registerProfile() domain.Profile {
	return domain.Profile{FirstName: "Ana", LastName: "Pérez"}
}

func TestMeAndProfile(t *testing.T) {
	h, svc := newAccountRouter(t)
	app, _ := svc.Register(context.Background(), service.RegisterInput{
		Email: "ana@uni.edu", Password: "Secret1!", NationalID: "200", Role: "applicant",
		Profile: registerProfile(),
	})

	if rec := do(t, h, http.MethodGet, "/v1/accounts/me", "", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/v1/accounts/me", app.ID, "applicant", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	if got := decode[AccountResponse](t, rec); got.ID != app.ID {
		t.Errorf("me = %+v", got)
	}

	rec = do(t, h, http.MethodPatch, "/v1/accounts/me/profile", app.ID, "applicant", map[string]any{
		"profile":    map[string]string{"first_name": "Ana", "last_name": "Pérez", "city": "Loja"},
		"employment": map[string]string{"status": "studying"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decode[AccountResponse](t, rec)
	if got.Profile.City != "Loja" || got.Employment.Status != domain.EmploymentStudying || got.Status != domain.StatusPending {
		t.Errorf("updated = %+v", got)
	}
}

func TestList(t *testing.T) {
	h, svc := newAccountRouter(t)
	ctx := context.Background()
	coord, _ := svc.Register(ctx, service.RegisterInput{
		Email: "coord@uni.edu", Password: "Secret1!", NationalID: "100", Role: "coordinator",
		Profile: registerProfile(),
	})
	_, _ = svc.Register(ctx, service.RegisterInput{
		Email: "ana@uni.edu", Password: "Secret1!", NationalID: "200", Role: "applicant",
		Profile: registerProfile(),
	})

	if rec := do(t, h, http.MethodGet, "/v1/accounts", "someone", "applicant", nil); rec.Code != http.StatusForbidden {
		t.Errorf("applicant status = %d, want 403", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/v1/accounts?status=pending", coord.ID, "coordinator", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[ListResponse](t, rec); len(got.Accounts) != 1 || got.Accounts[0].Email != "ana@uni.edu" {
		t.Errorf("pending list = %+v", got)
	}
	if rec := do(t, h, http.MethodGet, "/v1/accounts?status=archived", coord.ID, "coordinator", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter status = %d, want 400", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	h, svc := newAccountRouter(t)
	ctx := context.Background()
	coord, _ := svc.Register(ctx, service.RegisterInput{
		Email: "coord@uni.edu", Password: "Secret1!", NationalID: "100", Role: "coordinator",
		Profile: registerProfile(),
	})
	app, _ := svc.Register(ctx, service.RegisterInput{
		Email: "ana@uni.edu", Password: "Secret1!", NationalID: "200", Role: "applicant",
		Profile: registerProfile(),
	})
	path := "/v1/accounts/" + app.ID

	if rec := do(t, h, http.MethodDelete, path, "", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, path, app.ID, "applicant", nil); rec.Code != http.StatusForbidden {
		t.Errorf("applicant status = %d, want 403", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/v1/accounts/"+coord.ID, coord.ID, "coordinator", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("self delete status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, path, coord.ID, "coordinator", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodDelete, path, coord.ID, "coordinator", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/v1/accounts", "", "", registerBody("ana@uni.edu", "200", "applicant"))
	if rec.Code != http.StatusCreated {
		t.Errorf("re-register status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestToAPIError_NotApproved(t *testing.T) {
	got := ToAPIError(&service.NotApprovedError{Status: domain.StatusRejected})
	if got.Status != http.StatusForbidden || got.Extra["status"] != "rejected" {
		t.Errorf("ToAPIError = %+v", got)
	}
}
