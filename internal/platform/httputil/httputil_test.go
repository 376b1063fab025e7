package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Description: "db failed"})

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		body := decodeBody(t, w)
		if body["error"] != CodeInternal {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatal("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("client error includes description and extra", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, &APIError{
			Status:      http.StatusForbidden,
			Code:        "account_not_approved",
			Description: "account is pending approval",
			Extra:       map[string]string{"status": "pending"},
		})

		if w.Code != http.StatusForbidden {
			t.Fatalf("expected status %d, got %d", http.StatusForbidden, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body := decodeBody(t, w)
		if body["error"] != "account_not_approved" || body["status"] != "pending" {
			t.Fatalf("body = %v", body)
		}
		if body["error_description"] != "account is pending approval" {
			t.Fatalf("error_description = %q", body["error_description"])
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"empty", ``, true},
		{"malformed", `{"name":`, true},
		{"unknown field", `{"name":"x","extra":1}`, true},
		{"trailing object", `{"name":"x"}{"name":"y"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			apiErr := DecodeJSON(r, &p)
			if tt.wantErr {
				if apiErr == nil || apiErr.Status != http.StatusBadRequest {
					t.Fatalf("DecodeJSON(%q) = %v, want 400", tt.body, apiErr)
				}
				return
			}
			if apiErr != nil {
				t.Fatalf("DecodeJSON: %v", apiErr)
			}
			if p.Name != "x" {
				t.Errorf("name = %q", p.Name)
			}
		})
	}
}
