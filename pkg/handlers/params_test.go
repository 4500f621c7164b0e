package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestParseLinkID(t *testing.T) {
	tests := []struct {
		value  string
		wantOK bool
	}{
		{"42", true},
		{"0", false},
		{"-1", false},
		{"abc", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/links/x", nil)
			req.SetPathValue("id", tt.value)
			rec := httptest.NewRecorder()

			id, ok := ParseLinkID(rec, req, zap.NewNop())
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && id != 42 {
				t.Errorf("id = %d, want 42", id)
			}
			if !ok && rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}
