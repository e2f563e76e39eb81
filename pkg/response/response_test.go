package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/careview/backend/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorWritesCodeAndMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	Error(ctx, apperrors.ErrTokenInvalid)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Code != "AUTH_TOKEN_INVALID" {
		t.Fatalf("unexpected code %q", body.Code)
	}
	if body.Error == "" {
		t.Fatal("expected error message to be set")
	}
}

func TestErrorWithMergesExtraFields(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	ErrorWith(ctx, apperrors.ErrInsufficientPermissions, map[string]interface{}{
		"requiredRoles": []string{"ADMIN"},
		"userRole":      "PATIENT",
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["code"] != "AUTH_INSUFFICIENT_PERMISSIONS" {
		t.Fatalf("unexpected code %v", body["code"])
	}
	if body["userRole"] != "PATIENT" {
		t.Fatalf("expected userRole to be merged, got %v", body["userRole"])
	}
}

func TestErrorDefaultsToInternalServer(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	Error(ctx, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
