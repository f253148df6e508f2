package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/http/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		code domainagg.ErrorCode
		want int
	}{
		{domainagg.CodeValidation, http.StatusBadRequest},
		{domainagg.CodeSelfRelationship, http.StatusBadRequest},
		{domainagg.CodeNotFound, http.StatusNotFound},
		{domainagg.CodeConflict, http.StatusConflict},
		{domainagg.CodeCorrelationConflict, http.StatusConflict},
		{domainagg.CodeSplitAmbiguity, http.StatusConflict},
		{domainagg.CodeDanglingReference, http.StatusConflict},
		{domainagg.CodePreconditionFailed, http.StatusPreconditionFailed},
		{domainagg.CodeRetryable, http.StatusServiceUnavailable},
		{domainagg.CodeInternal, http.StatusInternalServerError},
		{domainagg.CodeInvariantViolation, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		response.RespondDomainError(c, domainagg.NewError(tc.code, "Test.Op", "boom", nil))
		if w.Code != tc.want {
			t.Fatalf("code %s: want %d, got %d", tc.code, tc.want, w.Code)
		}
		var env response.ErrorEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("code %s: body %q: %v", tc.code, w.Body.String(), err)
		}
		if env.Error.Code != string(tc.code) {
			t.Fatalf("code %s echoed as %q", tc.code, env.Error.Code)
		}
	}
}

func TestRespondDomainError_UnknownErrorIs500(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	response.RespondDomainError(c, errors.New("disk on fire"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("untyped error: want 500, got %d", w.Code)
	}
}
