package gateway

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/pizzaplanner/internal/auth"
	"github.com/terminal-bench/pizzaplanner/internal/planning"
)

const testSecret = "test-secret"

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	authSvc := auth.NewService(nil, testSecret)
	return NewGateway(Config{
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
	}, nil, authSvc)
}

func bearerToken(t *testing.T) string {
	t.Helper()
	claims := &auth.Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestSolveHandlerRejectsMissingAuth(t *testing.T) {
	gw := newTestGateway(t)

	req := httptest.NewRequest("POST", "/api/v1/solve", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	gw.router.ServeHTTP(w, req)

	assert.Equal(t, 401, w.Code)
}

func TestSolveHandlerReturnsDegenerateSolutionForNoOrders(t *testing.T) {
	gw := newTestGateway(t)

	problem := planning.Problem{Tau: [][]int{{0}}, K: 1, C: []int{5}, A: []int{0}}
	body, err := json.Marshal(problem)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/solve", bytes.NewBuffer(body))
	req.Header.Set("Authorization", bearerToken(t))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	gw.router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var sol planning.Solution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sol))
	assert.Equal(t, planning.StatusOptimal, sol.Status)
	require.NotNil(t, sol.Objective)
	assert.Equal(t, 0, *sol.Objective)
}

func TestPlanHandlerRejectsMalformedBody(t *testing.T) {
	gw := newTestGateway(t)

	req := httptest.NewRequest("POST", "/api/v1/plan", bytes.NewBufferString(`not json`))
	req.Header.Set("Authorization", bearerToken(t))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	gw.router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestHealthCheckNeedsNoAuth(t *testing.T) {
	gw := newTestGateway(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	gw.router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
}

func TestProblemKeyIsStableForIdenticalProblems(t *testing.T) {
	p1 := &planning.Problem{Tau: [][]int{{0}}, K: 1, C: []int{5}}
	p2 := &planning.Problem{Tau: [][]int{{0}}, K: 1, C: []int{5}}
	assert.Equal(t, problemKey(p1), problemKey(p2))

	p3 := &planning.Problem{Tau: [][]int{{0}}, K: 1, C: []int{6}}
	assert.NotEqual(t, problemKey(p1), problemKey(p3))
}
