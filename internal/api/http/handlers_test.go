package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/robotdriver/internal/api/middleware"
	"github.com/GriffinCanCode/robotdriver/internal/driver"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
	"github.com/GriffinCanCode/robotdriver/internal/types"
)

type fakeRobot struct {
	mu      sync.Mutex
	state   *driver.DriverState
	targets []kinematics.JointVector
}

func (f *fakeRobot) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != nil
}

func (f *fakeRobot) Snapshot() (driver.DriverState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		return driver.DriverState{}, &driver.NotReadyError{Role: "consumer", Op: "Snapshot", Missing: []string{"joint positions"}}
	}
	return *f.state, nil
}

func (f *fakeRobot) SendTargetPositions(v kinematics.JointVector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, v)
}

func readyRobot() *fakeRobot {
	return &fakeRobot{state: &driver.DriverState{
		Positions:      kinematics.JointVector{0.1, 0.2},
		Limits:         kinematics.JointLimits{Min: kinematics.JointVector{-1, -1}, Max: kinematics.JointVector{1, 1}},
		ReferenceFrame: kinematics.Identity(),
	}}
}

func newTestRouter(robot Robot, rl *middleware.RateLimitConfig) (*gin.Engine, *monitoring.Metrics) {
	gin.SetMode(gin.TestMode)
	metrics := monitoring.NewMetrics()
	return NewRouter(robot, RouterConfig{
		Prefix:    "arm/",
		Metrics:   metrics,
		CORS:      middleware.DefaultCORSConfig(),
		RateLimit: rl,
	}), metrics
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(&fakeRobot{}, nil)
	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestReady(t *testing.T) {
	tests := []struct {
		name  string
		robot *fakeRobot
		want  bool
	}{
		{name: "not ready", robot: &fakeRobot{}, want: false},
		{name: "ready", robot: readyRobot(), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(tt.robot, nil)
			w := do(r, http.MethodGet, "/v1/robot/ready", "")
			require.Equal(t, http.StatusOK, w.Code)

			var resp types.ReadyResponse
			require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Ready)
			assert.Equal(t, "arm/", resp.Prefix)
		})
	}
}

func TestStateUnavailableUntilReady(t *testing.T) {
	robot := &fakeRobot{}
	r, _ := newTestRouter(robot, nil)

	w := do(r, http.MethodGet, "/v1/robot/state", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var errResp types.ErrorResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, []string{"joint positions"}, errResp.Missing)

	robot.state = readyRobot().state
	w = do(r, http.MethodGet, "/v1/robot/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	var state types.StateResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, []float64{0.1, 0.2}, state.Positions)
	assert.Equal(t, []float64{-1, -1}, state.LimitsMin)
	assert.Equal(t, []float64{1, 1}, state.LimitsMax)
	assert.Len(t, state.ReferenceFrame, 8)
}

func TestTarget(t *testing.T) {
	tests := []struct {
		name     string
		robot    *fakeRobot
		body     string
		wantCode int
	}{
		{name: "accepted before ready", robot: &fakeRobot{}, body: `{"positions":[1,2,3]}`, wantCode: http.StatusAccepted},
		{name: "accepted when ready", robot: readyRobot(), body: `{"positions":[0.5,0.5]}`, wantCode: http.StatusAccepted},
		{name: "wrong joint count", robot: readyRobot(), body: `{"positions":[0.5]}`, wantCode: http.StatusBadRequest},
		{name: "empty", robot: &fakeRobot{}, body: `{"positions":[]}`, wantCode: http.StatusBadRequest},
		{name: "missing field", robot: &fakeRobot{}, body: `{}`, wantCode: http.StatusBadRequest},
		{name: "bad json", robot: &fakeRobot{}, body: `{`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(tt.robot, nil)
			w := do(r, http.MethodPost, "/v1/robot/target", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusAccepted {
				assert.Len(t, tt.robot.targets, 1)
			} else {
				assert.Empty(t, tt.robot.targets)
			}
		})
	}
}

func TestTargetRateLimited(t *testing.T) {
	robot := &fakeRobot{}
	r, _ := newTestRouter(robot, &middleware.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/v1/robot/target", `{"positions":[1]}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/v1/robot/target", `{"positions":[1]}`).Code)
	assert.Len(t, robot.targets, 1)

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/v1/robot/ready", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(&fakeRobot{}, nil)
	do(r, http.MethodGet, "/v1/robot/ready", "")

	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("robotdriver_http_requests_total")))
}
