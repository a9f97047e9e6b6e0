package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/driver"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
	"github.com/GriffinCanCode/robotdriver/internal/types"
)

// Robot is the consumer surface the API serves.
type Robot interface {
	IsReady() bool
	Snapshot() (driver.DriverState, error)
	SendTargetPositions(v kinematics.JointVector)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	robot  Robot
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(robot Robot, prefix string, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handlers{robot: robot, prefix: prefix, logger: logger.Named("http"), now: time.Now}
}

// Health handles liveness checks
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready reports consumer readiness
func (h *Handlers) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, types.ReadyResponse{Ready: h.robot.IsReady(), Prefix: h.prefix})
}

// State returns the latest snapshot
func (h *Handlers) State(c *gin.Context) {
	state, err := h.robot.Snapshot()
	if err != nil {
		notReady(c, err)
		return
	}
	c.JSON(http.StatusOK, types.NewStateResponse(h.prefix, state, h.now()))
}

// Target publishes a joint target. When the robot is ready the target must
// have one value per joint.
func (h *Handlers) Target(c *gin.Context) {
	var req types.TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		return
	}
	if len(req.Positions) == 0 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "positions must not be empty"})
		return
	}
	if state, err := h.robot.Snapshot(); err == nil && len(state.Positions) != len(req.Positions) {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: fmt.Sprintf("robot has %d joints, got %d positions", len(state.Positions), len(req.Positions)),
		})
		return
	}

	h.robot.SendTargetPositions(kinematics.FromFloat64s(req.Positions))
	h.logger.Debug("Target submitted", zap.Int("joints", len(req.Positions)))
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func notReady(c *gin.Context, err error) {
	resp := types.ErrorResponse{Error: err.Error()}
	var nr *driver.NotReadyError
	if errors.As(err, &nr) {
		resp.Missing = nr.Missing
	}
	c.JSON(http.StatusServiceUnavailable, resp)
}
