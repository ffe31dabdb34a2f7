package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/eload/internal/device"
	"github.com/taoyao-code/eload/internal/dispatcher"
	"github.com/taoyao-code/eload/internal/protocol/eload"
	"github.com/taoyao-code/eload/internal/sampler"
	"github.com/taoyao-code/eload/internal/storage/gormrepo"
	"github.com/taoyao-code/eload/internal/storage/models"
	redisstorage "github.com/taoyao-code/eload/internal/storage/redis"
	"github.com/taoyao-code/eload/internal/transport"
)

// Device 控制接口使用的设备操作（*device.Controller）
type Device interface {
	ID() string
	Snapshot(ctx context.Context) (device.Snapshot, error)
	SetLoadEnabled(ctx context.Context, on bool) error
	EnsureLoadOff(ctx context.Context) error
	SetCurrentIfChanged(ctx context.Context, amps float64) (bool, error)
	SetCutoffVoltageIfChanged(ctx context.Context, volts float64) (bool, error)
	SetTimerIfChanged(ctx context.Context, d time.Duration) (bool, error)
	ResetCounters(ctx context.Context) error
}

// SnapshotCache 最新快照缓存（redis.SnapshotCache）
type SnapshotCache interface {
	Latest(ctx context.Context, deviceID string) (sampler.Reading, error)
	History(ctx context.Context, deviceID string, n int64) ([]sampler.Reading, error)
}

// Feed 采样推送（*sampler.Sampler）
type Feed interface {
	Latest() (sampler.Reading, bool)
	Subscribe() (<-chan sampler.Reading, func())
}

// ReadingStore 历史采样（pg.Repository）
type ReadingStore interface {
	ListReadings(ctx context.Context, deviceID string, limit int) ([]sampler.Reading, error)
}

// RunStore 放电记录（gormrepo.Repository）
type RunStore interface {
	ListProfileRuns(ctx context.Context, device string, limit int) ([]models.ProfileRun, error)
	GetProfileRun(ctx context.Context, id uuid.UUID) (*models.ProfileRun, error)
}

// Deps 处理器依赖；除 Device 外均可为 nil
type Deps struct {
	Device      Device
	Cache       SnapshotCache
	Feed        Feed
	Readings    ReadingStore
	Runs        RunStore
	OpTimeout   time.Duration // 单次设备操作上限
	StreamEvery time.Duration // 无 Feed 时 websocket 轮询间隔
	Logger      *zap.Logger
}

// LoadHandler 电子负载控制接口
type LoadHandler struct {
	Deps
}

// NewLoadHandler 创建处理器
func NewLoadHandler(d Deps) *LoadHandler {
	if d.OpTimeout <= 0 {
		d.OpTimeout = 10 * time.Second
	}
	if d.StreamEvery <= 0 {
		d.StreamEvery = time.Second
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &LoadHandler{Deps: d}
}

func (h *LoadHandler) opContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.OpTimeout)
}

// Snapshot 实时读取全部读数
// @Summary 读取负载状态
// @Tags 电子负载
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} device.Snapshot
// @Router /api/v1/load [get]
func (h *LoadHandler) Snapshot(c *gin.Context) {
	ctx, cancel := h.opContext(c)
	defer cancel()
	s, err := h.Device.Snapshot(ctx)
	if err != nil {
		h.fail(c, "snapshot", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Latest 最近一次采样，不访问设备
// @Summary 最近一次采样
// @Tags 电子负载
// @Produce json
// @Success 200 {object} sampler.Reading
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/load/latest [get]
func (h *LoadHandler) Latest(c *gin.Context) {
	if h.Cache != nil {
		r, err := h.Cache.Latest(c.Request.Context(), h.Device.ID())
		if err == nil {
			c.JSON(http.StatusOK, r)
			return
		}
		if !errors.Is(err, redisstorage.ErrNoSnapshot) {
			h.Logger.Warn("read snapshot cache failed", zap.Error(err))
		}
	}
	if h.Feed != nil {
		if r, ok := h.Feed.Latest(); ok {
			c.JSON(http.StatusOK, r)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no sample available"})
}

// TurnOn 开启负载
// @Summary 开启负载输入
// @Tags 电子负载
// @Router /api/v1/load/on [post]
func (h *LoadHandler) TurnOn(c *gin.Context) {
	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := h.Device.SetLoadEnabled(ctx, true); err != nil {
		h.fail(c, "load on", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

// TurnOff 通过安全关断流程关闭负载；不受请求超时影响
// @Summary 安全关闭负载输入
// @Tags 电子负载
// @Failure 500 {object} map[string]interface{} "safety=true 表示无法确认关闭"
// @Router /api/v1/load/off [post]
func (h *LoadHandler) TurnOff(c *gin.Context) {
	if err := h.Device.EnsureLoadOff(c.Request.Context()); err != nil {
		h.fail(c, "load off", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

type valueRequest struct {
	Value *float64 `json:"value" binding:"required,gte=0,lte=255"`
}

type timerRequest struct {
	Seconds *int64 `json:"seconds" binding:"required,gte=0"`
}

// SetCurrent 设定电流（A）
// @Summary 设定电流
// @Tags 电子负载
// @Accept json
// @Param body body valueRequest true "电流（A）"
// @Router /api/v1/load/current [put]
func (h *LoadHandler) SetCurrent(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.opContext(c)
	defer cancel()
	changed, err := h.Device.SetCurrentIfChanged(ctx, *req.Value)
	if err != nil {
		h.fail(c, "set current", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": *req.Value, "changed": changed})
}

// SetCutoff 设定截止电压（V）
// @Summary 设定截止电压
// @Tags 电子负载
// @Accept json
// @Param body body valueRequest true "截止电压（V）"
// @Router /api/v1/load/cutoff [put]
func (h *LoadHandler) SetCutoff(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.opContext(c)
	defer cancel()
	changed, err := h.Device.SetCutoffVoltageIfChanged(ctx, *req.Value)
	if err != nil {
		h.fail(c, "set cutoff", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cutoff_voltage": *req.Value, "changed": changed})
}

// SetTimer 设定定时（秒，超过 65535 按 16 位回绕）
// @Summary 设定定时
// @Tags 电子负载
// @Accept json
// @Param body body timerRequest true "定时（秒）"
// @Router /api/v1/load/timer [put]
func (h *LoadHandler) SetTimer(c *gin.Context) {
	var req timerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.opContext(c)
	defer cancel()
	changed, err := h.Device.SetTimerIfChanged(ctx, time.Duration(*req.Seconds)*time.Second)
	if err != nil {
		h.fail(c, "set timer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seconds": *req.Seconds, "changed": changed})
}

// ResetCounters 清零累计
// @Router /api/v1/load/counters/reset [post]
func (h *LoadHandler) ResetCounters(c *gin.Context) {
	ctx, cancel := h.opContext(c)
	defer cancel()
	if err := h.Device.ResetCounters(ctx); err != nil {
		h.fail(c, "reset counters", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// ListReadings 历史采样
// @Param limit query int false "条数（默认100）"
// @Router /api/v1/load/readings [get]
func (h *LoadHandler) ListReadings(c *gin.Context) {
	if h.Readings == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "database disabled"})
		return
	}
	list, err := h.Readings.ListReadings(c.Request.Context(), h.Device.ID(), queryInt(c, "limit", 100))
	if err != nil {
		h.fail(c, "list readings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": list})
}

// ListRuns 放电曲线执行记录
// @Param limit query int false "条数（默认50）"
// @Router /api/v1/load/runs [get]
func (h *LoadHandler) ListRuns(c *gin.Context) {
	if h.Runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "database disabled"})
		return
	}
	list, err := h.Runs.ListProfileRuns(c.Request.Context(), h.Device.ID(), queryInt(c, "limit", 50))
	if err != nil {
		h.fail(c, "list runs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": list})
}

// History 缓存中的最近采样，新的在前，不访问设备
// @Param limit query int false "条数（默认60）"
// @Router /api/v1/load/history [get]
func (h *LoadHandler) History(c *gin.Context) {
	if h.Cache == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "redis disabled"})
		return
	}
	list, err := h.Cache.History(c.Request.Context(), h.Device.ID(), int64(queryInt(c, "limit", 60)))
	if err != nil {
		h.fail(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": list})
}

// GetRun 单条放电曲线执行记录
// @Param id path string true "执行ID"
// @Router /api/v1/load/runs/{id} [get]
func (h *LoadHandler) GetRun(c *gin.Context) {
	if h.Runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "database disabled"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	run, err := h.Runs.GetProfileRun(c.Request.Context(), id)
	if errors.Is(err, gormrepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.fail(c, "get run", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// fail 将领域错误映射为 HTTP 状态
func (h *LoadHandler) fail(c *gin.Context, op string, err error) {
	var (
		se   *device.SafetyError
		de   *device.DeviceError
		code = http.StatusInternalServerError
		body = gin.H{"error": err.Error()}
	)
	switch {
	case errors.As(err, &se):
		body["safety"] = true
	case errors.As(err, &de):
		code = http.StatusBadGateway
		body["device_code"] = de.Code
	case errors.Is(err, dispatcher.ErrResponseTimeout), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	case errors.Is(err, eload.ErrInvalidResponse):
		code = http.StatusBadGateway
	case errors.Is(err, transport.ErrClosed):
		code = http.StatusServiceUnavailable
	}
	h.Logger.Warn("load api failed", zap.String("op", op), zap.Int("status", code), zap.Error(err))
	_ = c.Error(err)
	c.JSON(code, body)
}
