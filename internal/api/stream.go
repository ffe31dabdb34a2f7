package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const streamWriteTimeout = 5 * time.Second

// Stream 通过 websocket 推送采样。
// 有采样器时转发其推送，否则按 StreamEvery 直接读取设备
// @Summary 实时读数推送（websocket）
// @Tags 电子负载
// @Router /api/v1/load/stream [get]
func (h *LoadHandler) Stream(c *gin.Context) {
	conn, err := websocket.Accept(upgradeTarget(c.Writer), c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// 只写不读；CloseRead 处理控制帧并在对端关闭时取消 ctx
	ctx := conn.CloseRead(c.Request.Context())
	h.Logger.Debug("stream client connected", zap.String("remote", c.ClientIP()))

	if h.Feed != nil {
		err = h.streamFeed(ctx, conn)
	} else {
		err = h.streamPoll(ctx, conn)
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
	default:
		h.Logger.Debug("stream closed", zap.Error(err))
		conn.Close(websocket.StatusInternalError, "stream error")
	}
}

// upgradeWriter 101 响应头直接写入底层 http.ResponseWriter，
// 劫持仍经过 gin，gin 据此认为响应已写出，不再补写状态码
type upgradeWriter struct {
	http.ResponseWriter
	hj http.Hijacker
}

func (w upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) { return w.hj.Hijack() }

// upgradeTarget gin 的 WriteHeaderNow 会使随后的 Hijack 失败，升级时绕开它
func upgradeTarget(w gin.ResponseWriter) http.ResponseWriter {
	u, ok := w.(interface{ Unwrap() http.ResponseWriter })
	if !ok {
		return w
	}
	return upgradeWriter{ResponseWriter: u.Unwrap(), hj: w}
}

func (h *LoadHandler) streamFeed(ctx context.Context, conn *websocket.Conn) error {
	ch, cancel := h.Feed.Subscribe()
	defer cancel()

	if r, ok := h.Feed.Latest(); ok {
		if err := writeJSON(ctx, conn, r); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeJSON(ctx, conn, r); err != nil {
				return err
			}
		}
	}
}

func (h *LoadHandler) streamPoll(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(h.StreamEvery)
	defer ticker.Stop()
	for {
		opCtx, cancel := context.WithTimeout(ctx, h.OpTimeout)
		s, err := h.Device.Snapshot(opCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.Logger.Warn("stream snapshot failed", zap.Error(err))
			if err := writeJSON(ctx, conn, gin.H{"error": err.Error()}); err != nil {
				return err
			}
		} else if err := writeJSON(ctx, conn, s); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
