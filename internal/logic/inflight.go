package logic

import (
	"context"
	"time"

	"github.com/blues/rosca/internal/logger"
	"golang.org/x/sync/singleflight"
)

// 合并执行的交易不随单个请求取消，以此为上限
const sharedWriteTimeout = 10 * time.Minute

// inflight 同一动作同一对象的并发写请求合并为一笔交易
type inflight struct {
	group singleflight.Group
}

// do 合并执行 fn。fn 运行在脱离请求取消的上下文中，调用方的 ctx 结束时只停止等待
func (f *inflight) do(ctx context.Context, action, key string, fn func(ctx context.Context) (*TxResult, error)) (*TxResult, error) {
	ch := f.group.DoChan(action+":"+key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedWriteTimeout)
		defer cancel()
		return fn(runCtx)
	})

	select {
	case <-ctx.Done():
		logger.Warn("Stopped waiting for %s on %s: %v", action, key, ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.Info("Collapsed concurrent %s request for %s", action, key)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TxResult), nil
	}
}
