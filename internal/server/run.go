package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"courier/internal/service"

	"github.com/rs/zerolog/log"
)

// Run 启动监听直到 ctx 结束，然后在 timeout 内优雅停服，返回 nil。
// ctx 未结束时监听器被关闭返回 ErrTransportAborted，调用方不重试。
func Run(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: %w", service.ErrTransportAborted, err)
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	err := <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Err(err).Msg("listener closed")
	return nil
}
