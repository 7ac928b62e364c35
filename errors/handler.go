package errors

import (
	"context"
	"github.com/pickme-go/log/v2"
)

// ErrorHandler observes failures of asynchronously processed events.
type ErrorHandler interface {
	Handle(ctx context.Context, err *Error)
}

type ErrorHandlerFunc func(ctx context.Context, err *Error)

func (f ErrorHandlerFunc) Handle(ctx context.Context, err *Error) {
	f(ctx, err)
}

type logHandler struct {
	logger log.Logger
}

func NewLogHandler(logger log.Logger) ErrorHandler {
	return &logHandler{logger: logger}
}

func (h *logHandler) Handle(ctx context.Context, err *Error) {
	h.logger.ErrorContext(ctx, err)
}
