package handlers

import (
	"encoding/json"
	"fmt"
	"iter"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// streamSSE writes every element of seq as a server-sent "snapshot" event.
// The stream ends when the client goes away, which cancels the request
// context and with it the subscription behind seq.
func streamSSE[T any](c echo.Context, logger *zap.Logger, seq iter.Seq2[T, error]) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for v, err := range seq {
		if err != nil {
			logger.Warn("stream ended with error", zap.String("path", c.Path()), zap.Error(err))
			if werr := writeEvent(res, "error", echo.Map{"message": toHTTPError(err).Error()}); werr != nil {
				logger.Debug("error event not delivered", zap.String("path", c.Path()), zap.Error(werr))
			}
			return nil
		}
		if err := writeEvent(res, "snapshot", v); err != nil {
			return nil
		}
	}
	return nil
}

func writeEvent(res *echo.Response, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
