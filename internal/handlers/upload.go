package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/media"
)

const maxUploadSize = 10 << 20

// formUpload opens the named multipart file. It returns a nil upload when
// the request is not multipart or carries no such file. The caller closes
// the returned file.
func formUpload(c echo.Context, field string) (*media.Upload, multipart.File, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil, nil
	}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}
	if fh.Size > maxUploadSize {
		return nil, nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "Unreadable upload")
	}
	return &media.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}
