package validators

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

func TestHandleTag(t *testing.T) {
	v := NewValidator()

	ok := models.UpdateProfileRequest{DisplayName: "Jo", Handle: "jo.doe_1"}
	assert.NoError(t, v.Validate(ok))

	for _, h := range []string{"jo", "jo doe", "jo@doe", ""} {
		err := v.Validate(models.UpdateProfileRequest{DisplayName: "Jo", Handle: h})
		var he *echo.HTTPError
		if assert.True(t, errors.As(err, &he), h) {
			assert.Equal(t, http.StatusBadRequest, he.Code)
		}
	}
}

func TestCommentContentLimit(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.Validate(models.CreateCommentRequest{Content: strings.Repeat("x", 501)}))
	assert.NoError(t, v.Validate(models.CreateCommentRequest{Content: "hi"}))
	assert.Error(t, v.Validate(models.CreateCommentRequest{Content: "hi", ReplyTo: &models.ReplyTarget{}}))
}
