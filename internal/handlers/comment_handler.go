package handlers

import (
	"context"
	"iter"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/graph"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

// CommentWriter adds and deletes comments.
type CommentWriter interface {
	AddComment(ctx context.Context, actor models.User, postID string, in graph.CommentInput) (*models.Comment, error)
	DeleteComment(ctx context.Context, actor models.User, postID, commentID string) error
}

// CommentReader lists comments.
type CommentReader interface {
	Comments(ctx context.Context, postID string) ([]models.Comment, error)
	WatchComments(ctx context.Context, postID string) iter.Seq2[[]models.Comment, error]
}

// CommentHandler handles comment-related HTTP requests
type CommentHandler struct {
	writer CommentWriter
	reader CommentReader
	logger *zap.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(writer CommentWriter, reader CommentReader, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{writer: writer, reader: reader, logger: logger}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/comments", h.CreateComment)
	g.GET("/posts/:post_id/comments", h.GetComments)
	g.GET("/posts/:post_id/comments/stream", h.StreamComments)
	g.DELETE("/posts/:post_id/comments/:comment_id", h.DeleteComment)
}

// CreateComment adds a comment, optionally as a reply to another comment
func (h *CommentHandler) CreateComment(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	comment, err := h.writer.AddComment(c.Request().Context(), actor, c.Param("post_id"), graph.CommentInput{
		Content: req.Content,
		ReplyTo: req.ReplyTo,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusCreated, comment)
}

// GetComments lists a post's comments, oldest first
func (h *CommentHandler) GetComments(c echo.Context) error {
	comments, err := h.reader.Comments(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"comments": comments})
}

// StreamComments pushes the comment list whenever it changes
func (h *CommentHandler) StreamComments(c echo.Context) error {
	return streamSSE(c, h.logger, h.reader.WatchComments(c.Request().Context(), c.Param("post_id")))
}

// DeleteComment deletes a comment. The comment author and the post author
// may delete.
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.writer.DeleteComment(c.Request().Context(), actor, c.Param("post_id"), c.Param("comment_id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
