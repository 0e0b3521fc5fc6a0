package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/graph"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

// PostWriter creates and deletes posts.
type PostWriter interface {
	CreatePost(ctx context.Context, actor models.User, in graph.PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, actor models.User, postID string) error
}

// PostReader reads posts.
type PostReader interface {
	Post(ctx context.Context, postID string) (*models.Post, error)
	UserPosts(ctx context.Context, uid string, limit int) ([]models.Post, error)
}

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	writer PostWriter
	reader PostReader
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(writer PostWriter, reader PostReader) *PostHandler {
	return &PostHandler{writer: writer, reader: reader}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:post_id", h.GetPost)
	g.DELETE("/posts/:post_id", h.DeletePost)
	g.GET("/users/:uid/posts", h.GetUserPosts)
}

// CreatePost creates a new post from JSON or a multipart form with an
// optional "image" file
func (h *PostHandler) CreatePost(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	image, f, err := formUpload(c, "image")
	if err != nil {
		return err
	}
	if f != nil {
		defer f.Close()
	}

	post, err := h.writer.CreatePost(c.Request().Context(), actor, graph.PostInput{Content: req.Content, Image: image})
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.reader.Post(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, post)
}

// DeletePost deletes one of the caller's posts
func (h *PostHandler) DeletePost(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.writer.DeletePost(c.Request().Context(), actor, c.Param("post_id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetUserPosts lists a user's posts, newest first
func (h *PostHandler) GetUserPosts(c echo.Context) error {
	posts, err := h.reader.UserPosts(c.Request().Context(), c.Param("uid"), queryLimit(c, 0, 100))
	if err != nil {
		return toHTTPError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"posts": posts})
}
