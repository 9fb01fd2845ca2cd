package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inkpost/backend/internal/comments"
	"github.com/inkpost/backend/internal/posts"
	"go.uber.org/zap"
)

func (h *httpHandler) handleListPosts(c *gin.Context) {
	published, err := h.posts.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, published)
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	post, err := h.posts.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, posts.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		h.logger.Error("failed to load post", zap.Error(err), zap.String("slug", c.Param("slug")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	var input posts.PostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), c.GetString(userIDContextKey), input)
	if err != nil {
		if errors.Is(err, posts.ErrInvalidPost) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_post"})
			return
		}
		h.logger.Error("failed to create post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": post.ID, "slug": post.Slug})
}

func (h *httpHandler) handleUpdatePost(c *gin.Context) {
	var input posts.PostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
		return
	}

	// The path segment carries the post id on write routes.
	postID := c.Param("slug")
	post, err := h.posts.Update(c.Request.Context(), c.GetString(userIDContextKey), postID, input)
	if err != nil {
		switch {
		case errors.Is(err, posts.ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		case errors.Is(err, posts.ErrInvalidPost):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_post"})
		default:
			h.logger.Error("failed to update post", zap.Error(err), zap.String("post_id", postID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	postID := c.Param("slug")
	if err := h.posts.Delete(c.Request.Context(), c.GetString(userIDContextKey), postID); err != nil {
		if errors.Is(err, posts.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		h.logger.Error("failed to delete post", zap.Error(err), zap.String("post_id", postID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	views, err := h.comments.ListForPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("failed to list comments", zap.Error(err), zap.String("post_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, views)
}

type commentBody struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	postID := c.Query("post_id")
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), c.GetString(userIDContextKey), postID, body.Content)
	if err != nil {
		if errors.Is(err, comments.ErrInvalidComment) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_comment"})
			return
		}
		h.logger.Error("failed to create comment", zap.Error(err), zap.String("post_id", postID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": comment.ID})
}

func (h *httpHandler) handleUpdateComment(c *gin.Context) {
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
		return
	}

	commentID := c.Param("id")
	comment, err := h.comments.Update(c.Request.Context(), c.GetString(userIDContextKey), commentID, body.Content)
	if err != nil {
		switch {
		case errors.Is(err, comments.ErrCommentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "comment_not_found"})
		case errors.Is(err, comments.ErrInvalidComment):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_comment"})
		default:
			h.logger.Error("failed to update comment", zap.Error(err), zap.String("comment_id", commentID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	commentID := c.Param("id")
	if err := h.comments.Delete(c.Request.Context(), c.GetString(userIDContextKey), commentID); err != nil {
		if errors.Is(err, comments.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment_not_found"})
			return
		}
		h.logger.Error("failed to delete comment", zap.Error(err), zap.String("comment_id", commentID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
