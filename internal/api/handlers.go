package api

import (
	"errors"
	"net/http"
	"strconv"

	"newspaper/internal/database"
	"newspaper/internal/domain"
	"newspaper/internal/publish"

	"github.com/gin-gonic/gin"
)

type postRequest struct {
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	PostType    domain.PostType `json:"post_type"`
	CategoryIDs []int64         `json:"category_ids"`
}

func (r postRequest) draft() publish.Draft {
	return publish.Draft{
		Title:       r.Title,
		Content:     r.Content,
		Type:        r.PostType,
		CategoryIDs: r.CategoryIDs,
	}
}

type subscriptionRequest struct {
	Subscribed *bool `json:"subscribed"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleBecomeAuthor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		if err := s.store.SetUserAuthor(c.Request.Context(), userID); err != nil {
			s.respondError(c, err, "Failed to set author")
			return
		}

		s.log.InfoContext(c.Request.Context(), "User became an author",
			"userID", userID)

		c.JSON(http.StatusOK, gin.H{"is_author": true})
	}
}

func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		var req postRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		postID, err := s.publisher.Create(c.Request.Context(), userID, req.draft())
		if err != nil {
			s.respondError(c, err, "Failed to create post")
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": postID})
	}
}

func (s *Server) handleUpdatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		postID, ok := pathID(c)
		if !ok {
			return
		}

		var req postRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := s.publisher.Update(c.Request.Context(), userID, postID, req.draft()); err != nil {
			s.respondError(c, err, "Failed to update post")
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": postID})
	}
}

func (s *Server) handleListCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := s.store.GetCategories(c.Request.Context())
		if err != nil {
			s.respondError(c, err, "Failed to get categories")
			return
		}

		resp := make([]categoryResponse, 0, len(categories))
		for _, category := range categories {
			resp = append(resp, categoryResponse{ID: category.ID, Name: category.Name})
		}

		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleSetSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		categoryID, ok := pathID(c)
		if !ok {
			return
		}

		var req subscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Subscribed == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "subscribed is required"})
			return
		}

		ctx := c.Request.Context()

		if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
			s.respondError(c, err, "Failed to get category")
			return
		}

		var err error
		if *req.Subscribed {
			err = s.store.Subscribe(ctx, userID, categoryID)
		} else {
			err = s.store.Unsubscribe(ctx, userID, categoryID)
		}
		if err != nil {
			s.respondError(c, err, "Failed to update subscription")
			return
		}

		s.log.InfoContext(ctx, "Subscription is updated",
			"userID", userID,
			"categoryID", categoryID,
			"subscribed", *req.Subscribed)

		c.JSON(http.StatusOK, gin.H{"subscribed": *req.Subscribed})
	}
}

func (s *Server) requireUser(c *gin.Context) (int64, bool) {
	userID, err := currentUserID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return 0, false
	}

	return userID, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}

	return id, true
}

func (s *Server) respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, publish.ErrNotAuthor), errors.Is(err, publish.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, publish.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.log.ErrorContext(c.Request.Context(), msg,
			"error", err,
			"path", c.FullPath())

		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
