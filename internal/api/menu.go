package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"minute/internal/catalog"
	"minute/internal/models"
	"minute/internal/storage"
)

type menuItemRequest struct {
	Date              string `json:"date" binding:"required"`
	FoodID            uint   `json:"foodId" binding:"required"`
	AvailablePortions *int   `json:"availablePortions" binding:"required"`
}

func (r menuItemRequest) input() catalog.MenuItemInput {
	return catalog.MenuItemInput{
		Date:              models.Date(r.Date),
		FoodID:            r.FoodID,
		AvailablePortions: *r.AvailablePortions,
	}
}

func (s *Server) CreateMenuItem(c *gin.Context) {
	var req menuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item, err := s.catalog.CreateMenuItem(c.Request.Context(), req.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/menu-items/%d", item.ID))
	c.JSON(http.StatusCreated, item)
}

// ListMenuItems answers GET /menu-items, optionally narrowed by ?date=.
func (s *Server) ListMenuItems(c *gin.Context) {
	var filter storage.MenuItemFilter
	if raw := c.Query("date"); raw != "" {
		date, err := models.ParseDate(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.Date = date
	}
	items, err := s.catalog.ListMenuItems(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) TodayMenu(c *gin.Context) {
	items, err := s.catalog.TodayMenu(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) UpdateMenuItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req menuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.catalog.UpdateMenuItem(c.Request.Context(), id, req.input()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) DeleteMenuItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.catalog.DeleteMenuItem(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
