package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"minute/internal/models"
	"minute/internal/storage"
)

type createOrderRequest struct {
	MenuItemID uint `json:"menuItemId" binding:"required"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := s.orders.CreateOrder(c.Request.Context(), req.MenuItemID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/orders/%d", order.ID))
	c.JSON(http.StatusCreated, order)
}

// ListOrders answers GET /orders, newest first, optionally narrowed by
// ?status= and ?date=.
func (s *Server) ListOrders(c *gin.Context) {
	var filter storage.OrderFilter
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			s.fail(c, err)
			return
		}
		filter.Status = status
	}
	if raw := c.Query("date"); raw != "" {
		date, err := models.ParseDate(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.Date = date
	}
	orders, err := s.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// OpenOrders is the kitchen queue, oldest first.
func (s *Server) OpenOrders(c *gin.Context) {
	orders, err := s.orders.OpenOrders(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := s.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.orders.AdvanceStatus(c.Request.Context(), id, status); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
