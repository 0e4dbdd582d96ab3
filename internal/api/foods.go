package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"minute/internal/catalog"
)

type foodRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"required"`
}

func (r foodRequest) input() catalog.FoodInput {
	return catalog.FoodInput{Name: r.Name, Description: r.Description, Price: *r.Price}
}

func (s *Server) CreateFood(c *gin.Context) {
	var req foodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	food, err := s.catalog.CreateFood(c.Request.Context(), req.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/foods/%d", food.ID))
	c.JSON(http.StatusCreated, food)
}

func (s *Server) ListFoods(c *gin.Context) {
	foods, err := s.catalog.ListFoods(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, foods)
}

func (s *Server) GetFood(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	food, err := s.catalog.GetFood(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, food)
}

func (s *Server) UpdateFood(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req foodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.catalog.UpdateFood(c.Request.Context(), id, req.input()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) DeactivateFood(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.catalog.DeactivateFood(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
