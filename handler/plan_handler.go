package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"doc-assistant/types"
)

// PlanService runs a travel request through the planning pipeline.
type PlanService interface {
	CreatePlan(ctx context.Context, request string) (*types.PlanResponse, error)
}

type PlanHandler struct {
	planService PlanService
}

func NewPlanHandler(planService PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
	}
}

func (h *PlanHandler) HandlePlan(c *gin.Context) {
	var req types.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  "error",
			Message: "Invalid request body",
		})
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  "error",
			Message: "Request is required",
		})
		return
	}

	res, err := h.planService.CreatePlan(c.Request.Context(), req.Request)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  "error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: "success",
		Data:   res,
	})
}
