package visit

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/richxcame/visitorguard/pkg/common"
	"github.com/richxcame/visitorguard/pkg/validation"
)

// Handler handles HTTP requests for visit ingestion
type Handler struct {
	service *Service
}

// NewHandler creates a new visit handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TrackVisit ingests one visit event and returns the risk assessment
func (h *Handler) TrackVisit(c *gin.Context) {
	var event VisitEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			common.ErrorResponse(c, http.StatusBadRequest, validation.NewValidationError(verrs).Error())
			return
		}
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.HandleVisit(c.Request.Context(), &event)
	if err != nil {
		h.respondError(c, err)
		return
	}

	common.SuccessResponse(c, result)
}

// GetVisitor returns a stored visitor profile
func (h *Handler) GetVisitor(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), c.Param("visitor_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if profile == nil {
		common.ErrorResponse(c, http.StatusNotFound, "visitor not found")
		return
	}

	common.SuccessResponse(c, profile)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case common.CodeInvalidPayload:
			common.ErrorResponse(c, http.StatusBadRequest, appErr.Message)
			return
		case common.CodeStoreUnavailable:
			// Cause details stay in the logs; never leak store internals
			common.ErrorResponse(c, http.StatusServiceUnavailable, appErr.Message)
			return
		}
	}
	common.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
}

// RegisterRoutes registers visit routes. Extra middleware (e.g. a request
// timeout) applies to the ingestion route only.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, trackMiddleware ...gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, trackMiddleware...), h.TrackVisit)
	api.POST("/visits", handlers...)
	api.GET("/visitors/:visitor_id", h.GetVisitor)
}
