package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lasttime-backend/internal/http/response"
	"github.com/yungbote/lasttime-backend/internal/platform/ctxutil"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
	"github.com/yungbote/lasttime-backend/internal/services"
)

type CategoryHandler struct {
	log        *logger.Logger
	categories services.CategoryService
}

func NewCategoryHandler(log *logger.Logger, categories services.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		log:        log.With("handler", "CategoryHandler"),
		categories: categories,
	}
}

type createCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// POST /categories/
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		h.fail(c, "CreateCategory", err)
		return
	}
	response.RespondOK(c, cat)
}

// GET /categories/
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	cats, err := h.categories.List(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "ListCategories", err)
		return
	}
	response.RespondOK(c, cats)
}

// DELETE /categories/:category_id
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("category_id"), 10, 64)
	if err != nil || id == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_category_id", errors.New("category_id must be a positive integer"))
		return
	}
	if err := h.categories.Delete(c.Request.Context(), userID, uint(id)); err != nil {
		h.fail(c, "DeleteCategory", err)
		return
	}
	response.RespondMessage(c, "Category deleted successfully")
}

func (h *CategoryHandler) fail(c *gin.Context, op string, err error) {
	logFailure(h.log, op, err)
	response.RespondAPIError(c, err)
}

func requireUserID(c *gin.Context) (string, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
		return "", false
	}
	return rd.UserID, true
}
