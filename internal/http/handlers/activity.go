package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lasttime-backend/internal/http/response"
	"github.com/yungbote/lasttime-backend/internal/platform/apierr"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
	"github.com/yungbote/lasttime-backend/internal/services"
)

type ActivityHandler struct {
	log        *logger.Logger
	activities services.ActivityService
}

func NewActivityHandler(log *logger.Logger, activities services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		log:        log.With("handler", "ActivityHandler"),
		activities: activities,
	}
}

type upsertActivityRequest struct {
	Activity   string `json:"activity" binding:"required"`
	LastDate   string `json:"last_date" binding:"required"`
	CategoryID *uint  `json:"category_id"`
}

// POST /activity/
func (h *ActivityHandler) UpsertActivity(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req upsertActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	lastDate, err := parseLastDate(req.LastDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.activities.Upsert(c.Request.Context(), userID, services.UpsertActivityInput{
		Activity:   req.Activity,
		LastDate:   lastDate,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		h.fail(c, "UpsertActivity", err)
		return
	}
	response.RespondOK(c, rec)
}

// GET /activity/?skip=&limit=&category_id=
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	in := services.ListActivityInput{Limit: services.DefaultActivityLimit}
	var err error
	if raw := c.Query("skip"); raw != "" {
		if in.Skip, err = strconv.Atoi(raw); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_pagination", errors.New("skip must be an integer"))
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if in.Limit, err = strconv.Atoi(raw); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_pagination", errors.New("limit must be an integer"))
			return
		}
	}
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_category_id", errors.New("category_id must be a positive integer"))
			return
		}
		cid := uint(id)
		in.CategoryID = &cid
	}

	recs, err := h.activities.List(c.Request.Context(), userID, in)
	if err != nil {
		h.fail(c, "ListActivities", err)
		return
	}
	response.RespondOK(c, recs)
}

// GET /activity/:activity
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	rec, err := h.activities.Get(c.Request.Context(), userID, c.Param("activity"))
	if err != nil {
		h.fail(c, "GetActivity", err)
		return
	}
	response.RespondOK(c, rec)
}

// DELETE /activity/:activity
func (h *ActivityHandler) DeleteActivity(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	activity := c.Param("activity")
	if err := h.activities.Delete(c.Request.Context(), userID, activity); err != nil {
		h.fail(c, "DeleteActivity", err)
		return
	}
	response.RespondMessage(c, fmt.Sprintf("Record for '%s' deleted successfully", activity))
}

func (h *ActivityHandler) fail(c *gin.Context, op string, err error) {
	logFailure(h.log, op, err)
	response.RespondAPIError(c, err)
}

// Timestamps without an offset are taken as UTC.
var lastDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseLastDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range lastDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("last_date %q is not an ISO-8601 timestamp", raw)
}

func logFailure(log *logger.Logger, op string, err error) {
	if apierr.From(err).Status >= http.StatusInternalServerError {
		log.Error(op+" failed", "error", err)
		return
	}
	log.Debug(op+" rejected", "error", err)
}
