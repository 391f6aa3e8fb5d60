package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/dematel/internal/history"
	"github.com/OFFIS-RIT/dematel/internal/server/middleware"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
)

func GetHistoryHandler(c echo.Context) error {
	type historyResponse struct {
		SurveyID string          `json:"survey_id"`
		Entries  []history.Entry `json:"entries"`
	}

	surveyID := c.Param("survey_id")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		limit = n
	}

	app := c.(*middleware.AppContext).App
	entries, err := app.History.ListBySurvey(c.Request().Context(), surveyID, limit)
	if err != nil {
		logger.Error("[History] Failed to list submissions", "survey_id", surveyID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	return c.JSON(http.StatusOK, historyResponse{SurveyID: surveyID, Entries: entries})
}
