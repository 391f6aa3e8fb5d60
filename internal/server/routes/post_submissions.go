package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/dematel/internal/queue"
	"github.com/OFFIS-RIT/dematel/internal/server/middleware"
	"github.com/OFFIS-RIT/dematel/internal/util"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
	"github.com/OFFIS-RIT/dematel/pkg/report"
	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// Version is reported with every submission response.
const Version = "v1"

type submitResponse struct {
	OK        bool            `json:"ok"`
	Version   string          `json:"version"`
	Sheet     string          `json:"sheet,omitempty"`
	History   string          `json:"history,omitempty"`
	HistoryID int64           `json:"history_id,omitempty"`
	Record    json.RawMessage `json:"record,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func failed(msg string) submitResponse {
	return submitResponse{OK: false, Version: Version, Error: msg}
}

// SubmitHandler accepts one survey payload as a JSON object sent as text/plain or
// application/json, logs it and schedules a rebuild of its workbook.
func SubmitHandler(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMETextPlain) && !strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		return c.JSON(http.StatusUnsupportedMediaType, failed("Unsupported Media Type"))
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, failed("Bad Request"))
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return c.JSON(http.StatusBadRequest, failed("Empty body"))
	}

	parsed, err := tree.Parse(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, failed("Invalid JSON syntax"))
	}
	payload, ok := parsed.(*tree.Object)
	if !ok {
		return c.JSON(http.StatusBadRequest, failed("Invalid JSON: must be an object"))
	}

	key, _ := payload.Get("key")
	resp, status := submit(c, payload, report.CellText(key))
	return c.JSON(status, resp)
}

// submit stores payload in the history log and queues the report rebuild.
func submit(c echo.Context, payload *tree.Object, key string) (submitResponse, int) {
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if app.SharedKey != "" && key != app.SharedKey {
		return failed("Unauthorized"), http.StatusUnauthorized
	}

	surveyValue, _ := payload.Get("surveyId")
	surveyID := strings.TrimSpace(report.CellText(surveyValue))
	if surveyID == "" {
		return failed("Missing field: surveyId"), http.StatusBadRequest
	}

	now := app.Now()
	sheet := util.SanitizeSheetName(surveyID, now)

	row, err := report.NewHistoryRow(surveyID, payload, now)
	if err != nil {
		return failed(err.Error()), http.StatusBadRequest
	}

	entry, err := app.History.Append(ctx, row.SurveyID, sheet, row.JSON, row.Timestamp)
	if err != nil {
		logger.Error("[Survey] Failed to store submission", "survey_id", surveyID, "err", err)
		return failed("Failed to store submission"), http.StatusInternalServerError
	}

	msg, err := json.Marshal(queue.ReportMsg{
		HistoryID: entry.ID,
		SurveyID:  surveyID,
		Sheet:     sheet,
	})
	if err != nil {
		return failed("Failed to schedule report"), http.StatusInternalServerError
	}
	if err := app.Queue.PublishFIFO(queue.ReportQueue, msg); err != nil {
		logger.Error("[Survey] Failed to queue report", "survey_id", surveyID, "history_id", entry.ID, "err", err)
		return failed("Failed to schedule report"), http.StatusInternalServerError
	}

	logger.Info("[Survey] Submission received", "survey_id", surveyID, "sheet", sheet, "history_id", entry.ID)
	return submitResponse{
		OK:        true,
		Version:   Version,
		Sheet:     sheet,
		History:   report.HistorySheet,
		HistoryID: entry.ID,
	}, http.StatusOK
}
