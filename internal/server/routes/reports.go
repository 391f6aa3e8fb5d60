package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/dematel/internal/server/middleware"
	"github.com/OFFIS-RIT/dematel/internal/storage"
	"github.com/OFFIS-RIT/dematel/internal/util"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
)

func GetReportHandler(c echo.Context) error {
	type reportResponse struct {
		Sheet string `json:"sheet"`
		URL   string `json:"url"`
	}

	app := c.(*middleware.AppContext).App
	sheet := util.SanitizeSheetName(c.Param("survey_id"), app.Now())

	link, err := app.Archive.DownloadLink(c.Request().Context(), storage.WorkbookKey(sheet))
	if err != nil {
		logger.Error("[Report] Failed to sign download link", "sheet", sheet, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, reportResponse{Sheet: sheet, URL: link})
}

func DeleteReportHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	sheet := util.SanitizeSheetName(c.Param("survey_id"), app.Now())

	if err := app.Archive.DeleteSheet(c.Request().Context(), sheet); err != nil {
		logger.Error("[Report] Failed to delete report", "sheet", sheet, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	logger.Info("[Report] Deleted report", "sheet", sheet)
	return c.NoContent(http.StatusNoContent)
}
