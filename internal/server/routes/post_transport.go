package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/dematel/internal/server/middleware"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
	"github.com/OFFIS-RIT/dematel/pkg/transport"
	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// DecodeTransportHandler reassembles a scanned segment set and submits the record
// it carries. The decoded record is echoed back on success.
func DecodeTransportHandler(c echo.Context) error {
	type decodeRequest struct {
		Segments []transport.Segment `json:"segments" validate:"required,min=1"`
		Key      string              `json:"key"`
	}

	var req decodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, failed("Invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, failed(err.Error()))
	}

	app := c.(*middleware.AppContext).App
	record, err := app.Unpacker.Unpack(req.Segments)
	if err != nil {
		logger.Warn("[Transport] Rejected segment set", "segments", len(req.Segments), "err", err)
		return c.JSON(http.StatusUnprocessableEntity, failed(err.Error()))
	}

	payload := record.Tree()
	resp, status := submit(c, payload, req.Key)
	if status == http.StatusOK {
		if text, err := tree.Marshal(payload); err == nil {
			resp.Record = text
		}
	}
	return c.JSON(status, resp)
}
