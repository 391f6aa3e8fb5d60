package middleware

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/dematel/internal/history"
	"github.com/OFFIS-RIT/dematel/pkg/transport"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// HistoryStore is the submission log used by the handlers.
type HistoryStore interface {
	Append(ctx context.Context, surveyID, sheet, payload string, receivedAt time.Time) (history.Entry, error)
	ListBySurvey(ctx context.Context, surveyID string, limit int) ([]history.Entry, error)
}

// ReportQueue hands rebuild requests to the worker.
type ReportQueue interface {
	PublishFIFO(queueName string, data []byte) error
}

// ReportArchive serves and removes the stored workbooks.
type ReportArchive interface {
	DownloadLink(ctx context.Context, key string) (string, error)
	DeleteSheet(ctx context.Context, sheet string) error
}

type App struct {
	History   HistoryStore
	Queue     ReportQueue
	Archive   ReportArchive
	Unpacker  *transport.Unpacker
	Keyfunc   jwt.Keyfunc
	SharedKey string
	Location  *time.Location
	Now       func() time.Time

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware exposes app to every handler through *AppContext.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	if app.Now == nil {
		app.Now = time.Now
	}
	if app.Unpacker == nil {
		app.Unpacker = transport.NewUnpacker()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app, nil})
		}
	}
}
