package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	app "github.com/edcrm/chat-import/internal/application/chat"
)

type ImportHandler struct {
	runImport   app.RunImportBatch
	getProgress app.GetImportProgress
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type runImportResponse struct {
	Skipped          bool  `json:"skipped"`
	Completed        bool  `json:"completed"`
	ClientsProcessed int64 `json:"clients_processed"`
	MessagesImported int64 `json:"messages_imported"`
	NextOffset       int64 `json:"next_offset"`
}

func NewImportHandler(runImport app.RunImportBatch, getProgress app.GetImportProgress) *ImportHandler {
	return &ImportHandler{runImport: runImport, getProgress: getProgress}
}

// RunImport executes one batch synchronously. Lock contention comes back as a
// 200 with skipped=true: another run in progress is expected, not an error.
func (h *ImportHandler) RunImport(c echo.Context) error {
	summary, err := h.runImport.Execute(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "import_failed",
			Message: err.Error(),
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Success: true, Data: runImportResponse{
		Skipped:          summary.Skipped,
		Completed:        summary.Completed,
		ClientsProcessed: summary.ClientsProcessed,
		MessagesImported: summary.MessagesImported,
		NextOffset:       summary.NextOffset,
	}})
}

func (h *ImportHandler) GetProgress(c echo.Context) error {
	out, err := h.getProgress.Execute(c.Request().Context())
	if err != nil {
		if errors.Is(err, app.ErrProgressNotFound) {
			return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
				Code:    "not_found",
				Message: "no import has run yet",
			}})
		}
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to load import progress",
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Success: true, Data: out})
}
