package echo

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/edcrm/chat-import/internal/httpx"
)

// FunctionHandler proxies calls to first-party serverless endpoints through
// the dual-backend failover client. The caller's bearer token is forwarded to
// the secondary backend only; the primary has its own API key.
type FunctionHandler struct {
	client *httpx.FailoverClient
}

type functionResponse struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Source string          `json:"source"`
}

func NewFunctionHandler(client *httpx.FailoverClient) *FunctionHandler {
	return &FunctionHandler{client: client}
}

func (h *FunctionHandler) Invoke(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "function name is required",
		}})
	}

	var body any
	if raw, err := io.ReadAll(c.Request().Body); err == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
				Code:    "bad_request",
				Message: "body must be valid JSON",
			}})
		}
	}

	resp := h.client.Call(c.Request().Context(), name, body, bearerToken(c))
	if !resp.Success {
		status := resp.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		return c.JSON(status, apiResponse{Error: &errorBody{
			Code:    "function_failed",
			Message: resp.Error,
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Success: true, Data: functionResponse{
		Data:   resp.Data,
		Source: string(resp.Source),
	}})
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
