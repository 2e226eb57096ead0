package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, functionHandler *FunctionHandler) {
	server.POST("/api/v1/imports/chats/run", importHandler.RunImport)
	server.GET("/api/v1/imports/chats/progress", importHandler.GetProgress)
	server.POST("/api/v1/functions/:name", functionHandler.Invoke)
}
