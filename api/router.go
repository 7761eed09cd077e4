package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterBalanceRoutes wires the public and authenticated endpoints.
func RegisterBalanceRoutes(router *gin.Engine, handler *BalanceHandler, authToken string) {
	router.GET("/", handler.RootHandler)
	router.GET("/health", handler.HealthHandler)

	authorized := router.Group("/api", BearerAuth(authToken))
	{
		authorized.GET("/balances", handler.AllBalancesHandler)
		authorized.GET("/balances/summary", handler.SummaryHandler)
		authorized.GET("/dex/balances", handler.DexBalancesHandler)
	}
}

// RegisterSwaggerRoutes serves the static OpenAPI document and the Swagger UI.
func RegisterSwaggerRoutes(router *gin.Engine, path string) {
	router.StaticFile("/docs/swagger.yaml", "docs/swagger.yaml")
	router.GET(path+"/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL("/docs/swagger.yaml")))
}
