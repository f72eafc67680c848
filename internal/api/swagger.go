package api

import (
	"github.com/gin-gonic/gin"
	_ "github.com/limjaehoe/elincan/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterSwagger 挂载 Swagger UI 与 doc.json（/swagger/*any），不经过 API Key 校验
func RegisterSwagger(r gin.IRouter) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.DocExpansion("list"),
		ginSwagger.DefaultModelsExpandDepth(-1)))
}
