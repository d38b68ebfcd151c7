package handler

import (
	"github.com/TIANLI0/PopCut/service"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册 API 路由与结果目录的静态访问
func RegisterRoutes(r *gin.Engine, grabCut *GrabCutHandler, bw *BWConverterHandler, store *service.ResultStore) {
	r.Static(service.PublicPrefix, store.Dir())

	api := r.Group("/api/v1")
	{
		api.POST("/grabcut/process", grabCut.Process)
		api.GET("/grabcut/result/:id", grabCut.GetResult)
		api.POST("/grabcut/save", grabCut.Save)

		api.POST("/bw/convert", bw.Convert)
		api.POST("/bw/save", bw.Save)
	}
}
