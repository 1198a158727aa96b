// README: HTTP router registration for the drive admin API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskdrive/internal/http/handlers"
	"taskdrive/internal/http/middleware"
	"taskdrive/internal/logger"
	"taskdrive/internal/modules/drive"
	"taskdrive/internal/modules/driveconfig"
	"taskdrive/internal/modules/product"
)

type RouterDeps struct {
	Configs  *driveconfig.Service
	Drive    *drive.Service
	Products *product.Store
	Log      *logger.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(deps.Log),
		middleware.Logging(deps.Log),
		middleware.Metrics(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/admin/drive-management")

	configHandler := handlers.NewConfigHandler(deps.Configs, deps.Products)
	api.POST("/configurations", configHandler.Create)
	api.GET("/configurations", configHandler.List)
	api.GET("/configurations/:id", configHandler.Get)
	api.PUT("/configurations/:id", configHandler.Update)
	api.DELETE("/configurations/:id", configHandler.Delete)
	api.GET("/configurations/:id/products", configHandler.Products)

	taskSetHandler := handlers.NewTaskSetHandler(deps.Configs)
	api.POST("/tasksets", taskSetHandler.Create)
	api.GET("/tasksets/:id", taskSetHandler.Get)
	api.DELETE("/tasksets/:id", taskSetHandler.Delete)
	api.GET("/configurations/:id/tasksets", taskSetHandler.ListForConfiguration)
	api.POST("/taskset-products", taskSetHandler.AddProduct)
	api.DELETE("/taskset-products/:id", taskSetHandler.RemoveProduct)

	userDriveHandler := handlers.NewUserDriveHandler(deps.Drive)
	api.POST("/users/:userId/drive/assign", userDriveHandler.Assign)
	api.PUT("/users/:userId/assign-drive-config", userDriveHandler.AssignConfiguration)
	api.POST("/users/:userId/assign-tier-based-drive", userDriveHandler.AssignTierBased)
	api.GET("/users/:userId/drive/active-items", userDriveHandler.ActiveItems)
	api.GET("/users/:userId/drive-progress", userDriveHandler.Progress)
	api.PUT("/users/:userId/drive/status", userDriveHandler.UpdateStatus)

	comboHandler := handlers.NewComboHandler(deps.Drive)
	api.POST("/combos/add-after-task", comboHandler.AddAfterTask)
	api.PUT("/active-items/:itemId/add-combo", comboHandler.AddToItemSlot)

	productHandler := handlers.NewProductHandler(deps.Products)
	api.GET("/products", productHandler.ListActive)
	api.POST("/products", productHandler.Create)
	api.GET("/tier-configs", productHandler.ListTierQuantities)
	api.PUT("/tier-configs", productHandler.UpdateTierQuantities)

	return r
}
