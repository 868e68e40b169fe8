package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/legalhub/backend-go/app/bootstrap"
	"github.com/legalhub/backend-go/app/router"
	"github.com/legalhub/backend-go/internal/config"
	"github.com/legalhub/backend-go/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()
	bootstrap.SetGlobalApp(app)

	router.Init(app)

	web.BConfig.AppName = "Legal Document Service"
	web.BConfig.CopyRequestBody = true
	if port, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("🚀 Starting Legal Document Service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
