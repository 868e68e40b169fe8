package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/legalhub/backend-go/app/bootstrap"
	"github.com/legalhub/backend-go/app/controllers"
)

// Init registers all routes. Must be called after bootstrap.Init.
func Init(app *bootstrap.App) {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")

	documentController := controllers.NewDocumentController(app.DocumentService)
	web.Router("/api/documents/upload", documentController, "post:Upload")
	web.Router("/api/documents", documentController, "get:List")
	web.Router("/api/documents/:fingerprint/status", documentController, "get:Status")
	web.Router("/api/documents/:fingerprint", documentController, "delete:Delete")

	answerController := controllers.NewAnswerController(app.AnswerService)
	web.Router("/api/qa", answerController, "post:QA")
	web.Router("/api/summarize", answerController, "post:Summarize")
	web.Router("/api/simplify", answerController, "post:Simplify")
	web.Router("/api/compare", answerController, "post:Compare")
	web.Router("/api/highlight", answerController, "post:Highlight")
	web.Router("/api/history", answerController, "get:History")

	feedbackController := controllers.NewFeedbackController(app.FeedbackService)
	web.Router("/api/feedback", feedbackController, "post:Submit")
	web.Router("/api/retrain", feedbackController, "post:TriggerRetrain")
	web.Router("/api/retrain/status", feedbackController, "get:RetrainStatus")

	// 游客接口：不要求身份，仅限guest_文档
	web.Router("/api/guest/upload", documentController, "post:GuestUpload")
	web.Router("/api/guest/status/:fingerprint", documentController, "get:GuestStatus")
	web.Router("/api/guest/qa", answerController, "post:GuestQA")
	web.Router("/api/guest/summarize", answerController, "post:GuestSummarize")
}
