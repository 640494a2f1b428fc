package main

import (
	"github.com/eosc4cancer/cbiobridge/cmd/bridged/handlers"
	"github.com/eosc4cancer/cbiobridge/pkg/api/types/bridge"
	kdb "github.com/eosc4cancer/cbiobridge/pkg/db"
	"github.com/eosc4cancer/cbiobridge/pkg/metrics"
	"github.com/eosc4cancer/cbiobridge/pkg/utils/echoutil"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies of the bridge server.
type Dependencies struct {
	Portal    *handlers.Portal
	Validator *bridge.Validator

	// optional. nil makes each of them respond 501.
	Jobs   kdb.ImportJobInterface
	Galaxy *handlers.Galaxy
	Images *handlers.Images

	Metrics *metrics.Metrics
}

func BuildServer(deps Dependencies, loglevel string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	echoutil.SetLevel(e, loglevel)
	e.HTTPErrorHandler = echoutil.ErrorHandler(e)

	e.Pre(middleware.AddTrailingSlash())
	e.Use(middleware.CORS())
	e.Use(echoutil.LogHandlerFunc)

	{
		exportResource := handlers.ExportResourceHandler(deps.Portal, deps.Validator)
		e.POST("/export-timeline-to-cbioportal/", handlers.ExportTimelineHandler(deps.Portal, deps.Validator))
		e.POST("/export-ressource-to-cbioportal/", exportResource)
		e.POST("/export-resource-to-cbioportal/", exportResource)
		e.POST("/studies/:studyId/import/", handlers.ImportStudyHandler(deps.Portal, deps.Validator, "studyId"))
		e.DELETE("/cbioportal/cache/", handlers.ClearCacheHandler(deps.Portal.Cache))
	}

	{
		e.GET("/jobs/", handlers.ListJobsHandler(deps.Jobs))
		e.GET("/jobs/:jobId/", handlers.GetJobHandler(deps.Jobs, "jobId"))
	}

	{
		e.POST("/export-to-galaxy/", handlers.ExportToGalaxyHandler(deps.Galaxy, deps.Validator))
		e.POST("/galaxy-workflow/", handlers.GalaxyWorkflowHandler(deps.Galaxy, deps.Validator))
	}

	{
		e.POST("/upload-image/", handlers.UploadImageHandler(deps.Images))
		e.GET("/images/:name/", handlers.GetImageHandler(deps.Images, "name"))
		e.DELETE("/images/:name/", handlers.DeleteImageHandler(deps.Images, "name"))
	}

	e.GET("/metrics/", echo.WrapHandler(deps.Metrics.Handler()))

	return e
}
