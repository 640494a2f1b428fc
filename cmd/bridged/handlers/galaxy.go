package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/eosc4cancer/cbiobridge/pkg/api/types/bridge"
	"github.com/eosc4cancer/cbiobridge/pkg/galaxy"
	"github.com/eosc4cancer/cbiobridge/pkg/xnat"
	"github.com/labstack/echo/v4"
)

const received = "Data received successfully"

// GalaxySession is a connection to Galaxy for a token.
type GalaxySession interface {
	GetOrCreateHistory(ctx context.Context, name string) (galaxy.History, error)
	UploadString(ctx context.Context, historyId string, content string, fileName string) (galaxy.Upload, error)
	RunXNATImporter(ctx context.Context, historyId, project, subject, experiment string) error
	WaitDatasetReady(ctx context.Context, historyId string, name string, interval time.Duration, tries int) (galaxy.Dataset, error)
	FindWorkflow(ctx context.Context, name string) (galaxy.Workflow, error)
	ShowWorkflow(ctx context.Context, workflowId string) (galaxy.Workflow, error)
	InvokeWorkflow(ctx context.Context, workflowId string, inputs map[string]galaxy.InvocationInput, historyId string) (galaxy.Invocation, error)
}

var _ GalaxySession = &galaxy.Client{}

// XNAT resolves labels of imaging experiments.
type XNAT interface {
	ExperimentLabel(ctx context.Context, viewerURL string, project string, subject string) (string, error)
	ProjectLabel(ctx context.Context, project string) (string, error)
}

var _ XNAT = &xnat.Client{}

// Galaxy is what handlers exporting to Galaxy depend on.
type Galaxy struct {
	// Connect establishes a session with the token given by the request.
	Connect func(ctx context.Context, token string) (GalaxySession, error)

	// optional. without this, viewer URLs of XNAT are uploaded as plain URLs.
	XNAT XNAT

	WorkflowName  string
	ReadyInterval time.Duration
	ReadyTries    int

	// clock for naming uploads. nil means time.Now.
	Now func() time.Time
}

func (g *Galaxy) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// open connects Galaxy and gets the history of the request.
func (g *Galaxy) open(c echo.Context, req bridge.GalaxyExport) (GalaxySession, galaxy.History, error) {
	ctx := c.Request().Context()
	session, err := g.Connect(ctx, req.GalaxyToken)
	if err != nil {
		return nil, galaxy.History{}, err
	}
	c.Logger().Info("Created GalaxyInstance successfully")

	history, err := session.GetOrCreateHistory(ctx, req.GalaxyHistoryName)
	if err != nil {
		return nil, galaxy.History{}, err
	}
	c.Logger().Infof("Working with history ID: %s", history.Id)
	return session, history, nil
}

func (g *Galaxy) upload(c echo.Context, session GalaxySession, history galaxy.History, req bridge.GalaxyExport, content string) (galaxy.Dataset, error) {
	name := galaxy.FileName(g.now(), req.StudyId, req.CaseId, galaxy.DefaultFileSuffix)
	up, err := session.UploadString(c.Request().Context(), history.Id, content, name)
	if err != nil {
		return galaxy.Dataset{}, err
	}
	return up.Output()
}

// exportResource sends a URL to Galaxy.
//
// Viewer URLs of XNAT experiments are imported by the XNAT importer tool of Galaxy.
// Other URLs are uploaded as text.
func (g *Galaxy) exportResource(c echo.Context, session GalaxySession, history galaxy.History, req bridge.GalaxyExport) error {
	ctx := c.Request().Context()
	if g.XNAT == nil || !xnat.IsViewerURL(req.Data) {
		_, err := g.upload(c, session, history, req, req.Data+"\n")
		return err
	}

	experiment, err := g.XNAT.ExperimentLabel(ctx, req.Data, req.StudyId, req.CaseId)
	if err != nil {
		return err
	}
	project, err := g.XNAT.ProjectLabel(ctx, req.StudyId)
	if err != nil {
		return err
	}
	return session.RunXNATImporter(ctx, history.Id, project, req.CaseId, experiment)
}

// ExportToGalaxyHandler uploads data of the request into a Galaxy history.
//
// g can be nil; then it responds 501.
func ExportToGalaxyHandler(g *Galaxy, v *bridge.Validator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if g == nil {
			return notConfigured("Galaxy")
		}
		req := bridge.GalaxyExport{}
		if err := decode(c, v, bridge.SchemaGalaxy, &req); err != nil {
			return err
		}

		session, history, err := g.open(c, req)
		if err != nil {
			return httpError(err)
		}

		if strings.HasPrefix(req.Data, "http") {
			err = g.exportResource(c, session, history, req)
		} else {
			_, err = g.upload(c, session, history, req, galaxy.NormalizeHeader(req.Data))
		}
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, bridge.Message{Message: received})
	}
}

// GalaxyWorkflowHandler uploads data of the request, and invokes the configured workflow
// with every input mapped to the upload.
func GalaxyWorkflowHandler(g *Galaxy, v *bridge.Validator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if g == nil || g.WorkflowName == "" {
			return notConfigured("Galaxy workflow")
		}
		req := bridge.GalaxyExport{}
		if err := decode(c, v, bridge.SchemaGalaxy, &req); err != nil {
			return err
		}
		ctx := c.Request().Context()

		session, history, err := g.open(c, req)
		if err != nil {
			return httpError(err)
		}
		uploaded, err := g.upload(c, session, history, req, galaxy.NormalizeHeader(req.Data))
		if err != nil {
			return httpError(err)
		}

		found, err := session.FindWorkflow(ctx, g.WorkflowName)
		if err != nil {
			return httpError(err)
		}
		if _, err := session.WaitDatasetReady(ctx, history.Id, uploaded.Name, g.ReadyInterval, g.ReadyTries); err != nil {
			return httpError(err)
		}
		workflow, err := session.ShowWorkflow(ctx, found.Id)
		if err != nil {
			return httpError(err)
		}
		inv, err := session.InvokeWorkflow(ctx, workflow.Id, galaxy.InputsFor(workflow, uploaded), history.Id)
		if err != nil {
			return httpError(err)
		}
		c.Logger().Infof("Invoked workflow %s: invocation %s", workflow.Id, inv.Id)

		return c.JSON(http.StatusOK, bridge.Message{Message: received})
	}
}
