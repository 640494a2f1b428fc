package galaxy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/eosc4cancer/cbiobridge/pkg/utils/retry"
)

type Workflow struct {
	Id   string `json:"id"`
	Name string `json:"name"`

	// inputs keyed by step index
	Inputs map[string]WorkflowInput `json:"inputs"`
}

type WorkflowInput struct {
	Label string `json:"label"`
	UUID  string `json:"uuid"`
}

// InvocationInput maps a workflow input to a dataset.
type InvocationInput struct {
	Src   string `json:"src"`
	Id    string `json:"id"`
	Label string `json:"label,omitempty"`
	UUID  string `json:"uuid,omitempty"`
}

type Invocation struct {
	Id    string `json:"id"`
	State string `json:"state"`
}

// FindWorkflow returns the first workflow having the name.
//
// When there are no such workflows, it returns ErrNotFound.
func (c *Client) FindWorkflow(ctx context.Context, name string) (Workflow, error) {
	var workflows []Workflow
	if err := c.get(ctx, "/api/workflows", nil, &workflows); err != nil {
		return Workflow{}, err
	}
	for _, w := range workflows {
		if w.Name == name {
			return w, nil
		}
	}
	return Workflow{}, fmt.Errorf("%w: workflow %q", ErrNotFound, name)
}

// ShowWorkflow returns the workflow with its inputs.
func (c *Client) ShowWorkflow(ctx context.Context, workflowId string) (Workflow, error) {
	var w Workflow
	if err := c.get(ctx, "/api/workflows/"+url.PathEscape(workflowId), nil, &w); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

// InputsFor maps every input of the workflow to the dataset.
func InputsFor(w Workflow, dataset Dataset) map[string]InvocationInput {
	inputs := make(map[string]InvocationInput, len(w.Inputs))
	for step, in := range w.Inputs {
		inputs[step] = InvocationInput{Src: "hda", Id: dataset.Id, Label: in.Label, UUID: in.UUID}
	}
	return inputs
}

func (c *Client) InvokeWorkflow(ctx context.Context, workflowId string, inputs map[string]InvocationInput, historyId string) (Invocation, error) {
	body := map[string]any{"inputs": inputs, "history_id": historyId}
	var inv Invocation
	if err := c.post(ctx, "/api/workflows/"+url.PathEscape(workflowId)+"/invocations", body, &inv); err != nil {
		return Invocation{}, err
	}
	return inv, nil
}

// RunTool runs a tool in the history.
func (c *Client) RunTool(ctx context.Context, toolId string, historyId string, inputs map[string]any) error {
	body := map[string]any{"tool_id": toolId, "history_id": historyId, "inputs": inputs}
	return c.post(ctx, "/api/tools", body, nil)
}

// tool importing images from XNAT into Galaxy.
const XNATImporterTool = "xnat_download"

// RunXNATImporter runs XNATImporterTool for DICOM scans of an experiment, except topograms.
func (c *Client) RunXNATImporter(ctx context.Context, historyId, project, subject, experiment string) error {
	c.log.Infof("Running XNAT importer tool with ID: %s (history %s)", XNATImporterTool, historyId)
	return c.RunTool(ctx, XNATImporterTool, historyId, map[string]any{
		"project":    project,
		"subject":    subject,
		"experiment": experiment,
		"resource":   "DICOM",
		"scan":       "^(?!.*Topogram).*",
		"regex":      true,
	})
}

var ErrDatasetNotReady = errors.New("galaxy: dataset is not ready")

const (
	DefaultReadyInterval = 5 * time.Second
	DefaultReadyTries    = 24
)

// WaitDatasetReady polls the history until a dataset with the name gets "ok".
//
// It gives up with ErrDatasetNotReady after tries polls.
func (c *Client) WaitDatasetReady(ctx context.Context, historyId string, name string, interval time.Duration, tries int) (Dataset, error) {
	polled := 0
	// the first poll should not wait.
	first := true
	backoff := retry.StaticBackoff(interval)
	wait := func(ctx context.Context) error {
		if first {
			first = false
			return ctx.Err()
		}
		return backoff(ctx)
	}
	return retry.Blocking(ctx, wait, func() (Dataset, error) {
		polled += 1
		contents, err := c.HistoryContents(ctx, historyId)
		if err != nil {
			return Dataset{}, err
		}
		for _, d := range contents {
			if d.Name == name && d.State == DatasetOk {
				c.log.Infof("File %s is ready", name)
				return d, nil
			}
		}
		if tries <= polled {
			return Dataset{}, fmt.Errorf("%w: %s after %d polls", ErrDatasetNotReady, name, polled)
		}
		return Dataset{}, retry.ErrRetry
	})
}
