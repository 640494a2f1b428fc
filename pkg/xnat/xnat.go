// Package xnat looks up labels of projects and experiments in an XNAT imaging repository.
package xnat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
)

// ViewerHost is a part of the host name of viewer URLs pointing to XNAT experiments.
const ViewerHost = "viewer.imaging.datacommons"

var ErrExperimentNotFound = errors.New("xnat: experiment not found")

// APIError is a non-2xx response from XNAT.
type APIError struct {
	URL        string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xnat: GET %s: status %d", e.URL, e.StatusCode)
}

// IsViewerURL tells whether the resource url points to an XNAT experiment.
func IsViewerURL(resource string) bool {
	return strings.Contains(resource, ViewerHost)
}

// ExperimentUID returns the last path element of the viewer URL.
func ExperimentUID(viewerURL string) (string, error) {
	u, err := url.Parse(viewerURL)
	if err != nil {
		return "", xe.Wrap(err)
	}
	return path.Base(u.Path), nil
}

type Client struct {
	base string
	http *http.Client
}

func New(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: strings.TrimSuffix(baseURL, "/"), http: client}
}

type resultSet struct {
	Items []item `json:"items"`
}

type item struct {
	DataFields map[string]any `json:"data_fields"`
	Children   []children     `json:"children"`
}

type children struct {
	Items []item `json:"items"`
}

func (c *Client) get(ctx context.Context, p string) (resultSet, error) {
	endpoint := c.base + p + "?format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return resultSet{}, xe.Wrap(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return resultSet{}, xe.Wrap(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		io.Copy(io.Discard, resp.Body)
		return resultSet{}, &APIError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	var rs resultSet
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return resultSet{}, xe.WrapWithNote("decoding XNAT response", err)
	}
	return rs, nil
}

// ExperimentLabel finds the label of the experiment which the viewer URL points,
// among experiments of the subject.
func (c *Client) ExperimentLabel(ctx context.Context, viewerURL string, project string, subject string) (string, error) {
	uid, err := ExperimentUID(viewerURL)
	if err != nil {
		return "", err
	}
	rs, err := c.get(ctx, "/data/projects/"+url.PathEscape(project)+"/subjects/"+url.PathEscape(subject))
	if err != nil {
		return "", err
	}
	if label, ok := labelOf(rs, uid); ok {
		return label, nil
	}
	return "", fmt.Errorf(
		"%w: UID %s in project %s and subject %s", ErrExperimentNotFound, uid, project, subject,
	)
}

func labelOf(rs resultSet, uid string) (string, bool) {
	if len(rs.Items) == 0 {
		return "", false
	}
	for _, ch := range rs.Items[0].Children {
		for _, it := range ch.Items {
			if v, _ := it.DataFields["UID"].(string); v != uid {
				continue
			}
			label, ok := it.DataFields["label"].(string)
			return label, ok && label != ""
		}
	}
	return "", false
}

var ErrProjectNotFound = errors.New("xnat: project not found")

// ProjectLabel returns the secondary ID of the project.
func (c *Client) ProjectLabel(ctx context.Context, project string) (string, error) {
	rs, err := c.get(ctx, "/data/projects/"+url.PathEscape(project))
	if err != nil {
		return "", err
	}
	if len(rs.Items) == 0 {
		return "", fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	label, _ := rs.Items[0].DataFields["secondary_ID"].(string)
	if label == "" {
		return "", fmt.Errorf("%w: %s has no secondary ID", ErrProjectNotFound, project)
	}
	return label, nil
}
