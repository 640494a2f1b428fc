package galaxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const DefaultFileSuffix = "data.txt"

// FileName names an uploaded dataset as "<yyyymmddThhmm>_<study>_<case>_<suffix>".
//
// When caseId is empty, it is omitted. When suffix is empty, DefaultFileSuffix is used.
func FileName(now time.Time, studyId, caseId, suffix string) string {
	if suffix == "" {
		suffix = DefaultFileSuffix
	}
	stamp := now.Format("20060102T1504")
	if caseId == "" {
		return fmt.Sprintf("%s_%s_%s", stamp, studyId, suffix)
	}
	return fmt.Sprintf("%s_%s_%s_%s", stamp, studyId, caseId, suffix)
}

// NormalizeHeader lowercases the first line and replaces spaces in it with "_".
//
// The rest of data is kept as is.
func NormalizeHeader(data string) string {
	header, body, found := strings.Cut(data, "\n")
	header = strings.ToLower(strings.ReplaceAll(header, " ", "_"))
	if !found {
		return header
	}
	return header + "\n" + body
}

// Upload is the result of UploadString.
type Upload struct {
	Outputs []Dataset `json:"outputs"`
}

var ErrNoOutput = errors.New("galaxy: upload has no output")

// Output returns the first dataset created by the upload.
func (u Upload) Output() (Dataset, error) {
	if len(u.Outputs) == 0 {
		return Dataset{}, ErrNoOutput
	}
	return u.Outputs[0], nil
}

type fetchElement struct {
	Src          string `json:"src"`
	PasteContent string `json:"paste_content"`
	Name         string `json:"name"`
	Ext          string `json:"ext"`
}

type fetchDestination struct {
	Type string `json:"type"`
}

type fetchTarget struct {
	Destination fetchDestination `json:"destination"`
	Elements    []fetchElement   `json:"elements"`
}

type fetchRequest struct {
	HistoryId string        `json:"history_id"`
	Targets   []fetchTarget `json:"targets"`
}

// UploadString creates a dataset in the history with content.
func (c *Client) UploadString(ctx context.Context, historyId string, content string, fileName string) (Upload, error) {
	req := fetchRequest{
		HistoryId: historyId,
		Targets: []fetchTarget{{
			Destination: fetchDestination{Type: "hdas"},
			Elements: []fetchElement{{
				Src: "pasted", PasteContent: content, Name: fileName, Ext: "auto",
			}},
		}},
	}
	var up Upload
	if err := c.post(ctx, "/api/tools/fetch", req, &up); err != nil {
		return Upload{}, err
	}
	if out, err := up.Output(); err == nil {
		c.log.Infof("Uploaded: %s, ID: %s", out.Name, out.Id)
	}
	return up, nil
}
