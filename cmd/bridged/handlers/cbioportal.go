package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/eosc4cancer/cbiobridge/pkg/api/types/bridge"
	apierr "github.com/eosc4cancer/cbiobridge/pkg/api/types/errors"
	"github.com/eosc4cancer/cbiobridge/pkg/cache"
	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
	"github.com/eosc4cancer/cbiobridge/pkg/importer"
	"github.com/eosc4cancer/cbiobridge/pkg/study"
	"github.com/eosc4cancer/cbiobridge/pkg/tabular"
	"github.com/labstack/echo/v4"
)

const exported = "Data successfully exported to cBioPortal."

// Importer runs the cBioPortal importer.
type Importer interface {
	Import(context.Context, importer.Request) (importer.Outcome, error)
}

var _ Importer = &importer.Importer{}

// MergeObserver is notified of each merge.
type MergeObserver interface {
	ObserveMerge(tabular.Variant, tabular.Report)
}

type nopMergeObserver struct{}

func (nopMergeObserver) ObserveMerge(tabular.Variant, tabular.Report) {}

// Portal is what handlers writing into cBioPortal studies depend on.
type Portal struct {
	StudyRoot string
	PortalURL string
	Importer  Importer
	Cache     cache.Invalidator
	Locker    *study.Locker

	// optional
	Observer MergeObserver
}

func (p *Portal) observer() MergeObserver {
	if p.Observer == nil {
		return nopMergeObserver{}
	}
	return p.Observer
}

var errInvalidName = errors.New("invalid name")

func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", errInvalidName, name)
	}
	return nil
}

// staged is a merged table waiting to be written.
type staged struct {
	dataPath string
	data     *tabular.RecordSet
	metaPath string
	meta     string
}

func (p *Portal) merge(c echo.Context, variant tabular.Variant, newData string, dataPath string) (*tabular.RecordSet, error) {
	key, err := variant.Key()
	if err != nil {
		return nil, err
	}
	rs, rep, err := tabular.NewMerger(c.Logger()).MergeFile(newData, dataPath, key)
	if err != nil {
		return nil, err
	}
	p.observer().ObserveMerge(variant, rep)
	c.Logger().Debugf(
		"merged %s: %d existing, %d replaced, %d incoming, %d duplicates, discarded = %v",
		dataPath, rep.Existing, rep.Replaced, rep.Incoming, rep.Duplicates, rep.Discarded,
	)
	return rs, nil
}

func write(dir string, files ...staged) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xe.Wrap(err)
	}
	for _, f := range files {
		if err := tabular.WriteFileAtomic(f.dataPath, f.data); err != nil {
			return xe.Wrap(err)
		}
		if err := tabular.WriteTextAtomic(f.metaPath, f.meta); err != nil {
			return xe.Wrap(err)
		}
	}
	return nil
}

// importAndClear imports the study directory, then clears the cache of cBioPortal.
func (p *Portal) importAndClear(c echo.Context, studyId string, dir string, mode importer.Mode) (importer.Outcome, string, error) {
	ctx := c.Request().Context()
	out, err := p.Importer.Import(ctx, importer.Request{
		StudyId: studyId, Directory: dir, PortalURL: p.PortalURL, Mode: mode,
	})
	if err != nil {
		return importer.Outcome{}, "", err
	}
	c.Logger().Debugf("Load message: %s", out.Stdout)

	cleared, err := p.Cache.Clear(ctx)
	if err != nil {
		return out, "", err
	}
	c.Logger().Debugf("Clear cache message: %s", cleared)
	return out, cleared, nil
}

// ExportTimelineHandler merges a timeline of a case into the incremental import directory
// of the study, and imports it incrementally.
func ExportTimelineHandler(p *Portal, v *bridge.Validator) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := bridge.TimelineExport{}
		if err := decode(c, v, bridge.SchemaTimeline, &req); err != nil {
			return err
		}
		if err := validName(req.Suffix); err != nil {
			return httpError(err)
		}
		dir, err := study.IncrementalDir(p.StudyRoot, req.StudyId)
		if err != nil {
			return httpError(err)
		}

		unlock := p.Locker.Lock(dir)
		defer unlock()

		timeline := staged{
			dataPath: filepath.Join(dir, fmt.Sprintf("data_timeline_%s.txt", req.Suffix)),
			metaPath: filepath.Join(dir, fmt.Sprintf("meta_timeline_%s.txt", req.Suffix)),
			meta:     req.MetaContent,
		}
		if timeline.data, err = p.merge(c, tabular.VariantTimeline, req.DataContent, timeline.dataPath); err != nil {
			return httpError(err)
		}
		if err := write(dir, timeline); err != nil {
			return httpError(err)
		}

		if _, _, err := p.importAndClear(c, req.StudyId, dir, importer.Incremental); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, bridge.Message{Message: exported})
	}
}

// ExportResourceHandler merges resource definitions and resources of patients
// into the study directory, and imports the whole study.
func ExportResourceHandler(p *Portal, v *bridge.Validator) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := bridge.ResourceExport{}
		if err := decode(c, v, bridge.SchemaResource, &req); err != nil {
			return err
		}
		dir, err := study.Resolve(req.StudyId, p.StudyRoot)
		if err != nil {
			return httpError(err)
		}

		unlock := p.Locker.Lock(dir)
		defer unlock()

		definition := staged{
			dataPath: filepath.Join(dir, "data_resource_definition.txt"),
			metaPath: filepath.Join(dir, "meta_resource_definition.txt"),
			meta:     req.MetaDefinitionContent,
		}
		patient := staged{
			dataPath: filepath.Join(dir, "data_resource_patient.txt"),
			metaPath: filepath.Join(dir, "meta_resource_patient.txt"),
			meta:     req.MetaPatientContent,
		}
		if definition.data, err = p.merge(c, tabular.VariantResourceDefinition, req.DataDefinitionContent, definition.dataPath); err != nil {
			return httpError(err)
		}
		if patient.data, err = p.merge(c, tabular.VariantResourcePatient, req.DataPatientContent, patient.dataPath); err != nil {
			return httpError(err)
		}
		if err := write(dir, definition, patient); err != nil {
			return httpError(err)
		}

		if _, _, err := p.importAndClear(c, req.StudyId, dir, importer.Full); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, bridge.Message{Message: exported})
	}
}

// ImportStudyHandler reruns the importer for a study, without submitting data.
//
// Full import uses the study directory, and incremental import uses
// the incremental import directory of the study.
func ImportStudyHandler(p *Portal, v *bridge.Validator, studyIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		studyId := c.Param(studyIdParam)
		if err := study.ValidateID(studyId); err != nil {
			return httpError(err)
		}

		req := bridge.ImportRequest{}
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return apierr.BadRequest("request body can not be read.", err)
		}
		if len(bytes.TrimSpace(body)) != 0 {
			if err := v.Decode(bridge.SchemaImport, body, &req); err != nil {
				return httpError(err)
			}
		}
		mode := importer.Full
		if req.Mode != "" {
			m, err := importer.AsMode(req.Mode)
			if err != nil {
				return apierr.BadRequest(`mode should be "full" or "incremental".`, err)
			}
			mode = m
		}

		var dir string
		if mode == importer.Incremental {
			dir, err = study.IncrementalDir(p.StudyRoot, studyId)
			if err == nil {
				if _, serr := os.Stat(dir); errors.Is(serr, os.ErrNotExist) {
					err = &study.StudyNotFoundError{StudyID: studyId, Root: p.StudyRoot}
				}
			}
		} else {
			dir, err = study.Resolve(studyId, p.StudyRoot)
		}
		if err != nil {
			return httpError(err)
		}

		unlock := p.Locker.Lock(dir)
		defer unlock()

		out, cleared, err := p.importAndClear(c, studyId, dir, mode)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, bridge.ImportResult{
			Message: fmt.Sprintf("%s import of %s finished. cache cleared: %s", mode, studyId, cleared),
			JobId:   out.JobId,
			Output:  out.Stdout,
		})
	}
}

// ClearCacheHandler clears the cache of cBioPortal.
func ClearCacheHandler(inv cache.Invalidator) echo.HandlerFunc {
	return func(c echo.Context) error {
		out, err := inv.Clear(c.Request().Context())
		if err != nil {
			return httpError(err)
		}
		c.Logger().Infof("Cache cleared: %s", out)
		return c.JSON(http.StatusOK, bridge.CacheResult{Message: "Cache cleared.", Output: out})
	}
}
