package handlers

import (
	"errors"
	"io"

	"github.com/eosc4cancer/cbiobridge/pkg/api/types/bridge"
	apierr "github.com/eosc4cancer/cbiobridge/pkg/api/types/errors"
	"github.com/eosc4cancer/cbiobridge/pkg/cache"
	"github.com/eosc4cancer/cbiobridge/pkg/galaxy"
	"github.com/eosc4cancer/cbiobridge/pkg/importer"
	"github.com/eosc4cancer/cbiobridge/pkg/study"
	"github.com/eosc4cancer/cbiobridge/pkg/tabular"
	"github.com/eosc4cancer/cbiobridge/pkg/utils/retry"
	"github.com/eosc4cancer/cbiobridge/pkg/xnat"
	"github.com/labstack/echo/v4"
)

// httpError converts errors of the bridge into error responses.
func httpError(err error) *echo.HTTPError {
	var herr *echo.HTTPError
	switch {
	case errors.As(err, &herr):
		return herr
	case errors.Is(err, bridge.ErrInvalidRequest):
		return apierr.BadRequest("request body is not acceptable. check required fields.", err)
	case errors.Is(err, tabular.ErrMalformedInput):
		return apierr.BadRequest("submitted table can not be read. it should be tab-separated with a header line.", err)
	case errors.Is(err, study.ErrInvalidStudyID), errors.Is(err, errInvalidName):
		return apierr.BadRequest("names should not contain path separators.", err)
	case errors.Is(err, study.ErrStudyNotFound):
		return apierr.NotFound(
			apierr.WithAdvice("create the study in cBioPortal first, with meta_study.txt declaring cancer_study_identifier."),
			apierr.WithError(err),
		)
	case errors.Is(err, study.ErrAmbiguousStudy):
		return apierr.Failed(
			"study directory is ambiguous",
			"only one study directory should declare the study. ask your system admin.",
			err,
		)
	case errors.Is(err, importer.ErrImportProcess):
		return apierr.Failed(
			"Failed to load data",
			"submitted data is stored. fix the data, or retry with POST /studies/{studyId}/import/ .",
			err,
		)
	case errors.Is(err, cache.ErrCacheClear):
		return apierr.Failed(
			"Failed to clear cache",
			"data is imported. retry with DELETE /cbioportal/cache/ .",
			err,
		)
	case errors.Is(err, retry.ErrConnectionExhausted):
		return apierr.Failed("Failed to establish a new connection", "retry later.", err)
	case errors.Is(err, galaxy.ErrUnauthorized):
		return apierr.Failed("Galaxy rejected the token", "check galaxyToken.", err)
	case errors.Is(err, galaxy.ErrDatasetNotReady):
		return apierr.Failed("No files found in history in time", "check the history in Galaxy.", err)
	case errors.Is(err, galaxy.ErrNotFound), errors.Is(err, xnat.ErrExperimentNotFound), errors.Is(err, xnat.ErrProjectNotFound):
		return apierr.Failed("resource is not found in the external platform", "", err)
	}
	return apierr.InternalServerError(err)
}

// decode reads the request body and validates it against the schema.
func decode(c echo.Context, v *bridge.Validator, schema bridge.Schema, out any) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apierr.BadRequest("request body can not be read.", err)
	}
	if err := v.Decode(schema, body, out); err != nil {
		return httpError(err)
	}
	return nil
}
