package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/eosc4cancer/cbiobridge/pkg/api/types/bridge"
	apierr "github.com/eosc4cancer/cbiobridge/pkg/api/types/errors"
	kdb "github.com/eosc4cancer/cbiobridge/pkg/db"
	"github.com/labstack/echo/v4"
)

func noLedger() *echo.HTTPError {
	return apierr.NotImplemented(
		"import jobs are not recorded",
		"configure database.uri to record import jobs.",
	)
}

func composeJob(j kdb.ImportJob) bridge.ImportJob {
	return bridge.ImportJob{
		Id:         j.Id,
		StudyId:    j.StudyId,
		Directory:  j.Directory,
		Mode:       j.Mode,
		Status:     j.Status.String(),
		ExitCode:   j.ExitCode,
		Stdout:     j.Stdout,
		Stderr:     j.Stderr,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// ListJobsHandler lists recorded import jobs, newest first.
//
// Query parameters: "studyId" to filter, and "limit".
//
// jobs can be nil; then it responds 501.
func ListJobsHandler(jobs kdb.ImportJobInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		if jobs == nil {
			return noLedger()
		}
		query := kdb.JobQuery{StudyId: c.QueryParam("studyId")}
		if l := c.QueryParam("limit"); l != "" {
			limit, err := strconv.Atoi(l)
			if err != nil || limit < 0 {
				return apierr.BadRequest("limit should be a non-negative integer.", err)
			}
			query.Limit = limit
		}

		found, err := jobs.Find(c.Request().Context(), query)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		resp := make([]bridge.ImportJob, 0, len(found))
		for _, j := range found {
			resp = append(resp, composeJob(j))
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// GetJobHandler shows an import job.
func GetJobHandler(jobs kdb.ImportJobInterface, jobIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if jobs == nil {
			return noLedger()
		}
		job, err := jobs.Get(c.Request().Context(), c.Param(jobIdParam))
		if errors.Is(err, kdb.ErrMissing) {
			return apierr.NotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, composeJob(job))
	}
}
