package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissing          = errors.New("missing")
	ErrUnknownJobStatus = errors.New("unknown job status")
)

type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) String() string {
	return string(s)
}

func AsJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobSucceeded:
		return JobSucceeded, nil
	case JobFailed:
		return JobFailed, nil
	default:
		return JobStatus(s), fmt.Errorf("%w: %s", ErrUnknownJobStatus, s)
	}
}

// ImportJob is a record of an invocation of the external import process.
type ImportJob struct {
	Id        string
	StudyId   string
	Directory string

	// "full" or "incremental"
	Mode string

	Status   JobStatus
	ExitCode int
	Stdout   string
	Stderr   string

	StartedAt  time.Time
	FinishedAt time.Time
}

type JobQuery struct {
	// filter by study. empty matches all.
	StudyId string

	// max records to be returned. 0 means default (100).
	Limit int
}

type ImportJobInterface interface {
	// Record stores a finished import job.
	//
	// args:
	//     - ctx: context
	//     - ImportJob: job to be recorded. Id should be unique.
	//
	// returns:
	//     - error
	Record(context.Context, ImportJob) error

	// Find returns recorded jobs matching the query, most recent first.
	Find(context.Context, JobQuery) ([]ImportJob, error)

	// Get returns the job identified by id.
	//
	// When there is no such job, it returns an error wrapping ErrMissing.
	Get(context.Context, string) (ImportJob, error)
}

type BridgeDatabase interface {
	ImportJobs() ImportJobInterface
	Close() error
}
