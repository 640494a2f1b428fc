// Package importer drives the cBioPortal study importer.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kdb "github.com/eosc4cancer/cbiobridge/pkg/db"
	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
	"github.com/google/uuid"
)

type Mode string

const (
	// replace the whole study.
	Full Mode = "full"

	// add or update data without replacing the study.
	Incremental Mode = "incremental"
)

var ErrUnknownMode = errors.New("unknown import mode")

func AsMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case Full:
		return Full, nil
	case Incremental:
		return Incremental, nil
	}
	return Mode(s), fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) String() string {
	return string(m)
}

func (m Mode) flag() (string, error) {
	switch m {
	case Full:
		return "-s", nil
	case Incremental:
		return "-d", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
}

var ErrImportProcess = errors.New("import process failed")

// ImportProcessError tells that the importer exited with non-zero status.
//
// This is not retried: it usually means the data needs a fix by the caller.
type ImportProcessError struct {
	JobId    string
	ExitCode int
	Stderr   string
}

func (e *ImportProcessError) Error() string {
	return fmt.Sprintf("%s (exit status %d): %s", ErrImportProcess, e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *ImportProcessError) Unwrap() error {
	return ErrImportProcess
}

// Logger receives messages from Importer. echo.Logger satisfies this.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Observer is notified of each importer invocation.
type Observer interface {
	ObserveImport(mode string, succeeded bool, elapsed time.Duration)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}

type nopObserver struct{}

func (nopObserver) ObserveImport(string, bool, time.Duration) {}

// Request is what to import and where.
type Request struct {
	StudyId   string
	Directory string
	PortalURL string
	Mode      Mode
}

// Outcome of a successful import.
type Outcome struct {
	JobId  string
	Stdout string
}

type Importer struct {
	cmd      Command
	jobs     kdb.ImportJobInterface
	log      Logger
	observer Observer
	now      func() time.Time
	newId    func() string
}

type Option func(*Importer) *Importer

// WithLedger records every invocation into jobs.
func WithLedger(jobs kdb.ImportJobInterface) Option {
	return func(i *Importer) *Importer {
		i.jobs = jobs
		return i
	}
}

func WithLogger(log Logger) Option {
	return func(i *Importer) *Importer {
		if log != nil {
			i.log = log
		}
		return i
	}
}

func WithObserver(o Observer) Option {
	return func(i *Importer) *Importer {
		if o != nil {
			i.observer = o
		}
		return i
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Importer) *Importer {
		i.now = now
		return i
	}
}

func New(cmd Command, options ...Option) *Importer {
	i := &Importer{
		cmd:      cmd,
		log:      nopLogger{},
		observer: nopObserver{},
		now:      time.Now,
		newId:    uuid.NewString,
	}
	for _, opt := range options {
		i = opt(i)
	}
	return i
}

// Args builds the importer arguments for the request.
func Args(req Request) ([]string, error) {
	flag, err := req.Mode.flag()
	if err != nil {
		return nil, err
	}
	return []string{flag, req.Directory, "-u", req.PortalURL, "-o"}, nil
}

// Import runs the importer against the study directory, and waits for it.
//
// # Returns
//
// - Outcome: job id and standard output of the importer.
//
// - error: *ImportProcessError when the importer exits with non-zero status.
// Other errors when the importer could not be run.
func (i *Importer) Import(ctx context.Context, req Request) (Outcome, error) {
	args, err := Args(req)
	if err != nil {
		return Outcome{}, err
	}

	jobId := i.newId()
	started := i.now()
	res, err := i.cmd.Run(ctx, args)
	finished := i.now()
	elapsed := finished.Sub(started)

	if err != nil {
		i.observer.ObserveImport(req.Mode.String(), false, elapsed)
		i.record(ctx, req, jobId, Result{ExitCode: -1, Stderr: err.Error()}, started, finished)
		return Outcome{}, xe.WrapWithNote("running importer", err)
	}

	i.observer.ObserveImport(req.Mode.String(), res.ExitCode == 0, elapsed)
	i.record(ctx, req, jobId, res, started, finished)

	if res.ExitCode != 0 {
		i.log.Warnf("Failed to load data (job %s): %s", jobId, res.Stderr)
		return Outcome{}, &ImportProcessError{JobId: jobId, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	i.log.Infof("Data loaded (job %s, %s import of %s)", jobId, req.Mode, req.Directory)
	return Outcome{JobId: jobId, Stdout: res.Stdout}, nil
}

// record stores the job. Failures of the ledger do not fail the import.
func (i *Importer) record(ctx context.Context, req Request, jobId string, res Result, started, finished time.Time) {
	if i.jobs == nil {
		return
	}
	status := kdb.JobSucceeded
	if res.ExitCode != 0 {
		status = kdb.JobFailed
	}
	// record even when the request is canceled; the importer did run.
	ctx = context.WithoutCancel(ctx)
	if err := i.jobs.Record(ctx, kdb.ImportJob{
		Id:         jobId,
		StudyId:    req.StudyId,
		Directory:  req.Directory,
		Mode:       req.Mode.String(),
		Status:     status,
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		StartedAt:  started,
		FinishedAt: finished,
	}); err != nil {
		i.log.Warnf("import job %s is not recorded: %s", jobId, err)
	}
}
