package jobs

import (
	"context"
	"errors"
	"fmt"

	kdb "github.com/eosc4cancer/cbiobridge/pkg/db"
	pool "github.com/eosc4cancer/cbiobridge/pkg/db/postgres/bridgepool"
	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
	"github.com/jackc/pgx/v4"
)

const defaultLimit = 100

type pgImportJob struct {
	pool pool.Pool
}

func New(p pool.Pool) kdb.ImportJobInterface {
	return &pgImportJob{pool: p}
}

func (j *pgImportJob) Record(ctx context.Context, job kdb.ImportJob) error {
	if _, err := kdb.AsJobStatus(string(job.Status)); err != nil {
		return err
	}
	_, err := j.pool.Exec(
		ctx,
		`
		insert into "import_job" (
			"job_id", "study_id", "directory", "mode", "status",
			"exit_code", "stdout", "stderr", "started_at", "finished_at"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
		job.Id, job.StudyId, job.Directory, job.Mode, string(job.Status),
		job.ExitCode, job.Stdout, job.Stderr, job.StartedAt, job.FinishedAt,
	)
	return xe.Wrap(err)
}

const columns = `"job_id", "study_id", "directory", "mode", "status",
	"exit_code", "stdout", "stderr", "started_at", "finished_at"`

func (j *pgImportJob) Find(ctx context.Context, query kdb.JobQuery) ([]kdb.ImportJob, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := j.pool.Query(
		ctx,
		`select `+columns+` from "import_job"
		where $1 = '' or "study_id" = $1
		order by "started_at" desc, "job_id"
		limit $2`,
		query.StudyId, limit,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	found := []kdb.ImportJob{}
	for rows.Next() {
		job, err := scan(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, job)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return found, nil
}

func (j *pgImportJob) Get(ctx context.Context, id string) (kdb.ImportJob, error) {
	row := j.pool.QueryRow(
		ctx,
		`select `+columns+` from "import_job" where "job_id" = $1`,
		id,
	)
	job, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return kdb.ImportJob{}, fmt.Errorf("%w: import job %s", kdb.ErrMissing, id)
	}
	return job, err
}

func scan(row pgx.Row) (kdb.ImportJob, error) {
	job := kdb.ImportJob{}
	var status string
	if err := row.Scan(
		&job.Id, &job.StudyId, &job.Directory, &job.Mode, &status,
		&job.ExitCode, &job.Stdout, &job.Stderr, &job.StartedAt, &job.FinishedAt,
	); err != nil {
		return kdb.ImportJob{}, err
	}
	s, err := kdb.AsJobStatus(status)
	if err != nil {
		return kdb.ImportJob{}, xe.Wrap(err)
	}
	job.Status = s
	return job, nil
}
