package schema

import (
	"context"
	"errors"

	pool "github.com/eosc4cancer/cbiobridge/pkg/db/postgres/bridgepool"
	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

var statements = []string{
	`create table if not exists "import_job" (
		"job_id" varchar(64) primary key,
		"study_id" text not null,
		"directory" text not null,
		"mode" varchar(16) not null,
		"status" varchar(16) not null,
		"exit_code" integer not null,
		"stdout" text not null,
		"stderr" text not null,
		"started_at" timestamp with time zone not null,
		"finished_at" timestamp with time zone not null
	)`,
	`create index if not exists "import_job_study_started"
		on "import_job" ("study_id", "started_at" desc)`,
}

// Ensure creates tables when they are missing.
//
// Bridges starting at the same time race on "create ... if not exists";
// the loser sees a duplicate error and it is ignored.
func Ensure(ctx context.Context, p pool.Pool) error {
	for _, stmt := range statements {
		if _, err := p.Exec(ctx, stmt); err != nil && !alreadyExists(err) {
			return xe.Wrap(err)
		}
	}
	return nil
}

func alreadyExists(err error) bool {
	var pgerr *pgconn.PgError
	if !errors.As(err, &pgerr) {
		return false
	}
	switch pgerr.Code {
	case pgerrcode.DuplicateTable, pgerrcode.DuplicateObject, pgerrcode.UniqueViolation:
		return true
	}
	return false
}
