package jobs_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	kdb "github.com/eosc4cancer/cbiobridge/pkg/db"
	kpgjobs "github.com/eosc4cancer/cbiobridge/pkg/db/postgres/jobs"
	kpgschema "github.com/eosc4cancer/cbiobridge/pkg/db/postgres/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
)

// connect returns a pool for the test database named by BRIDGE_TEST_DB_URI.
//
// The import_job table is emptied before and after the test.
func connect(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	uri := os.Getenv("BRIDGE_TEST_DB_URI")
	if uri == "" {
		t.Skip("BRIDGE_TEST_DB_URI is not set")
	}
	p, err := pgxpool.Connect(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	if err := kpgschema.Ensure(ctx, p); err != nil {
		t.Fatal(err)
	}
	truncate := func() {
		if _, err := p.Exec(ctx, `truncate "import_job"`); err != nil {
			t.Fatal(err)
		}
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		p.Close()
	})
	return p
}

func TestImportJob(t *testing.T) {
	ctx := context.Background()
	p := connect(ctx, t)
	testee := kpgjobs.New(p)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	newJob := func(study string, offset time.Duration, status kdb.JobStatus) kdb.ImportJob {
		return kdb.ImportJob{
			Id:         uuid.NewString(),
			StudyId:    study,
			Directory:  "/study/" + study,
			Mode:       "incremental",
			Status:     status,
			ExitCode:   map[kdb.JobStatus]int{kdb.JobSucceeded: 0, kdb.JobFailed: 2}[status],
			Stdout:     "out",
			Stderr:     "err",
			StartedAt:  base.Add(offset),
			FinishedAt: base.Add(offset + time.Minute),
		}
	}

	first := newJob("brca_tcga", 0, kdb.JobSucceeded)
	second := newJob("brca_tcga", time.Hour, kdb.JobFailed)
	other := newJob("coad_tcga", 2*time.Hour, kdb.JobSucceeded)
	for _, j := range []kdb.ImportJob{first, second, other} {
		if err := testee.Record(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("Find filters by study, most recent first", func(t *testing.T) {
		found, err := testee.Find(ctx, kdb.JobQuery{StudyId: "brca_tcga"})
		if err != nil {
			t.Fatal(err)
		}
		if len(found) != 2 || found[0].Id != second.Id || found[1].Id != first.Id {
			t.Errorf("unexpected jobs: %+v", found)
		}
	})

	t.Run("Find without study returns all, limited", func(t *testing.T) {
		found, err := testee.Find(ctx, kdb.JobQuery{Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if len(found) != 2 || found[0].Id != other.Id {
			t.Errorf("unexpected jobs: %+v", found)
		}
	})

	t.Run("Get returns the recorded job", func(t *testing.T) {
		actual, err := testee.Get(ctx, second.Id)
		if err != nil {
			t.Fatal(err)
		}
		if actual.Status != kdb.JobFailed || actual.ExitCode != 2 || !actual.StartedAt.Equal(second.StartedAt) {
			t.Errorf("unexpected job: %+v", actual)
		}
	})

	t.Run("Get unknown id is ErrMissing", func(t *testing.T) {
		_, err := testee.Get(ctx, uuid.NewString())
		if !errors.Is(err, kdb.ErrMissing) {
			t.Errorf("expected ErrMissing, but %v", err)
		}
	})

	t.Run("Record rejects unknown status", func(t *testing.T) {
		j := newJob("brca_tcga", 0, kdb.JobStatus("running"))
		if err := testee.Record(ctx, j); !errors.Is(err, kdb.ErrUnknownJobStatus) {
			t.Errorf("expected ErrUnknownJobStatus, but %v", err)
		}
	})
}
