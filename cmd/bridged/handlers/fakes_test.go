package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/eosc4cancer/cbiobridge/pkg/importer"
	"github.com/labstack/echo/v4"
)

type fakeImporter struct {
	requests []importer.Request
	outcome  importer.Outcome
	err      error
}

func (f *fakeImporter) Import(_ context.Context, req importer.Request) (importer.Outcome, error) {
	f.requests = append(f.requests, req)
	return f.outcome, f.err
}

type fakeCache struct {
	calls  int
	output string
	err    error
}

func (f *fakeCache) Clear(context.Context) (string, error) {
	f.calls += 1
	return f.output, f.err
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

// statusOf returns the status code which the handler responds with.
func statusOf(t *testing.T, err error, rec interface{ Result() *http.Response }) int {
	t.Helper()
	if err == nil {
		return rec.Result().StatusCode
	}
	var herr *echo.HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("handler returns non-HTTP error: %v", err)
	}
	return herr.Code
}
