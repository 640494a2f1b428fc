package handlers_test

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eosc4cancer/cbiobridge/cmd/bridged/handlers"
	httptestutil "github.com/eosc4cancer/cbiobridge/internal/testutils/http"
	"github.com/eosc4cancer/cbiobridge/pkg/api/types/bridge"
	"github.com/eosc4cancer/cbiobridge/pkg/cache"
	"github.com/eosc4cancer/cbiobridge/pkg/importer"
	"github.com/eosc4cancer/cbiobridge/pkg/study"
	"github.com/labstack/echo/v4"
)

type portalFixture struct {
	root     string
	importer *fakeImporter
	cache    *fakeCache
	portal   *handlers.Portal
}

func newPortal(t *testing.T) portalFixture {
	t.Helper()
	f := portalFixture{
		root:     t.TempDir(),
		importer: &fakeImporter{outcome: importer.Outcome{JobId: "job-1", Stdout: "imported"}},
		cache:    &fakeCache{output: "Cache evicted"},
	}
	f.portal = &handlers.Portal{
		StudyRoot: f.root,
		PortalURL: "http://cbioportal:8080",
		Importer:  f.importer,
		Cache:     f.cache,
		Locker:    study.NewLocker(),
	}
	return f
}

func timelineRequest() bridge.TimelineExport {
	return bridge.TimelineExport{
		DataContent: "PATIENT_ID\tSTART_DATE\tEVENT_TYPE\nP1\t10\tSURGERY\nP2\t20\tTREATMENT\n",
		MetaContent: "cancer_study_identifier: s1\ngenetic_alteration_type: CLINICAL\n",
		StudyId:     "s1",
		CaseId:      "P1",
		Suffix:      "surgery",
	}
}

func TestExportTimelineHandler(t *testing.T) {
	v := bridge.MustValidator()

	t.Run("it merges the timeline, imports incrementally and clears cache", func(t *testing.T) {
		f := newPortal(t)
		dir := filepath.Join(f.root, "incremental_import", "s1")
		writeFile(t, filepath.Join(dir, "data_timeline_surgery.txt"),
			"PATIENT_ID\tSTART_DATE\tEVENT_TYPE\nP3\t5\tSURGERY\nP1\t1\tOLD\n")

		e := echo.New()
		c, rec := httptestutil.PostJSON(t, e, "/export-timeline-to-cbioportal/", timelineRequest())
		if err := handlers.ExportTimelineHandler(f.portal, v)(c); err != nil {
			t.Fatal(err)
		}

		if rec.Code != http.StatusOK {
			t.Errorf("status: %d", rec.Code)
		}
		if msg := httptestutil.DecodeJSON[bridge.Message](t, rec); msg.Message != "Data successfully exported to cBioPortal." {
			t.Errorf("message: %s", msg.Message)
		}

		data := readFile(t, filepath.Join(dir, "data_timeline_surgery.txt"))
		expected := "PATIENT_ID\tSTART_DATE\tEVENT_TYPE\nP3\t5\tSURGERY\nP1\t10\tSURGERY\nP2\t20\tTREATMENT\n"
		if data != expected {
			t.Errorf("data: (actual, expected) = (%q, %q)", data, expected)
		}
		if meta := readFile(t, filepath.Join(dir, "meta_timeline_surgery.txt")); meta != timelineRequest().MetaContent {
			t.Errorf("meta: %q", meta)
		}

		if len(f.importer.requests) != 1 {
			t.Fatalf("importer calls: %d", len(f.importer.requests))
		}
		want := importer.Request{StudyId: "s1", Directory: dir, PortalURL: "http://cbioportal:8080", Mode: importer.Incremental}
		if got := f.importer.requests[0]; got != want {
			t.Errorf("import request: (actual, expected) = (%+v, %+v)", got, want)
		}
		if f.cache.calls != 1 {
			t.Errorf("cache clears: %d", f.cache.calls)
		}
	})

	t.Run("submitting the same timeline twice makes no duplicates", func(t *testing.T) {
		f := newPortal(t)
		for range 2 {
			c, _ := httptestutil.PostJSON(t, echo.New(), "/export-timeline-to-cbioportal/", timelineRequest())
			if err := handlers.ExportTimelineHandler(f.portal, v)(c); err != nil {
				t.Fatal(err)
			}
		}
		data := readFile(t, filepath.Join(f.root, "incremental_import", "s1", "data_timeline_surgery.txt"))
		if data != timelineRequest().DataContent {
			t.Errorf("data: %q", data)
		}
	})

	for name, testcase := range map[string]struct {
		when func(*bridge.TimelineExport)
		then int
	}{
		"missing suffix": {
			when: func(r *bridge.TimelineExport) { r.Suffix = "" },
			then: http.StatusBadRequest,
		},
		"missing data": {
			when: func(r *bridge.TimelineExport) { r.DataContent = "" },
			then: http.StatusBadRequest,
		},
		"duplicated columns": {
			when: func(r *bridge.TimelineExport) { r.DataContent = "PATIENT_ID\tPATIENT_ID\nP1\tP1\n" },
			then: http.StatusBadRequest,
		},
		"suffix with path": {
			when: func(r *bridge.TimelineExport) { r.Suffix = "../x" },
			then: http.StatusBadRequest,
		},
	} {
		t.Run("it rejects a request with "+name+" before any side effect", func(t *testing.T) {
			f := newPortal(t)
			req := timelineRequest()
			testcase.when(&req)

			c, rec := httptestutil.PostJSON(t, echo.New(), "/export-timeline-to-cbioportal/", req)
			err := handlers.ExportTimelineHandler(f.portal, v)(c)
			if code := statusOf(t, err, rec); code != testcase.then {
				t.Errorf("status: (actual, expected) = (%d, %d)", code, testcase.then)
			}
			if len(f.importer.requests) != 0 || f.cache.calls != 0 {
				t.Error("importer or cache is called")
			}
		})
	}

	t.Run("when the importer fails, data stays and it responds 500", func(t *testing.T) {
		f := newPortal(t)
		f.importer.err = &importer.ImportProcessError{ExitCode: 1, Stderr: "invalid file"}

		c, rec := httptestutil.PostJSON(t, echo.New(), "/export-timeline-to-cbioportal/", timelineRequest())
		err := handlers.ExportTimelineHandler(f.portal, v)(c)
		if code := statusOf(t, err, rec); code != http.StatusInternalServerError {
			t.Errorf("status: %d", code)
		}
		if !strings.Contains(err.Error(), "invalid file") {
			t.Errorf("error should tell stderr: %v", err)
		}
		if f.cache.calls != 0 {
			t.Error("cache should not be cleared")
		}
		readFile(t, filepath.Join(f.root, "incremental_import", "s1", "data_timeline_surgery.txt"))
	})

	t.Run("when cache clear fails, it responds 500", func(t *testing.T) {
		f := newPortal(t)
		f.cache.err = &cache.CacheClearError{StatusCode: 401, Detail: "bad key"}

		c, rec := httptestutil.PostJSON(t, echo.New(), "/export-timeline-to-cbioportal/", timelineRequest())
		err := handlers.ExportTimelineHandler(f.portal, v)(c)
		if code := statusOf(t, err, rec); code != http.StatusInternalServerError {
			t.Errorf("status: %d", code)
		}
		if !errors.Is(err, cache.ErrCacheClear) {
			t.Errorf("error should be ErrCacheClear: %v", err)
		}
	})
}

func resourceRequest() bridge.ResourceExport {
	return bridge.ResourceExport{
		DataDefinitionContent: "RESOURCE_ID\tDISPLAY_NAME\nCT\tCT scan\n",
		MetaDefinitionContent: "cancer_study_identifier: s1\nresource_type: DEFINITION\n",
		DataPatientContent:    "PATIENT_ID\tRESOURCE_ID\tURL\nP1\tCT\thttp://x/1\n",
		MetaPatientContent:    "cancer_study_identifier: s1\nresource_type: PATIENT\n",
		StudyId:               "s1",
	}
}

func TestExportResourceHandler(t *testing.T) {
	v := bridge.MustValidator()

	t.Run("it merges resources into the study directory and imports the study", func(t *testing.T) {
		f := newPortal(t)
		dir := filepath.Join(f.root, "coad")
		writeFile(t, filepath.Join(dir, "meta_study.txt"), "type_of_cancer: coad\ncancer_study_identifier: s1\n")
		writeFile(t, filepath.Join(f.root, "other", "meta_study.txt"), "cancer_study_identifier: s2\n")
		writeFile(t, filepath.Join(dir, "data_resource_patient.txt"),
			"PATIENT_ID\tRESOURCE_ID\tURL\nP1\tCT\thttp://x/old\nP1\tMR\thttp://x/2\n")
		// no key column: discarded
		writeFile(t, filepath.Join(dir, "data_resource_definition.txt"), "DATA\nx\n")

		c, rec := httptestutil.PostJSON(t, echo.New(), "/export-ressource-to-cbioportal/", resourceRequest())
		if err := handlers.ExportResourceHandler(f.portal, v)(c); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status: %d", rec.Code)
		}

		if got := readFile(t, filepath.Join(dir, "data_resource_definition.txt")); got != resourceRequest().DataDefinitionContent {
			t.Errorf("definition: %q", got)
		}
		expected := "PATIENT_ID\tRESOURCE_ID\tURL\nP1\tMR\thttp://x/2\nP1\tCT\thttp://x/1\n"
		if got := readFile(t, filepath.Join(dir, "data_resource_patient.txt")); got != expected {
			t.Errorf("patient: (actual, expected) = (%q, %q)", got, expected)
		}
		for file, content := range map[string]string{
			"meta_resource_definition.txt": resourceRequest().MetaDefinitionContent,
			"meta_resource_patient.txt":    resourceRequest().MetaPatientContent,
		} {
			if got := readFile(t, filepath.Join(dir, file)); got != content {
				t.Errorf("%s: %q", file, got)
			}
		}

		if len(f.importer.requests) != 1 || f.importer.requests[0].Mode != importer.Full || f.importer.requests[0].Directory != dir {
			t.Errorf("import requests: %+v", f.importer.requests)
		}
	})

	t.Run("unknown study is 404", func(t *testing.T) {
		f := newPortal(t)
		writeFile(t, filepath.Join(f.root, "other", "meta_study.txt"), "cancer_study_identifier: s2\n")

		c, rec := httptestutil.PostJSON(t, echo.New(), "/export-ressource-to-cbioportal/", resourceRequest())
		err := handlers.ExportResourceHandler(f.portal, v)(c)
		if code := statusOf(t, err, rec); code != http.StatusNotFound {
			t.Errorf("status: %d", code)
		}
		if len(f.importer.requests) != 0 {
			t.Error("importer should not be called")
		}
	})

	t.Run("ambiguous study is 500", func(t *testing.T) {
		f := newPortal(t)
		writeFile(t, filepath.Join(f.root, "a", "meta_study.txt"), "cancer_study_identifier: s1\n")
		writeFile(t, filepath.Join(f.root, "b", "meta_study.txt"), "cancer_study_identifier: s1\n")

		c, rec := httptestutil.PostJSON(t, echo.New(), "/export-ressource-to-cbioportal/", resourceRequest())
		err := handlers.ExportResourceHandler(f.portal, v)(c)
		if code := statusOf(t, err, rec); code != http.StatusInternalServerError {
			t.Errorf("status: %d", code)
		}
	})

	t.Run("malformed patient table writes nothing", func(t *testing.T) {
		f := newPortal(t)
		dir := filepath.Join(f.root, "coad")
		writeFile(t, filepath.Join(dir, "meta_study.txt"), "cancer_study_identifier: s1\n")

		req := resourceRequest()
		req.DataPatientContent = "PATIENT_ID\tRESOURCE_ID\nP1\tCT\textra\n"
		c, rec := httptestutil.PostJSON(t, echo.New(), "/export-ressource-to-cbioportal/", req)
		err := handlers.ExportResourceHandler(f.portal, v)(c)
		if code := statusOf(t, err, rec); code != http.StatusBadRequest {
			t.Errorf("status: %d", code)
		}
		if matches, _ := filepath.Glob(filepath.Join(dir, "data_resource_*")); len(matches) != 0 {
			t.Errorf("files are written: %v", matches)
		}
	})
}

func TestImportStudyHandler(t *testing.T) {
	v := bridge.MustValidator()

	for name, testcase := range map[string]struct {
		body     string
		prepare  func(t *testing.T, root string) string
		thenCode int
		thenMode importer.Mode
	}{
		"without body, it imports the whole study": {
			prepare: func(t *testing.T, root string) string {
				dir := filepath.Join(root, "coad")
				writeFile(t, filepath.Join(dir, "meta_study.txt"), "cancer_study_identifier: s1\n")
				return dir
			},
			thenCode: http.StatusOK, thenMode: importer.Full,
		},
		"incremental mode uses the incremental directory": {
			body: `{"mode": "incremental"}`,
			prepare: func(t *testing.T, root string) string {
				dir := filepath.Join(root, "incremental_import", "s1")
				writeFile(t, filepath.Join(dir, "data_timeline_x.txt"), "PATIENT_ID\nP1\n")
				return dir
			},
			thenCode: http.StatusOK, thenMode: importer.Incremental,
		},
		"incremental mode without submitted data is 404": {
			body:     `{"mode": "incremental"}`,
			prepare:  func(t *testing.T, root string) string { return "" },
			thenCode: http.StatusNotFound,
		},
		"unknown mode is 400": {
			body:     `{"mode": "partial"}`,
			prepare:  func(t *testing.T, root string) string { return "" },
			thenCode: http.StatusBadRequest,
		},
	} {
		t.Run(name, func(t *testing.T) {
			f := newPortal(t)
			dir := testcase.prepare(t, f.root)

			c, rec := httptestutil.Post(
				echo.New(), "/studies/s1/import/", strings.NewReader(testcase.body),
				httptestutil.ContentType(echo.MIMEApplicationJSON),
			)
			c.SetParamNames("studyId")
			c.SetParamValues("s1")

			err := handlers.ImportStudyHandler(f.portal, v, "studyId")(c)
			if code := statusOf(t, err, rec); code != testcase.thenCode {
				t.Fatalf("status: (actual, expected) = (%d, %d): %v", code, testcase.thenCode, err)
			}
			if testcase.thenCode != http.StatusOK {
				if len(f.importer.requests) != 0 {
					t.Error("importer should not be called")
				}
				return
			}

			if len(f.importer.requests) != 1 {
				t.Fatalf("importer calls: %d", len(f.importer.requests))
			}
			if got := f.importer.requests[0]; got.Mode != testcase.thenMode || got.Directory != dir {
				t.Errorf("import request: %+v", got)
			}
			result := httptestutil.DecodeJSON[bridge.ImportResult](t, rec)
			if result.JobId != "job-1" || result.Output != "imported" {
				t.Errorf("result: %+v", result)
			}
		})
	}
}

func TestClearCacheHandler(t *testing.T) {
	t.Run("it clears cache", func(t *testing.T) {
		fc := &fakeCache{output: "Cache evicted"}
		c, rec := httptestutil.Delete(echo.New(), "/cbioportal/cache/")
		if err := handlers.ClearCacheHandler(fc)(c); err != nil {
			t.Fatal(err)
		}
		if got := httptestutil.DecodeJSON[bridge.CacheResult](t, rec); got.Output != "Cache evicted" {
			t.Errorf("result: %+v", got)
		}
	})

	t.Run("failure is 500", func(t *testing.T) {
		fc := &fakeCache{err: &cache.CacheClearError{Detail: "connection refused"}}
		c, rec := httptestutil.Delete(echo.New(), "/cbioportal/cache/")
		err := handlers.ClearCacheHandler(fc)(c)
		if code := statusOf(t, err, rec); code != http.StatusInternalServerError {
			t.Errorf("status: %d", code)
		}
	})
}
