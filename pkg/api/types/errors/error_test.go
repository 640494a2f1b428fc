package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	apierr "github.com/eosc4cancer/cbiobridge/pkg/api/types/errors"
)

func TestNewErrorMessage(t *testing.T) {
	cause := errors.New("importer exited with 1")
	herr := apierr.Failed("import failed", "fix the data and retry.", cause)

	if herr.Code != http.StatusInternalServerError {
		t.Errorf("code: %d", herr.Code)
	}
	msg, ok := herr.Message.(apierr.ErrorMessage)
	if !ok {
		t.Fatalf("message is not ErrorMessage: %#v", herr.Message)
	}
	if !errors.Is(msg, cause) {
		t.Error("cause is not unwrapped")
	}

	buf, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var back apierr.ErrorMessage
	if err := json.Unmarshal(buf, &back); err != nil {
		t.Fatal(err)
	}
	expected := apierr.ErrorMessage{
		Reason: "import failed",
		Advice: "fix the data and retry.",
		Detail: "importer exited with 1",
	}
	if back != expected {
		t.Errorf("(actual, expected) = (%+v, %+v)", back, expected)
	}
}

func TestErrorMessage_UnmarshalJSON(t *testing.T) {
	var msg apierr.ErrorMessage
	if err := json.Unmarshal([]byte(`{"advice": "no reason"}`), &msg); err == nil {
		t.Error("message without reason should be rejected")
	}
}

func TestHelpers(t *testing.T) {
	for name, testcase := range map[string]struct {
		when int
		then int
	}{
		"bad request":     {when: apierr.BadRequest("", nil).Code, then: http.StatusBadRequest},
		"not found":       {when: apierr.NotFound().Code, then: http.StatusNotFound},
		"conflict":        {when: apierr.Conflict("exists").Code, then: http.StatusConflict},
		"internal":        {when: apierr.InternalServerError(nil).Code, then: http.StatusInternalServerError},
		"unavailable":     {when: apierr.ServiceUnavailable("", nil).Code, then: http.StatusServiceUnavailable},
		"not implemented": {when: apierr.NotImplemented("no ledger", "").Code, then: http.StatusNotImplemented},
	} {
		t.Run(name, func(t *testing.T) {
			if testcase.when != testcase.then {
				t.Errorf("(actual, expected) = (%d, %d)", testcase.when, testcase.then)
			}
		})
	}
}
