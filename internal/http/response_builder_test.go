package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyString("test").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerTransactionCreated("2024-03").
		TriggerFormReset().
		TriggerSuccessNotification("Saved").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}

	expectedParts := []string{
		`"txn:created"`,
		`"form:reset"`,
		`"show-notification"`,
		`"month":"2024-03"`,
		`"type":"success"`,
	}
	for _, part := range expectedParts {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_BillPaid(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerBillPaid("2024-02").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"bill:paid"`) {
		t.Errorf("HX-Trigger missing bill:paid: %s", trigger)
	}
	if !strings.Contains(trigger, `"month":"2024-02"`) {
		t.Errorf("HX-Trigger missing month payload: %s", trigger)
	}
}

func TestHTMXResponseBuilder_NoTriggersNoHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().BodyString("plain").Write(w)

	if got := w.Header().Get("HX-Trigger"); got != "" {
		t.Errorf("HX-Trigger = %q, want empty", got)
	}
}

func TestErrorResponseConstructors(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
	}{
		{"bad request", BadRequestError("nope"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("invalid"), http.StatusUnprocessableEntity},
		{"not found", NotFoundError("gone"), http.StatusNotFound},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.Len() == 0 {
				t.Error("expected an error body")
			}
		})
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("HX-Redirect", "/budget").
		Write(w)

	if got := w.Header().Get("HX-Redirect"); got != "/budget" {
		t.Errorf("HX-Redirect = %q, want /budget", got)
	}
}
