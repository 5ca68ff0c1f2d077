package calorie

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medscreen/medscreen/internal/domain/identity"
	"github.com/medscreen/medscreen/internal/platform/auth"
)

func newContext(e *echo.Echo, method, body string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Calculate(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	body := `{"gender":"female","height_cm":150,"weight_kg":60,"age":45,"activity_level":"moderate"}`
	c, rec := newContext(e, http.MethodPost, body, nil)
	if err := h.Calculate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Total != 1181.25 || res.BMI != 26.67 || res.TotalRounded != 1181 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHandler_Calculate_InvalidInput(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	c, _ := newContext(e, http.MethodPost, `{"gender":"female","height_cm":0,"weight_kg":60,"age":45,"activity_level":"moderate"}`, nil)
	err := h.Calculate(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	body, ok := httpErr.Message.(map[string]string)
	if !ok || body["code"] != "invalid_input" {
		t.Errorf("expected invalid_input code, got %v", httpErr.Message)
	}
}

func TestHandler_CreateRecord(t *testing.T) {
	svc, patients := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	doc := doctor()
	p := patients.add(&identity.Patient{DoctorID: doc.ID, Name: "A"})

	body := `{"gender":"male","height_cm":170,"weight_kg":70,"age":30,"activity_level":"light"}`
	c, rec := newContext(e, http.MethodPost, body, &doc)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.CreateRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_CreateRecord_Errors(t *testing.T) {
	svc, patients := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	doc := doctor()
	p := patients.add(&identity.Patient{DoctorID: uuid.New(), Name: "A"})
	body := `{"gender":"male","height_cm":170,"weight_kg":70,"age":30,"activity_level":"light"}`

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"bad id", "x", http.StatusBadRequest},
		{"unknown patient", uuid.New().String(), http.StatusNotFound},
		{"other doctor's patient", p.ID.String(), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(e, http.MethodPost, body, &doc)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)
			err := h.CreateRecord(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tt.want {
				t.Errorf("expected %d, got %v", tt.want, err)
			}
		})
	}
}

func TestHandler_ListAndDeleteRecords(t *testing.T) {
	svc, patients := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	doc := doctor()
	p := patients.add(&identity.Patient{DoctorID: doc.ID, Name: "A"})
	r, _ := svc.RecordForPatient(context.Background(), doc, p.ID, Input{
		Gender: GenderMale, HeightCm: 170, WeightKg: 70, Age: 30, ActivityLevel: ActivityLight,
	})

	c, rec := newContext(e, http.MethodGet, "", &doc)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.ListRecords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, rec = newContext(e, http.MethodDelete, "", &doc)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	if err := h.DeleteRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
