// Package reporting evaluates predefined aggregate measures over screening
// results and calorie records.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medscreen/medscreen/internal/platform/auth"
	"github.com/medscreen/medscreen/internal/platform/db"
)

// MeasureDefinition is a named aggregate query. The query always receives the
// doctor scope as $1 (NULL for admins, who see everything) followed by the
// declared parameters, in order, as UUIDs.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"-"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "screening-volume",
		Name:        "Screening Volume",
		Description: "Screenings per questionnaire, with how many fell outside every result tier",
		SQL: `SELECT q.id::text AS questionnaire_id, q.title, COUNT(*) AS total,
			COUNT(*) FILTER (WHERE NOT sr.resolved) AS unresolved
			FROM screening_result sr JOIN questionnaire q ON q.id = sr.questionnaire_id
			WHERE ($1::uuid IS NULL OR sr.doctor_id = $1)
			GROUP BY q.id, q.title ORDER BY total DESC`,
		Parameters: []string{},
	},
	{
		ID:          "tier-distribution",
		Name:        "Tier Distribution",
		Description: "Screenings of one questionnaire grouped by resolved tier label",
		SQL: `SELECT COALESCE(sr.tier->>'label', 'unresolved') AS tier, COUNT(*) AS total,
			ROUND(AVG(sr.total_score)::numeric, 2)::float8 AS average_score
			FROM screening_result sr
			WHERE ($1::uuid IS NULL OR sr.doctor_id = $1) AND sr.questionnaire_id = $2
			GROUP BY 1 ORDER BY total DESC`,
		Parameters: []string{"questionnaire_id"},
	},
	{
		ID:          "subject-mix",
		Name:        "Subject Mix",
		Description: "Screenings grouped by subject type",
		SQL: `SELECT sr.subject_type, COUNT(*) AS total
			FROM screening_result sr
			WHERE ($1::uuid IS NULL OR sr.doctor_id = $1)
			GROUP BY sr.subject_type ORDER BY total DESC`,
		Parameters: []string{},
	},
	{
		ID:          "calorie-summary",
		Name:        "Calorie Requirement Summary",
		Description: "Average daily requirement and BMI of recorded calculations by activity level",
		SQL: `SELECT cr.activity_level, COUNT(*) AS total,
			ROUND(AVG(cr.total_rounded)::numeric, 0)::float8 AS average_kcal,
			ROUND(AVG(cr.bmi)::numeric, 2)::float8 AS average_bmi
			FROM calorie_record cr
			WHERE ($1::uuid IS NULL OR cr.doctor_id = $1)
			GROUP BY cr.activity_level ORDER BY total DESC`,
		Parameters: []string{},
	},
}

type Handler struct {
	db db.Querier
}

func NewHandler(q db.Querier) *Handler {
	return &Handler{db: q}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequirePrincipal(auth.PrincipalDoctor))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure runs a measure scoped to the calling doctor. Admins see
// every doctor's data.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	var scope *uuid.UUID
	if !p.IsAdmin() {
		scope = &p.ID
	}
	args := []interface{}{scope}
	params := map[string]string{}
	for _, name := range measure.Parameters {
		v := c.QueryParam(name)
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("query parameter %s must be a UUID", name))
		}
		params[name] = v
		args = append(args, id)
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, args...)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now().UTC(),
		Results:     results,
		Parameters:  params,
	})
}

// executeSQL runs a query and returns each row as a column-name map.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
