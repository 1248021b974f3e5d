package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/cleancity/cleancity/internal/models"
)

// parseReportQuery builds a report listing filter from URL query parameters.
func parseReportQuery(r *http.Request) (models.ReportQuery, error) {
	q := r.URL.Query()
	query := models.ReportQuery{
		ReporterID:   q.Get("reporter_id"),
		AssignedTo:   q.Get("assigned_to"),
		OutOfScopeBy: q.Get("out_of_scope_by"),
		Search:       q.Get("search"),
	}

	if raw := q.Get("status"); raw != "" {
		status := models.ReportStatus(raw)
		if !status.IsValid() {
			return query, fmt.Errorf("unknown status %q", raw)
		}
		query.Status = &status
	}

	if raw := q.Get("type"); raw != "" {
		switch reportType := models.ReportType(raw); reportType {
		case models.TypeStandard, models.TypeHazardous, models.TypeLarge:
			query.Type = &reportType
		default:
			return query, fmt.Errorf("unknown report type %q", raw)
		}
	}

	var err error
	if query.Page, err = parsePositiveInt(q.Get("page")); err != nil {
		return query, fmt.Errorf("invalid page: %w", err)
	}
	if query.Limit, err = parsePositiveInt(q.Get("limit")); err != nil {
		return query, fmt.Errorf("invalid limit: %w", err)
	}

	return query, nil
}

func parsePositiveInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}
