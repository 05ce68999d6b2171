package store

import (
	"context"
	"fmt"
)

// FlaggedTitle is a stored title whose validation did not pass cleanly.
type FlaggedTitle struct {
	SKU           string `json:"sku"`
	OriginalTitle string `json:"original_title"`
	SystemTitle   string `json:"system_title"`
	Status        string `json:"validation_status"`
}

// CategoryReport groups stored titles of one taxonomy triple.
type CategoryReport struct {
	Department string         `json:"department"`
	Family     string         `json:"family"`
	Category   string         `json:"category"`
	Total      int            `json:"total"`
	Flagged    int            `json:"flagged"`
	Corrected  int            `json:"corrected"`
	FlagRate   float64        `json:"flag_rate"`
	Samples    []FlaggedTitle `json:"samples"`
}

// Categories whose flagged titles are shown are ranked by flagged count; each
// carries at most samplesPerCategory of its most recent flagged titles.
const categoryReport = `
	WITH top_categories AS (
		SELECT
			department,
			family,
			category,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE "validationStatus" IN ('warnings', 'passed_with_warnings')) AS flagged,
			COUNT(*) FILTER (WHERE corrected) AS corrected
		FROM "TitleStandardization"
		GROUP BY department, family, category
		HAVING COUNT(*) FILTER (WHERE "validationStatus" IN ('warnings', 'passed_with_warnings')) > 0
		ORDER BY flagged DESC, total DESC
		LIMIT $1
	)
	SELECT
		c.department,
		c.family,
		c.category,
		c.total,
		c.flagged,
		c.corrected,
		t.sku,
		t."originalTitle",
		t."systemTitle",
		t."validationStatus"
	FROM top_categories c
	CROSS JOIN LATERAL (
		SELECT * FROM "TitleStandardization" s
		WHERE s.department = c.department
		  AND s.family = c.family
		  AND s.category = c.category
		  AND s."validationStatus" IN ('warnings', 'passed_with_warnings')
		ORDER BY s.id DESC
		LIMIT $2
	) t
	ORDER BY c.flagged DESC, c.total DESC
`

const samplesPerCategory = 5

// CategoryReports lists the taxonomy triples with the most flagged titles,
// worst first.
func (s *Store) CategoryReports(ctx context.Context, limit int) ([]CategoryReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, categoryReport, limit, samplesPerCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to build category report: %w", err)
	}
	defer rows.Close()

	byKey := make(map[string]*CategoryReport)
	var order []string
	for rows.Next() {
		var (
			rep    CategoryReport
			sample FlaggedTitle
		)
		if err := rows.Scan(
			&rep.Department, &rep.Family, &rep.Category,
			&rep.Total, &rep.Flagged, &rep.Corrected,
			&sample.SKU, &sample.OriginalTitle, &sample.SystemTitle, &sample.Status,
		); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		key := rep.Department + "/" + rep.Family + "/" + rep.Category
		if _, ok := byKey[key]; !ok {
			if rep.Total > 0 {
				rep.FlagRate = float64(rep.Flagged) / float64(rep.Total)
			}
			rep.Samples = []FlaggedTitle{}
			byKey[key] = &rep
			order = append(order, key)
		}
		byKey[key].Samples = append(byKey[key].Samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]CategoryReport, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}
