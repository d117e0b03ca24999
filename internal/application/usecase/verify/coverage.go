package verify

import (
	"encoding/json"
	"fmt"
)

// ParseCoveragePercent extracts the total line-coverage percentage from a
// coverage report file. Three schemas are recognized, tried in order:
// Istanbul/NYC coverage-summary ("total.lines.pct"), pytest-cov / coverage.py
// JSON ("totals.percent_covered"), and a generic {"coverage_percent": N}.
// The returned source names the schema that matched.
func ParseCoveragePercent(data []byte) (percent float64, source string, err error) {
	var istanbul struct {
		Total struct {
			Lines struct {
				Pct *float64 `json:"pct"`
			} `json:"lines"`
		} `json:"total"`
	}
	if err := json.Unmarshal(data, &istanbul); err == nil && istanbul.Total.Lines.Pct != nil {
		return *istanbul.Total.Lines.Pct, "istanbul", nil
	}

	var pytest struct {
		Totals struct {
			PercentCovered *float64 `json:"percent_covered"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(data, &pytest); err == nil && pytest.Totals.PercentCovered != nil {
		return *pytest.Totals.PercentCovered, "pytest-cov", nil
	}

	var generic struct {
		CoveragePercent *float64 `json:"coverage_percent"`
	}
	if err := json.Unmarshal(data, &generic); err == nil && generic.CoveragePercent != nil {
		return *generic.CoveragePercent, "generic", nil
	}

	return 0, "", fmt.Errorf("coverage report did not match any known schema")
}
