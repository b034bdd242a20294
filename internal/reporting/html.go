package reporting

import (
	"fmt"
	"html/template"
	"strings"
)

// htmlReport is the single-file HTML template. Inline CSS keeps the
// artifact self-contained for sharing.
var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Stress Report</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-bottom: 2rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: right; }
th { background: #f4f4f4; }
td.name, th.name { text-align: left; }
.pass { color: #1a7f37; font-weight: bold; }
.soft-fail { color: #b08800; font-weight: bold; }
.hard-fail { color: #cf222e; font-weight: bold; }
</style>
</head>
<body>
<h1>Stress Report</h1>
<p>Generated: {{.GeneratedAt}} | Scenarios: {{.ScenarioCount}} | Runs: {{.RunCount}}</p>
<table>
<tr>
<th class="name">Scenario</th><th>Seed</th><th>Verdict</th>
<th>Mean Dev</th><th>Max Dev</th><th>Liquidations</th>
<th>Bad Debt</th><th>Breakers</th><th>Min Solvency</th>
</tr>
{{range .Rows}}
<tr>
<td class="name">{{.Scenario}}</td><td>{{.Seed}}</td>
<td class="{{.VerdictClass}}">{{.Verdict}}</td>
<td>{{.MeanDev}}</td><td>{{.MaxDev}}</td><td>{{.Liquidations}}</td>
<td>{{.BadDebt}}</td><td>{{.Breakers}}</td><td>{{.MinSolvency}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

type htmlRow struct {
	Scenario     string
	Seed         uint64
	Verdict      string
	VerdictClass string
	MeanDev      string
	MaxDev       string
	Liquidations uint32
	BadDebt      string
	Breakers     uint32
	MinSolvency  string
}

// RenderHTML renders a report as a self-contained HTML page.
func RenderHTML(r *Report) (string, error) {
	rows := make([]htmlRow, 0, len(r.Runs))
	for _, row := range r.Runs {
		s := row.Summary
		rows = append(rows, htmlRow{
			Scenario:     s.ScenarioID.Name(),
			Seed:         s.Seed,
			Verdict:      string(row.Verdict.Overall),
			VerdictClass: verdictClass(string(row.Verdict.Overall)),
			MeanDev:      fmt.Sprintf("%.2f%%", s.MeanPegDeviation*100),
			MaxDev:       fmt.Sprintf("%.2f%%", s.MaxPegDeviation*100),
			Liquidations: s.TotalLiquidations,
			BadDebt:      fmt.Sprintf("%.2f", s.TotalBadDebt),
			Breakers:     s.BreakerTriggers,
			MinSolvency:  fmt.Sprintf("%.2f", s.MinSolvencyRatio),
		})
	}

	data := struct {
		GeneratedAt   string
		ScenarioCount int
		RunCount      int
		Rows          []htmlRow
	}{
		GeneratedAt:   r.GeneratedAt.Format("2006-01-02 15:04:05 UTC"),
		ScenarioCount: r.ScenarioCount,
		RunCount:      r.RunCount,
		Rows:          rows,
	}

	var sb strings.Builder
	if err := htmlTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return sb.String(), nil
}

func verdictClass(v string) string {
	switch v {
	case "PASS":
		return "pass"
	case "SOFT FAIL":
		return "soft-fail"
	default:
		return "hard-fail"
	}
}
