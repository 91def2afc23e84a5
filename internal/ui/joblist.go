// Package ui renders the HTML pages of the job server.
package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// JobListItem is one row of the job list
type JobListItem struct {
	ID          string
	Kind        string
	State       string
	Filter      string
	InputDir    string
	Done        int
	Total       int
	RMSE        float64
	InitialRMSE float64
	StartTime   time.Time
	EndTime     *time.Time
	Error       string
}

// Progress formats done/total, or just done when the total is unknown
func (it JobListItem) Progress() string {
	if it.Total <= 0 {
		return fmt.Sprint(it.Done)
	}
	return fmt.Sprintf("%d/%d", it.Done, it.Total)
}

// Elapsed is the run time so far, rounded to the second
func (it JobListItem) Elapsed(now time.Time) time.Duration {
	end := now
	if it.EndTime != nil {
		end = *it.EndTime
	}
	return end.Sub(it.StartTime).Round(time.Second)
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>docdenoise jobs</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 4px 10px; border-bottom: 1px solid #ddd; text-align: left; }
.completed { color: #2a7; } .failed { color: #c33; } .cancelled { color: #888; } .running { color: #27c; }
</style>
</head>
<body>
<h1>Jobs</h1>
`

const pageTail = `</body>
</html>
`

// JobList renders the job list page
func JobList(items []JobListItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(pageHead)

		if len(items) == 0 {
			b.WriteString("<p>No jobs yet. Submit one with POST /api/v1/jobs.</p>\n")
		} else {
			b.WriteString("<table>\n<tr><th>ID</th><th>Kind</th><th>State</th><th>Filter</th><th>Input</th><th>Progress</th><th>RMSE</th><th>Elapsed</th><th>Error</th></tr>\n")
			now := time.Now()
			for _, it := range items {
				rmse := ""
				if it.RMSE > 0 {
					rmse = fmt.Sprintf("%.5f", it.RMSE)
					if it.InitialRMSE > 0 {
						rmse += fmt.Sprintf(" (from %.5f)", it.InitialRMSE)
					}
				}
				fmt.Fprintf(&b, "<tr><td><a href=\"/api/v1/jobs/%s/status\">%s</a></td><td>%s</td><td class=\"%s\">%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
					templ.EscapeString(it.ID),
					templ.EscapeString(shortID(it.ID)),
					templ.EscapeString(it.Kind),
					templ.EscapeString(it.State),
					templ.EscapeString(it.State),
					templ.EscapeString(it.Filter),
					templ.EscapeString(it.InputDir),
					templ.EscapeString(it.Progress()),
					rmse,
					it.Elapsed(now),
					templ.EscapeString(it.Error),
				)
			}
			b.WriteString("</table>\n")
		}

		b.WriteString(pageTail)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
