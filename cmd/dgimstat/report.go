package main

import (
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/kwertop/dgimstat/filters"
	"github.com/kwertop/dgimstat/tracker"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func renderParameters(w io.Writer, rows [][]string) {
	table := newTable(w, "Parameter", "Value")
	table.AppendBulk(rows)
	table.Render()
}

func renderFrequencies(w io.Writer, frequencies []tracker.Frequency, withActual bool) {
	header := []string{"Hashtag", "k (ms)", "DGIM"}
	if withActual {
		header = append(header, "Actual", "Abs. Error", "Rel. Error")
	}
	table := newTable(w, header...)
	for _, f := range frequencies {
		row := []string{"#" + f.Hashtag, strconv.FormatInt(f.K, 10), strconv.FormatUint(f.Approx, 10)}
		if withActual {
			row = append(row,
				strconv.FormatUint(f.Actual, 10),
				strconv.FormatInt(f.AbsError, 10),
				formatPercent(f.RelError),
			)
		}
		table.Append(row)
	}
	table.Render()
}

func formatPercent(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 3, 64) + "%"
}

func renderFilterStats(w io.Writer, stats filters.FilterStats, countFalsePositives bool) {
	table := newTable(w, "Statistic", "Value")
	table.Append([]string{"Tweets analyzed", strconv.FormatUint(stats.Analyzed, 10)})
	table.Append([]string{"Tweets discarded", strconv.FormatUint(stats.Discarded, 10)})
	table.Append([]string{"Tweets accepted", strconv.FormatUint(stats.Accepted, 10)})
	if countFalsePositives {
		table.Append([]string{"False positives", strconv.FormatUint(stats.FalsePositives, 10)})
		table.Append([]string{"Colliding hashtags", strings.Join(stats.CollidingHashtags, ", ")})
	}
	table.Render()
}

type step struct {
	name    string
	elapsed time.Duration
}

func renderTimings(w io.Writer, steps []step) {
	table := newTable(w, "Step", "Runtime")
	for _, s := range steps {
		table.Append([]string{s.name, s.elapsed.String()})
	}
	table.Render()
}
