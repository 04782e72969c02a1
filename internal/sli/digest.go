package sli

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/donaldgifford/slo-reporter/internal/report"
	"github.com/donaldgifford/slo-reporter/internal/store"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// Digest is a class summarizing the daily tables advise-reporter writes to
// the private bucket under the class name. It sends no queries, and nothing
// it computes is stored or pushed.
type Digest interface {
	Indicator
	// Days is how many daily tables, ending on the run date, are read.
	Days() int
	// Summarize aggregates the records of every table read.
	Summarize(records []store.Record) (domain.Values, report.Section)
}

type digest struct {
	name        string
	title       string
	description string
	columns     []string
	headers     []string
	days        int
	summarize   func(records []store.Record) (domain.Values, [][]string)
}

func (d *digest) Name() string            { return d.name }
func (d *digest) Title() string           { return d.title }
func (d *digest) Days() int               { return d.days }
func (d *digest) Columns() []string       { return slices.Clone(d.columns) }
func (d *digest) Queries() []domain.Query { return nil }

func (d *digest) Evaluate(domain.Values) domain.Values { return domain.Values{} }

// Render is used when no daily tables could be read, as in dry-run.
func (d *digest) Render(domain.Values, *domain.Row) report.Section {
	_, s := d.Summarize(nil)
	return s
}

func (d *digest) ToRow(_ domain.Values, _ *domain.Row, at time.Time) domain.Row {
	return domain.Row{Class: d.name, Date: at, Values: domain.Values{}}
}

func (d *digest) Summarize(records []store.Record) (domain.Values, report.Section) {
	values, rows := d.summarize(records)
	s := report.Section{
		Name:        d.name,
		Title:       d.title,
		Description: d.description,
		Headers:     d.headers,
		Rows:        rows,
	}
	if len(rows) == 0 {
		s.Description = fmt.Sprintf("No advise-reporter data for the last %d days.", d.days)
	}
	return values, s
}

func newDigests(p Params) []Indicator {
	return []Indicator{
		&digest{
			name:        "adviser_hardware_info",
			title:       "Adviser Inputs: Hardware",
			description: "CPUs of the runtime environments users asked advice for.",
			columns:     []string{"cpu_model", "cpu_family", "total"},
			headers:     []string{"CPU model", "CPU family", "New", "Percentage"},
			days:        p.AdviserDays,
			summarize:   summarizeHardware,
		},
		&digest{
			name:        "adviser_base_image_info",
			title:       "Adviser Inputs: Base Images",
			description: "Base images of the runtime environments users asked advice for.",
			columns:     []string{"base_image", "total"},
			headers:     []string{"Base image", "New", "Percentage"},
			days:        p.AdviserDays,
			summarize:   summarizeShares("base_image", func(k string) []string { return []string{k} }),
		},
		&digest{
			name:        "adviser_solver_info",
			title:       "Adviser Inputs: Solvers",
			description: "Operating systems and Python versions users asked advice for.",
			columns:     []string{"solver", "total"},
			headers:     []string{"OS", "OS version", "Python", "New", "Percentage"},
			days:        p.AdviserDays,
			summarize:   summarizeShares("solver", splitSolver),
		},
		&digest{
			name:        "adviser_statistics",
			title:       "Adviser Reports Statistics",
			description: "Share of adviser runs that produced a report, per adviser version.",
			columns:     []string{"adviser_version", "success", "failure"},
			headers:     []string{"Adviser version", "Success", "Failure"},
			days:        p.AdviserDays,
			summarize:   summarizeStatistics,
		},
		&digest{
			name:        "adviser_justifications",
			title:       "Adviser Errors",
			description: "Error justifications reported by adviser, per adviser version.",
			columns:     []string{"message", "total", "type", "adviser_version"},
			headers:     []string{"Adviser version", "Justification", "New", "Percentage"},
			days:        p.AdviserDays,
			summarize:   summarizeJustifications,
		},
	}
}

// tally sums counts per key.
type tally struct {
	counts map[string]float64
	total  float64
}

func newTally() *tally {
	return &tally{counts: map[string]float64{}}
}

func (t *tally) add(key string, n float64) {
	t.counts[key] += n
	t.total += n
}

// keys returns the keys by count, largest first, then by name.
func (t *tally) keys() []string {
	keys := make([]string, 0, len(t.counts))
	for k := range t.counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(t.counts[b], t.counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return keys
}

// share is the percentage of the total held by key, to three decimals.
func (t *tally) share(key string) float64 {
	if t.total == 0 {
		return 0
	}
	return round(t.counts[key]/t.total*100, 3)
}

// count parses a daily total. Unparsable totals are skipped.
func count(r store.Record, col string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(r[col]), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatNew(n float64) string {
	if n == 0 {
		return "0"
	}
	return fmt.Sprintf("+%d", int64(n))
}

func formatShare(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

func summarizeHardware(records []store.Record) (domain.Values, [][]string) {
	t := newTally()
	parts := map[string][2]string{}
	for _, r := range records {
		n, ok := count(r, "total")
		if !ok {
			continue
		}
		key := r["cpu_model"] + "-" + r["cpu_family"]
		parts[key] = [2]string{r["cpu_model"], r["cpu_family"]}
		t.add(key, n)
	}

	values := make(domain.Values, len(t.counts))
	var rows [][]string
	for _, k := range t.keys() {
		values[k] = domain.Measured(t.counts[k])
		rows = append(rows, []string{parts[k][0], parts[k][1], formatNew(t.counts[k]), formatShare(t.share(k))})
	}
	return values, rows
}

// summarizeShares tallies the totals per value of col. label expands a value
// into its leading report cells.
func summarizeShares(col string, label func(string) []string) func([]store.Record) (domain.Values, [][]string) {
	return func(records []store.Record) (domain.Values, [][]string) {
		t := newTally()
		for _, r := range records {
			if n, ok := count(r, "total"); ok {
				t.add(r[col], n)
			}
		}

		values := make(domain.Values, len(t.counts))
		var rows [][]string
		for _, k := range t.keys() {
			values[k] = domain.Measured(t.counts[k])
			row := append(label(k), formatNew(t.counts[k]), formatShare(t.share(k)))
			rows = append(rows, row)
		}
		return values, rows
	}
}

// splitSolver expands a solver name such as rhel-8-py38 into OS, OS version
// and Python version.
func splitSolver(solver string) []string {
	parts := strings.SplitN(solver, "-", 3)
	if len(parts) != 3 {
		return []string{solver, "", ""}
	}
	py, ok := strings.CutPrefix(parts[2], "py")
	if !ok || len(py) < 2 || strings.Trim(py, "0123456789") != "" {
		return []string{solver, "", ""}
	}
	return []string{parts[0], parts[1], py[:1] + "." + py[1:]}
}

func summarizeStatistics(records []store.Record) (domain.Values, [][]string) {
	success, failure := map[string]float64{}, map[string]float64{}
	var versions []string
	for _, r := range records {
		s, okS := count(r, "success")
		f, okF := count(r, "failure")
		if !okS || !okF {
			continue
		}
		v := r["adviser_version"]
		if _, seen := success[v]; !seen {
			versions = append(versions, v)
		}
		success[v] += s
		failure[v] += f
	}
	slices.Sort(versions)

	values := make(domain.Values, 2*len(versions))
	rows := make([][]string, 0, len(versions))
	for _, v := range versions {
		var sp, fp float64
		if total := success[v] + failure[v]; total > 0 {
			sp = round(success[v]/total*100, 3)
			fp = round(failure[v]/total*100, 3)
		}
		values[v+"/success"] = domain.Measured(sp)
		values[v+"/failure"] = domain.Measured(fp)
		rows = append(rows, []string{v, formatShare(sp), formatShare(fp)})
	}
	return values, rows
}

func summarizeJustifications(records []store.Record) (domain.Values, [][]string) {
	byVersion := map[string]*tally{}
	for _, r := range records {
		if r["type"] != "ERROR" {
			continue
		}
		n, ok := count(r, "total")
		if !ok {
			continue
		}
		t, ok := byVersion[r["adviser_version"]]
		if !ok {
			t = newTally()
			byVersion[r["adviser_version"]] = t
		}
		t.add(r["message"], n)
	}

	versions := make([]string, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}
	slices.Sort(versions)

	values := domain.Values{}
	var rows [][]string
	for _, v := range versions {
		t := byVersion[v]
		for _, msg := range t.keys() {
			values[v+"/"+msg] = domain.Measured(t.counts[msg])
			rows = append(rows, []string{v, msg, formatNew(t.counts[msg]), formatShare(t.share(msg))})
		}
	}
	return values, rows
}
