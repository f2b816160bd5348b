package replay

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	repository "github.com/okian/warden/internal/adapters/repository"
	"github.com/okian/warden/internal/domain/detection"
)

// EntityReport is the final state of one scenario entity.
type EntityReport struct {
	Name       string                `json:"name"`
	Entity     uuid.UUID             `json:"entity"`
	Online     bool                  `json:"online"`
	Health     float64               `json:"health"`
	Certainty  map[string]float64    `json:"certainty"`
	Detections []detection.Detection `json:"detections"`
}

// Report is the outcome of one scenario run.
type Report struct {
	Scenario string               `json:"scenario"`
	Ticks    uint64               `json:"ticks"`
	Entities []EntityReport       `json:"entities"`
	Suspects []repository.Suspect `json:"-"`
	byName   map[string]int
}

func newReport(name string) *Report {
	return &Report{Scenario: name, byName: make(map[string]int)}
}

func (r *Report) set(er EntityReport) {
	if i, ok := r.byName[er.Name]; ok {
		r.Entities[i] = er
		return
	}
	r.byName[er.Name] = len(r.Entities)
	r.Entities = append(r.Entities, er)
}

// Entity returns the report for the named entity.
func (r *Report) Entity(name string) (EntityReport, bool) {
	i, ok := r.byName[name]
	if !ok {
		return EntityReport{}, false
	}
	return r.Entities[i], true
}

// DetectionCount returns the number of detections across every entity.
func (r *Report) DetectionCount() int {
	n := 0
	for _, e := range r.Entities {
		n += len(e.Detections)
	}
	return n
}

// WriteText prints a table of entities followed by every detection.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "scenario %q after %d ticks\n\n", r.Scenario, r.Ticks)
	fmt.Fprintln(tw, "ENTITY\tONLINE\tHEALTH\tCHECK\tCERTAINTY\tDETECTIONS")
	for _, e := range r.Entities {
		checks := make([]string, 0, len(e.Certainty))
		for c := range e.Certainty {
			checks = append(checks, c)
		}
		sort.Strings(checks)
		for _, c := range checks {
			fmt.Fprintf(tw, "%s\t%t\t%.1f\t%s\t%s\t%d\n",
				e.Name, e.Online, e.Health, c, formatCertainty(e.Certainty[c]), len(e.Detections))
		}
	}
	if n := r.DetectionCount(); n > 0 {
		fmt.Fprintf(tw, "\nDETECTIONS (%d)\n", n)
		fmt.Fprintln(tw, "ENTITY\tCHECK\tVERSION\tCERTAINTY\tID")
		for _, e := range r.Entities {
			for _, d := range e.Detections {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", e.Name, d.Check, d.Version, d.Certainty, d.ID)
			}
		}
	}
	return tw.Flush()
}

// WriteJSON encodes the report.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func formatCertainty(c float64) string {
	if c == detection.NoSamples {
		return "-"
	}
	return fmt.Sprintf("%.2f", c)
}
