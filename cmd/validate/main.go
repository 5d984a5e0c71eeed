// Command validate checks the integrity of a generated RAINCELL.DAT: header
// fields, row layout, point coverage against the basin grid and value ranges.
//
// Usage:
//
//	go run ./cmd/validate output/2018-10-18_09:00:00_250m/RAINCELL.DAT \
//	  --points data/points/kelani_basin_points_250m.txt --backward 2 --forward 3
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/couchcryptid/raincell-etl/internal/adapter/points"
	"github.com/couchcryptid/raincell-etl/internal/config"
	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/couchcryptid/raincell-etl/internal/raincell"
)

type cli struct {
	File     string  `arg:"" type:"existingfile" help:"RAINCELL file to check."`
	Points   string  `type:"existingfile" help:"Point grid the file must cover exactly."`
	Backward int     `short:"b" default:"-1" help:"Expected historical days."`
	Forward  int     `short:"f" default:"-1" help:"Expected forecast days."`
	MaxValue float64 `default:"500" help:"Largest plausible rainfall per step in mm."`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	var c cli
	kong.Parse(&c, kong.Name("validate"), kong.Description("Check a RAINCELL file."))
	os.Exit(run(c, os.Stdout))
}

func run(c cli, out io.Writer) int {
	fmt.Fprintln(out, "=== RAINCELL Integrity Validation ===")
	fmt.Fprintln(out)

	f, err := raincell.ReadFile(c.File, config.Location)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateHeader(f),
		validateValues(f, c.MaxValue),
	}
	if c.Backward >= 0 || c.Forward >= 0 {
		phases = append(phases, validateWindow(f, c.Backward, c.Forward))
	}
	if c.Points != "" {
		pts, err := points.Load(c.Points)
		if err != nil {
			fmt.Fprintf(out, "FATAL: load point grid: %v\n", err)
			return 1
		}
		phases = append(phases, validateCoverage(f, pts))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Header: %d min, %d steps, %s to %s; %d points\n",
		f.Header.ResolutionMinutes, f.Header.TotalSteps,
		f.Header.Start.Format(domain.TimestampLayout), f.Header.End.Format(domain.TimestampLayout), len(f.IDs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validateHeader(f *raincell.File) *phase {
	p := &phase{name: "Header consistency"}
	h := f.Header
	if _, err := domain.StepsPerDay(h.ResolutionMinutes); err != nil {
		p.errorf("%v", err)
	}
	span := h.End.Sub(h.Start)
	if want := time.Duration(h.TotalSteps*h.ResolutionMinutes) * time.Minute; span != want {
		p.errorf("start to end spans %s, %d steps of %d min is %s", span, h.TotalSteps, h.ResolutionMinutes, want)
	}
	if !domain.TruncateHour(h.Start, h.Start.Location()).Equal(h.Start) {
		p.errorf("start %s is not on the hour", h.Start.Format(domain.TimestampLayout))
	}
	return p
}

func validateWindow(f *raincell.File, backward, forward int) *phase {
	p := &phase{name: "Run window"}
	h := f.Header
	spd, err := domain.StepsPerDay(h.ResolutionMinutes)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if backward >= 0 && forward >= 0 {
		if want := (backward + forward) * spd; h.TotalSteps != want {
			p.errorf("%d steps, %d+%d days at %d min is %d", h.TotalSteps, backward, forward, h.ResolutionMinutes, want)
		}
	}
	days := h.TotalSteps / spd
	if h.TotalSteps%spd != 0 {
		p.errorf("%d steps is not a whole number of days", h.TotalSteps)
	}
	if backward > days || forward > days {
		p.errorf("window of %d days cannot hold %d historical or %d forecast days", days, backward, forward)
	}
	return p
}

func validateValues(f *raincell.File, maxValue float64) *phase {
	p := &phase{name: "Value ranges"}
	for i, id := range f.IDs {
		for step, v := range f.Values[i] {
			if v < 0 || v > maxValue {
				p.errorf("point %d step %d: %.1f outside [0, %g]", id, step, v, maxValue)
			}
		}
	}
	return p
}

func validateCoverage(f *raincell.File, pts []domain.BasinPoint) *phase {
	p := &phase{name: "Point grid coverage"}
	inFile := make(map[int]bool, len(f.IDs))
	for _, id := range f.IDs {
		inFile[id] = true
	}
	inGrid := make(map[int]bool, len(pts))
	for _, pt := range pts {
		inGrid[pt.ID] = true
		if !inFile[pt.ID] {
			p.errorf("grid point %d missing from file", pt.ID)
		}
	}
	for _, id := range f.IDs {
		if !inGrid[id] {
			p.errorf("file point %d not in grid", id)
		}
	}
	return p
}
