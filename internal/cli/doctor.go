package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/serialdisplay/internal/config"
	"github.com/rileyhilliard/serialdisplay/internal/doctor"
	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/metrics"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
	"github.com/rileyhilliard/serialdisplay/internal/tray"
)

var doctorJSON bool

// doctorCmd diagnoses the setup
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, serial ports and metric reads",
	Long: `Run diagnostic checks and report anything that would stop streaming:
an invalid config, no serial ports, a port that can't be opened, or CPU and
memory readings that fail.

Exits non-zero when any check fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.OutOrStdout(), controllerDeps{}, doctorJSON)
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

func doctorCommand(w io.Writer, deps controllerDeps, asJSON bool) error {
	checks := collectChecks(deps)
	// The CPU reading blocks for its sample interval; run the rest alongside it.
	results := doctor.RunAllParallel(checks)

	var err error
	if asJSON {
		err = outputDoctorJSON(w, checks, results)
	} else {
		outputDoctorText(w, checks, results)
	}
	if err != nil {
		return err
	}
	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

// collectChecks builds the checks for the effective config. An unreadable
// config still yields the serial and metrics checks, using defaults.
func collectChecks(deps controllerDeps) []doctor.Check {
	ports := deps.Ports
	if ports == nil {
		ports = serialport.OSEnumerator{}
	}
	opener := deps.Opener
	if opener == nil {
		opener = serialport.OSOpener{}
	}
	reader := deps.Reader
	if reader == nil {
		reader = metrics.NewSampler(nil)
	}

	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil || config.Validate(cfg) != nil {
		cfg = config.DefaultConfig()
	}

	return []doctor.Check{
		&doctor.ConfigFileCheck{ConfigPath: cfgFile},
		&doctor.ConfigValidCheck{ConfigPath: cfgFile},
		&doctor.PortsCheck{Ports: ports},
		&doctor.PortOpenCheck{Port: cfg.Port, BaudRate: cfg.BaudRate, Ports: ports, Opener: opener},
		&doctor.MetricsCheck{Reader: reader},
	}
}

func outputDoctorJSON(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) error {
	grouped := doctor.GroupByCategory(checks)

	output := DoctorOutput{}
	for _, cat := range doctor.CategoryOrder {
		indices := grouped[cat]
		if len(indices) == 0 {
			continue
		}
		co := CategoryOutput{Name: cat}
		for _, i := range indices {
			co.Results = append(co.Results, results[i])
		}
		output.Categories = append(output.Categories, co)
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: !doctor.HasIssues(results),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func outputDoctorText(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) {
	passStyle := lipgloss.NewStyle().Foreground(tray.ColorHealthy)
	warnStyle := lipgloss.NewStyle().Foreground(tray.ColorWarning)
	failStyle := lipgloss.NewStyle().Foreground(tray.ColorCritical)
	mutedStyle := lipgloss.NewStyle().Foreground(tray.ColorTextMuted)
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("serialdisplay diagnostics"))
	fmt.Fprintln(w)

	grouped := doctor.GroupByCategory(checks)
	for _, cat := range doctor.CategoryOrder {
		indices := grouped[cat]
		if len(indices) == 0 {
			continue
		}
		fmt.Fprintln(w, headerStyle.Render(cat))
		for _, i := range indices {
			r := results[i]
			symbol, style := "✓", passStyle
			switch r.Status {
			case doctor.StatusWarn:
				symbol, style = "!", warnStyle
			case doctor.StatusFail:
				symbol, style = "✗", failStyle
			}
			fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), r.Message)
			if r.Suggestion != "" && r.Status != doctor.StatusPass {
				fmt.Fprintf(w, "    %s\n", mutedStyle.Render(r.Suggestion))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 40))
	fmt.Fprintln(w, doctor.Summary(results))
}
