// cbcompare drives this module's circuit breaker and sony/gobreaker through
// identical outcome scripts and reports where their decisions diverge.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angeloszaimis/resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/resilience/internal/clock"
)

type scenario struct {
	Name   string
	Script string // S success, F failure, w wait out the open period
}

type step struct {
	Index         int
	Action        byte
	LocalAdmitted bool
	RefAdmitted   bool
	LocalState    string
	RefState      string
}

func (s step) agrees() bool {
	return s.LocalAdmitted == s.RefAdmitted && s.LocalState == s.RefState
}

type result struct {
	Scenario    scenario
	Steps       []step
	Divergences int
}

var (
	openWait   = flag.Duration("open-wait", 200*time.Millisecond, "Open state wait for both breakers")
	reportPath = flag.String("report", "cbcompare_results.md", "Markdown report path")
)

var errScripted = errors.New("scripted failure")

func main() {
	flag.Parse()

	scenarios := []scenario{
		{"clean run", "SSSSSSSS"},
		{"failure burst", "FFFFSS"},
		{"mixed load", "SFSFSFSF"},
		{"trailing success", "FFFSSS"},
		{"sliding window", "SSSSSSSSFFFF"},
		{"recovery", "FFFFwSS"},
		{"failed probe", "FFFFwFwSS"},
	}

	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║     CIRCUIT BREAKER COMPARISON: local vs sony/gobreaker        ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nSettings: 50%% failure threshold, 4 call minimum, window 8, open wait %v\n", *openWait)

	var results []result
	for _, sc := range scenarios {
		fmt.Printf("\n━━━ %s ━━━\n", sc.Name)
		res := runScenario(sc)
		if res.Divergences == 0 {
			fmt.Println("  ✓ Decisions match")
		} else {
			fmt.Printf("  ✗ %d diverging steps\n", res.Divergences)
		}
		results = append(results, res)
	}

	generateReport(results)
	fmt.Printf("\n✓ Comparison complete! Results saved to %s\n", *reportPath)
}

func runScenario(sc scenario) result {
	local := circuitbreaker.New(circuitbreaker.Config{
		FailureRateThreshold:   50,
		MinimumCalls:           4,
		WindowSize:             8,
		OpenStateWait:          *openWait,
		HalfOpenPermittedCalls: 2,
	}, clock.NewSystem())

	ref := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "reference",
		MaxRequests: 2,
		Timeout:     *openWait,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 4 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})

	res := result{Scenario: sc}

	fmt.Printf("  %-5s %-7s %-20s %-20s %s\n", "step", "action", "local", "gobreaker", "agree")
	for i, action := range []byte(sc.Script) {
		if action == 'w' {
			fmt.Printf("  %-5d %-7s waiting out the open period\n", i+1, "wait")
			time.Sleep(*openWait + 50*time.Millisecond)
			continue
		}

		fail := action == 'F'

		localAdmitted := false
		if permit, err := local.Acquire(); err == nil {
			localAdmitted = true
			outcome := circuitbreaker.OutcomeSuccess
			if fail {
				outcome = circuitbreaker.OutcomeFailure
			}
			local.Record(permit, outcome, 0)
		}

		_, err := ref.Execute(func() (any, error) {
			if fail {
				return nil, errScripted
			}
			return nil, nil
		})
		refAdmitted := !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests)

		st := step{
			Index:         i + 1,
			Action:        action,
			LocalAdmitted: localAdmitted,
			RefAdmitted:   refAdmitted,
			LocalState:    local.State().String(),
			RefState:      strings.ToUpper(ref.State().String()),
		}
		if !st.agrees() {
			res.Divergences++
		}
		res.Steps = append(res.Steps, st)

		agree := "✓"
		if !st.agrees() {
			agree = "✗"
		}
		fmt.Printf("  %-5d %-7s %-20s %-20s %s\n",
			st.Index, actionName(st.Action),
			decision(st.LocalAdmitted)+" "+st.LocalState,
			decision(st.RefAdmitted)+" "+st.RefState,
			agree)
	}

	return res
}

func actionName(action byte) string {
	if action == 'F' {
		return "fail"
	}
	return "ok"
}

func decision(admitted bool) string {
	if admitted {
		return "admit"
	}
	return "reject"
}

func generateReport(results []result) {
	total := 0
	var sb strings.Builder

	sb.WriteString("# Circuit Breaker Comparison\n\n")
	sb.WriteString(fmt.Sprintf("**Test Date:** %s  \n", time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString("**Reference:** sony/gobreaker/v2  \n")
	sb.WriteString(fmt.Sprintf("**Settings:** 50%% failure threshold, 4 call minimum, window 8, open wait %v, 2 half-open probes\n\n", *openWait))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Scenario | Script | Steps | Diverging |\n")
	sb.WriteString("|----------|--------|------:|----------:|\n")
	for _, res := range results {
		sb.WriteString(fmt.Sprintf("| %s | `%s` | %d | %d |\n",
			res.Scenario.Name, res.Scenario.Script, len(res.Steps), res.Divergences))
		total += res.Divergences
	}

	sb.WriteString("\n## Known Differences\n\n")
	sb.WriteString("- The local breaker re-evaluates the failure ratio on every recorded outcome, so a success can complete the window that trips it. gobreaker evaluates only when a failure is recorded.\n")
	sb.WriteString("- The local window is a sliding ring over the last N calls. gobreaker accumulates counts since the last state change, so old successes keep diluting the ratio.\n\n")

	sb.WriteString("## Step Detail\n")
	for _, res := range results {
		sb.WriteString(fmt.Sprintf("\n### %s\n\n", res.Scenario.Name))
		sb.WriteString("| step | action | local | gobreaker | agree |\n")
		sb.WriteString("|-----:|--------|-------|-----------|:-----:|\n")
		for _, st := range res.Steps {
			agree := "✓"
			if !st.agrees() {
				agree = "✗"
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s %s | %s %s | %s |\n",
				st.Index, actionName(st.Action),
				decision(st.LocalAdmitted), st.LocalState,
				decision(st.RefAdmitted), st.RefState,
				agree))
		}
	}

	sb.WriteString(fmt.Sprintf("\n**Total diverging steps:** %d\n", total))

	if err := os.WriteFile(*reportPath, []byte(sb.String()), 0644); err != nil {
		fmt.Printf("  Could not write report: %v\n", err)
	}
}
