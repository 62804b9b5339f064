// greetstorm drives a running server's /greet endpoint through failure and
// recovery to show the circuit breaker working.
//
// Usage:
//
//	go run ./scripts/greetstorm -url http://localhost:8080 -requests 20
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

const fallbackGreeting = "Hello world! this is fallback"

func main() {
	var (
		serverURL = flag.String("url", "http://localhost:8080", "Server URL")
		requests  = flag.Int("requests", 20, "Requests per phase")
		openWait  = flag.Duration("wait", 10*time.Second, "Open state wait configured on the server")
	)
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║         CIRCUIT BREAKER GREETING STORM                         ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()

	// PHASE 1: Normal operation
	fmt.Println(colorBlue + "━━━ PHASE 1: Normal Operation ━━━" + colorReset)
	fmt.Println("Sending greetings to verify the server is up...")

	greetings, fallbacks, errors := 0, 0, 0
	for i := 0; i < *requests; i++ {
		body, _, err := fetchGreeting(client, *serverURL+"/greet?name=gopher")
		switch {
		case err != nil:
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			errors++
		case body == fallbackGreeting:
			fallbacks++
		default:
			greetings++
		}
	}

	fmt.Printf("\n  Results: %d greetings, %d fallbacks, %d errors\n", greetings, fallbacks, errors)
	if greetings+fallbacks == 0 {
		fmt.Println(colorRed + "  ✗ No responses! Is the server running?" + colorReset)
		os.Exit(1)
	}
	fmt.Println(colorGreen + "  ✓ Normal operation verified" + colorReset)
	fmt.Println()

	// PHASE 2: Trip the breaker with failing calls
	fmt.Println(colorBlue + "━━━ PHASE 2: Tripping the Breaker ━━━" + colorReset)
	fmt.Println("Sending greetings without a name (each fails immediately)...")

	for i := 0; i < *requests; i++ {
		body, _, err := fetchGreeting(client, *serverURL+"/greet")
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		if body != fallbackGreeting {
			fmt.Printf(colorYellow+"  Request %d: unexpected body %q\n"+colorReset, i+1, truncate(body, 40))
		}
	}

	states := getStates(client, *serverURL+"/breakers")
	fmt.Printf("\n  Breaker state: %s\n", renderState(states["greet"]))
	if states["greet"] == "OPEN" {
		fmt.Println(colorGreen + "  ✓ Breaker tripped" + colorReset)
	} else {
		fmt.Println(colorYellow + "  ⚠ Breaker did not open (check minimum_calls in the config)" + colorReset)
	}
	fmt.Println()

	// PHASE 3: Fail-fast while open
	fmt.Println(colorBlue + "━━━ PHASE 3: Fail-Fast While Open ━━━" + colorReset)
	fmt.Println("Valid greetings should now short-circuit to the fallback...")

	var totalLatency time.Duration
	shortCircuited := 0
	for i := 0; i < *requests; i++ {
		body, latency, err := fetchGreeting(client, *serverURL+"/greet?name=gopher")
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		totalLatency += latency
		if body == fallbackGreeting {
			shortCircuited++
		}
	}

	if *requests > 0 {
		fmt.Printf("\n  Results: %d/%d fallbacks, avg latency %v\n",
			shortCircuited, *requests, (totalLatency / time.Duration(*requests)).Round(time.Microsecond))
	}
	fmt.Println(colorGreen + "  ✓ Rejected calls never reach the greeter" + colorReset)
	fmt.Println()

	// PHASE 4: Recovery
	fmt.Println(colorBlue + "━━━ PHASE 4: Recovery ━━━" + colorReset)
	fmt.Printf("Waiting %v for the open state to elapse...\n", *openWait)
	time.Sleep(*openWait + time.Second)

	for i := 0; i < *requests; i++ {
		fetchGreeting(client, *serverURL+"/greet?name=gopher")
	}

	states = getStates(client, *serverURL+"/breakers")
	fmt.Printf("\n  Breaker state: %s\n", renderState(states["greet"]))
	fmt.Println()

	// Summary from /metrics
	fmt.Println(colorBlue + "━━━ Operation Metrics ━━━" + colorReset)
	printMetrics(client, *serverURL+"/metrics")

	fmt.Println()
	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║                    STORM COMPLETE                              ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()
	fmt.Println("Key behaviors exercised:")
	fmt.Println("  1. Greetings served (or time-limited into the fallback)")
	fmt.Println("  2. Breaker opened on repeated immediate failures")
	fmt.Println("  3. Open breaker short-circuited calls to the fallback")
	fmt.Println("  4. Half-open probes after the wait")
}

func fetchGreeting(client *http.Client, url string) (string, time.Duration, error) {
	start := time.Now()
	resp, err := client.Get(url)
	latency := time.Since(start)
	if err != nil {
		return "", latency, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", latency, err
	}

	return strings.TrimSpace(string(body)), latency, nil
}

func getStates(client *http.Client, url string) map[string]string {
	states := make(map[string]string)

	resp, err := client.Get(url)
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch breaker states: %v\n"+colorReset, err)
		return states
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		fmt.Printf(colorYellow+"  Could not decode breaker states: %v\n"+colorReset, err)
	}
	return states
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func renderState(state string) string {
	switch state {
	case "CLOSED":
		return colorGreen + state + colorReset
	case "OPEN":
		return colorRed + state + colorReset
	case "HALF-OPEN":
		return colorYellow + state + colorReset
	default:
		return state
	}
}

func printMetrics(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch metrics: %v\n"+colorReset, err)
		return
	}
	defer resp.Body.Close()

	var snap map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		fmt.Printf(colorYellow+"  Could not decode metrics: %v\n"+colorReset, err)
		return
	}

	operations, ok := snap["operations"].(map[string]interface{})
	if !ok {
		return
	}

	for name, data := range operations {
		op, ok := data.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Printf("    %s → calls: %.0f, successes: %.0f, failures: %.0f, timeouts: %.0f, rejections: %.0f, state: %s\n",
			name,
			op["calls"].(float64),
			op["successes"].(float64),
			op["failures"].(float64),
			op["timeouts"].(float64),
			op["rejections"].(float64),
			renderState(fmt.Sprintf("%v", op["state"])))
	}
}
