// Package probe tests reachability of the direct-connection backend and races
// candidate ports for the first usable connection.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"questionbank/internal/metrics"
)

const (
	// DefaultPort is the conventional Postgres port.
	DefaultPort = 5432
	// PooledPort is the connection-pooler port, preferred when nothing else decides.
	PooledPort = 6543

	ProbeTimeout     = 5 * time.Second
	HandshakeTimeout = 10 * time.Second
	raceSlack        = 2 * time.Second
	maxWorkers       = 4
)

// Candidate is one port to try.
type Candidate struct {
	Name string
	Port int
}

// DefaultCandidates returns the conventional and pooled ports.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Name: "default", Port: DefaultPort},
		{Name: "pooled", Port: PooledPort},
	}
}

// Result is the outcome of a socket probe.
type Result struct {
	Candidate Candidate
	Reachable bool
	Latency   time.Duration
	Err       string
}

// Probe dials host:port without authenticating. It never returns an error;
// failures are recorded in the result.
func Probe(ctx context.Context, host string, c Candidate, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = ProbeTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(c.Port)))
	elapsed := time.Since(start)
	port := strconv.Itoa(c.Port)
	if err != nil {
		metrics.ProbeAttemptsTotal.WithLabelValues("probe", port, "failed").Inc()
		return Result{Candidate: c, Err: err.Error()}
	}
	_ = conn.Close()
	metrics.ProbeAttemptsTotal.WithLabelValues("probe", port, "ok").Inc()
	return Result{Candidate: c, Reachable: true, Latency: elapsed}
}

// ProbeAll probes every candidate in order, one after another.
func ProbeAll(ctx context.Context, host string, candidates []Candidate, timeout time.Duration) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Probe(ctx, host, c, timeout))
	}
	return results
}

// Pick returns the reachable candidate with the lowest latency. A tie, or no
// reachable candidate, falls back to the probed candidate named "pooled", or
// to the last one probed. The choice still has to be validated with a real
// connection.
func Pick(results []Result) Candidate {
	var best *Result
	tie := false
	for i := range results {
		r := &results[i]
		if !r.Reachable {
			continue
		}
		switch {
		case best == nil || r.Latency < best.Latency:
			best = r
			tie = false
		case r.Latency == best.Latency:
			tie = true
		}
	}
	if best == nil || tie {
		return fallback(results)
	}
	return best.Candidate
}

func fallback(results []Result) Candidate {
	for _, r := range results {
		if r.Candidate.Name == "pooled" {
			return r.Candidate
		}
	}
	if len(results) > 0 {
		return results[len(results)-1].Candidate
	}
	return Candidate{Name: "pooled", Port: PooledPort}
}

// Recommend probes candidates one after another and picks one. Nil
// candidates mean DefaultCandidates.
func Recommend(ctx context.Context, host string, candidates []Candidate, timeout time.Duration) (Candidate, []Result) {
	if candidates == nil {
		candidates = DefaultCandidates()
	}
	results := ProbeAll(ctx, host, candidates, timeout)
	return Pick(results), results
}

// Report renders probe results as a human-readable status block.
func Report(host string, results []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Network status for %s\n", host)
	for _, r := range results {
		if r.Reachable {
			fmt.Fprintf(&b, "  %-8s port %-5d reachable   %s\n", r.Candidate.Name, r.Candidate.Port, r.Latency.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(&b, "  %-8s port %-5d unreachable %s\n", r.Candidate.Name, r.Candidate.Port, r.Err)
	}
	rec := Pick(results)
	fmt.Fprintf(&b, "Recommended: %s (port %d)\n", rec.Name, rec.Port)
	return b.String()
}
