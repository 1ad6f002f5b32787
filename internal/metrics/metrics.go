package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and script jobs.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	jobsSubmitted int64
	jobsRunning   int64
	jobsFinished  = make(map[string]int64)

	retentionJobsDeleted int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordJobSubmitted counts a newly queued job.
func RecordJobSubmitted() {
	mu.Lock()
	defer mu.Unlock()
	jobsSubmitted++
}

// RecordJobStarted increments the gauge of executing jobs.
func RecordJobStarted() {
	mu.Lock()
	defer mu.Unlock()
	jobsRunning++
}

// RecordJobFinished counts a terminal transition. wasRunning tells whether
// the job had been executing, in which case the running gauge drops.
func RecordJobFinished(status string, wasRunning bool) {
	mu.Lock()
	defer mu.Unlock()
	jobsFinished[status]++
	if wasRunning && jobsRunning > 0 {
		jobsRunning--
	}
}

// RecordRetentionJobs increments the counter of jobs deleted by TTL.
func RecordRetentionJobs(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted += deleted
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP scriptd_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE scriptd_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "scriptd_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP scriptd_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE scriptd_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP scriptd_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE scriptd_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		sum := latencyMsSum[k]
		cnt := latencyMsCount[k]
		fmt.Fprintf(&b, "scriptd_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, sum)
		fmt.Fprintf(&b, "scriptd_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, cnt)
	}

	// Job metrics
	b.WriteString("# HELP scriptd_jobs_submitted_total Total submitted script jobs\n")
	b.WriteString("# TYPE scriptd_jobs_submitted_total counter\n")
	fmt.Fprintf(&b, "scriptd_jobs_submitted_total %d\n", jobsSubmitted)

	b.WriteString("# HELP scriptd_jobs_running Script jobs currently executing\n")
	b.WriteString("# TYPE scriptd_jobs_running gauge\n")
	fmt.Fprintf(&b, "scriptd_jobs_running %d\n", jobsRunning)

	b.WriteString("# HELP scriptd_jobs_finished_total Script jobs that reached a terminal status\n")
	b.WriteString("# TYPE scriptd_jobs_finished_total counter\n")

	var statuses []string
	for s := range jobsFinished {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "scriptd_jobs_finished_total{status=\"%s\"} %d\n", s, jobsFinished[s])
	}

	// Retention metrics
	b.WriteString("# HELP scriptd_retention_jobs_deleted_total Total jobs deleted by TTL\n")
	b.WriteString("# TYPE scriptd_retention_jobs_deleted_total counter\n")
	fmt.Fprintf(&b, "scriptd_retention_jobs_deleted_total %d\n", retentionJobsDeleted)

	return b.String()
}
