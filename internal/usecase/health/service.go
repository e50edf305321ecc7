package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates that no search backend is reachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckPending indicates a component that is still warming up.
	CheckPending CheckResult = "pending"
)

// Component names in Report.Checks.
const (
	ComponentVectorStore  = "vector_store"
	ComponentDirectory    = "directory"
	ComponentEmbedding    = "embedding"
	ComponentKeywordIndex = "keyword_index"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	store     Pinger
	directory Pinger
	embedding EmbeddingChecker
	keywords  IndexStatus
}

// New creates a Service. embedding and keywords can be nil.
func New(store, directory Pinger, embedding EmbeddingChecker, keywords IndexStatus) *Service {
	return &Service{store: store, directory: directory, embedding: embedding, keywords: keywords}
}

// Check runs health checks against all components. The service is unhealthy
// when both the vector store and the directory are down, degraded when any
// single check fails or the keyword index is not built yet.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[ComponentVectorStore] = result(s.store.Ping(ctx))
	checks[ComponentDirectory] = result(s.directory.Ping(ctx))

	if s.embedding != nil {
		checks[ComponentEmbedding] = result(s.embedding.HealthCheck(ctx))
	}

	if s.keywords != nil {
		if s.keywords.Built() {
			checks[ComponentKeywordIndex] = CheckOK
		} else {
			checks[ComponentKeywordIndex] = CheckPending
		}
	}

	if checks[ComponentVectorStore] == CheckError && checks[ComponentDirectory] == CheckError {
		return Report{Status: Unhealthy, Checks: checks}
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
