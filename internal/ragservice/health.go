package ragservice

import (
	"context"
	"time"
)

// HealthCheck probes the vector store and embedding client, reporting
// per-component status and an overall healthy flag that is true only
// if every component reports ok.
func (s *Service) HealthCheck(ctx context.Context) HealthResult {
	components := make(map[string]HealthComponent)
	healthy := true

	if err := s.store.Health(ctx); err != nil {
		components["vector_store"] = HealthComponent{Status: "error", Detail: err.Error()}
		healthy = false
	} else {
		components["vector_store"] = HealthComponent{Status: "ok"}
	}

	if _, err := s.embedder.EmbedDense(ctx, []string{"test"}); err != nil {
		components["embeddings"] = HealthComponent{Status: "error", Detail: err.Error()}
		healthy = false
	} else {
		components["embeddings"] = HealthComponent{Status: "ok"}
	}

	return HealthResult{
		Healthy:    healthy,
		Components: components,
		Timestamp:  time.Now().UTC(),
	}
}
