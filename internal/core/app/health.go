package app

import (
	"context"
	"duchain/internal/shared/observability"
	"fmt"
	"time"
)

// HealthService reports readiness for the /health endpoint.
type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.store.Gate().Ready() {
		status.Components["builtins"] = "loaded"
	} else {
		status.Status = "starting"
		status.Components["builtins"] = "loading"
	}

	status.Components["units"] = fmt.Sprintf("%d loaded", len(s.app.store.Units()))
	status.Components["index"] = fmt.Sprintf("%s (%d entries)", s.app.Config.Index.Backend, s.app.index.Len())
	if stale := s.app.store.StaleUnits(); len(stale) > 0 {
		status.Components["stale_units"] = fmt.Sprintf("%d", len(stale))
	}
	return status
}
