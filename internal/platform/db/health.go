package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 5 * time.Second

// PoolStats is a JSON view of pgxpool.Stat.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// HealthReport is the /health/db body.
type HealthReport struct {
	Status  string     `json:"status"`
	Backend string     `json:"backend"`
	Error   string     `json:"error,omitempty"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

func poolStats(pool *pgxpool.Pool) *PoolStats {
	s := pool.Stat()
	return &PoolStats{
		TotalConns:      s.TotalConns(),
		IdleConns:       s.IdleConns(),
		AcquiredConns:   s.AcquiredConns(),
		MaxConns:        s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration().String(),
	}
}

// CheckHealth pings pool and returns the report with its HTTP status. A nil
// pool means patients live in memory; that is reported as "disabled".
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) (HealthReport, int) {
	if pool == nil {
		return HealthReport{Status: "disabled", Backend: "memory"}, http.StatusServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	report := HealthReport{Status: "healthy", Backend: "database", Pool: poolStats(pool)}
	if err := pool.Ping(ctx); err != nil {
		report.Status = "unhealthy"
		report.Error = err.Error()
		return report, http.StatusServiceUnavailable
	}
	return report, http.StatusOK
}

// HealthHandler serves CheckHealth.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		report, code := CheckHealth(c.Request().Context(), pool)
		return c.JSON(code, report)
	}
}
