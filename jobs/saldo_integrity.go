package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luciosalva/control-presupuesto/internal/ledger"
	"github.com/luciosalva/control-presupuesto/internal/observability"
)

// Stored money values are pesos with two decimals; anything past rounding
// noise counts as drift.
const saldoTolerance = 0.005

// SaldoIntegrityJob sweeps the budget ledger comparing each line's stored
// totals against a fresh re-sum of its expense history. The request path
// never trusts incremental counters, so a mismatch here means somebody wrote
// the tables outside the application.
type SaldoIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewSaldoIntegrityJob initialises the integrity scan handler.
func NewSaldoIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *SaldoIntegrityJob {
	return &SaldoIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the integrity scan.
func (j *SaldoIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("saldo integrity: handler not configured")
	}
	var payload SaldoIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	logger := j.logger()
	if payload.Proyecto != "" {
		logger = logger.With(slog.String("proyecto", payload.Proyecto))
	}
	logger.Info("starting saldo integrity scan")

	scanned, drifted, err := j.scan(ctx, payload.Proyecto)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	logger.Info("completed saldo integrity scan",
		slog.Int("lines", scanned),
		slog.Int("mismatches", drifted),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *SaldoIntegrityJob) scan(ctx context.Context, proyecto string) (int, int, error) {
	rows, err := j.Pool.Query(ctx, `SELECT d.proyecto, d.partida,
d.presupuesto, d.total_gastado, d.total_reconducido, d.saldo_disponible,
COALESCE((SELECT SUM(g.importe) FROM gastos_detalle g
WHERE g.proyecto = d.proyecto AND g.partida = d.partida), 0)
FROM presupuesto_detalle d
WHERE $1 = '' OR d.proyecto = $1
ORDER BY d.proyecto, d.partida`, proyecto)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	scanned, drifted := 0, 0
	for rows.Next() {
		var (
			line    ledger.BudgetLine
			gastado float64
		)
		if err := rows.Scan(&line.Proyecto, &line.Partida,
			&line.Presupuesto, &line.TotalGastado, &line.TotalReconducido, &line.SaldoDisponible,
			&gastado); err != nil {
			return scanned, drifted, err
		}
		scanned++

		expected := ledger.Saldo(line.Presupuesto, gastado, line.TotalReconducido)
		if math.Abs(line.TotalGastado-gastado) <= saldoTolerance &&
			math.Abs(line.SaldoDisponible-expected) <= saldoTolerance {
			continue
		}

		drifted++
		j.Metrics.SaldoMismatch()
		j.logger().Warn("saldo drift detected",
			slog.String("proyecto", line.Proyecto),
			slog.String("partida", line.Partida),
			slog.Float64("stored_gastado", line.TotalGastado),
			slog.Float64("summed_gastado", gastado),
			slog.Float64("stored_saldo", line.SaldoDisponible),
			slog.Float64("expected_saldo", expected),
		)
	}
	return scanned, drifted, rows.Err()
}

func (j *SaldoIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSaldoIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskSaldoIntegrity))
}
