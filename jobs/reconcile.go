package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/grantline/grantline/internal/seed"
)

// ReconcileJob re-runs the catalog-wide super-admin grant so an account
// created after startup still converges on full permissions.
type ReconcileJob struct {
	Seeder *seed.Seeder
	Logger *slog.Logger
}

// NewReconcileJob wires dependencies for the reconcile handler.
func NewReconcileJob(seeder *seed.Seeder, logger *slog.Logger) *ReconcileJob {
	return &ReconcileJob{Seeder: seeder, Logger: logger}
}

// Handle processes super-admin reconcile tasks.
func (j *ReconcileJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Seeder == nil {
		return errors.New("reconcile: handler not configured")
	}
	if err := j.Seeder.GrantAllToSuperAdmin(ctx); err != nil {
		if j.Logger != nil {
			j.Logger.Error("super admin reconcile", slog.Any("error", err))
		}
		return err
	}
	return nil
}
