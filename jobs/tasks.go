package jobs

import "github.com/hibiken/asynq"

// Queue names.
const QueueDefault = "default"

// Task type identifiers.
const (
	TaskReconcileSuperAdmin = "authz:reconcile_super_admin"
)

// NewReconcileSuperAdminTask builds the periodic super-admin reconcile task.
// The task carries no payload; the seeder configuration decides the target.
func NewReconcileSuperAdminTask() *asynq.Task {
	return asynq.NewTask(TaskReconcileSuperAdmin, nil)
}
