package router

import "pollbot/internal/runtime/supervisor"

type Supervisor = supervisor.Supervisor

var (
	NewSupervisor     = supervisor.NewSupervisor
	WithLogger        = supervisor.WithLogger
	WithCancelOnError = supervisor.WithCancelOnError

	WithRestartBackoff    = supervisor.WithRestartBackoff
	WithPublishFirstError = supervisor.WithPublishFirstError
	WithStopOnCleanExit   = supervisor.WithStopOnCleanExit
)
