package scheduler

import "errors"

var (
	ErrInvalidTask            = errors.New("scheduler: task name and function are required")
	ErrInvalidSchedule        = errors.New("scheduler: invalid schedule")
	ErrTaskAlreadyRegistered  = errors.New("scheduler: task already registered")
	ErrTaskNotFound           = errors.New("scheduler: task not found")
	ErrTaskRunning            = errors.New("scheduler: task is already running")
	ErrTaskLocked             = errors.New("scheduler: task is locked by another process")
	ErrSchedulerNotConfigured = errors.New("scheduler: no tasks registered")
	ErrSchedulerRunning       = errors.New("scheduler: already running")
)
