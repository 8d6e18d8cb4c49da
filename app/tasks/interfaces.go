package tasks

// TaskSchedulerInterface is what the API needs from the scheduler: a way to
// hand it work outside of the regular ticks.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
