package concurrency

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrTaskFault    = errors.New("update task faulted")
	ErrClosed       = errors.New("scheduler is closed")
	ErrTooManyTasks = errors.New("workload split beyond worker limit")
)

// TaskFault is the failure of one dispatched task, reported at the join.
type TaskFault struct {
	Target uuid.UUID
	Task   int
	Err    error
}

func (f *TaskFault) Error() string {
	return fmt.Sprintf("task %d for %s: %v", f.Task, f.Target, f.Err)
}

func (f *TaskFault) Unwrap() error { return f.Err }

func (f *TaskFault) Is(target error) bool { return target == ErrTaskFault }
