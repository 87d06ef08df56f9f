package debug

// DataProvider is the boundary to the debugged process: asynchronous
// access to its memory and registers. Completion callbacks may fire
// synchronously from inside the call, or later from the event loop;
// callers must handle both. Register operations use canonical register
// IDs only; sub-register views are the evaluator's concern.
//
// Short memory reads surface as errors ("Invalid pointer 0x..."),
// never as zero-filled data.
type DataProvider interface {
	GetMemoryAsync(address uint64, size uint32, cb func([]byte, error))
	WriteMemory(address uint64, data []byte, cb func(error))

	GetRegisterAsync(id RegisterID, cb func([]byte, error))
	WriteRegister(id RegisterID, data []byte, cb func(error))

	// GetFrameBaseAsync supplies the DW_OP_fbreg base for the frame the
	// evaluation runs in.
	GetFrameBaseAsync(cb func(uint64, error))
}

// Loop is a deterministic single-threaded task queue standing in for
// the debugger's event loop. Asynchronous providers post completions
// here; tests and the REPL pump it until quiescent.
type Loop struct {
	tasks []func()
}

func NewLoop() *Loop { return &Loop{} }

// Post enqueues a task.
func (l *Loop) Post(f func()) {
	l.tasks = append(l.tasks, f)
}

// PumpAll runs tasks, including ones posted while running, until the
// queue is empty. Returns the number of tasks executed.
func (l *Loop) PumpAll() int {
	n := 0
	for len(l.tasks) > 0 {
		task := l.tasks[0]
		l.tasks = l.tasks[1:]
		task()
		n++
	}
	return n
}

// Empty reports whether any tasks are pending.
func (l *Loop) Empty() bool { return len(l.tasks) == 0 }
