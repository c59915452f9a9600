package tui

// tickMsg pumps the foreground dispatcher.
type tickMsg struct{}

// powerStateMsg carries the adapter power state read at startup.
type powerStateMsg struct {
	powered bool
}

// launchResultMsg reports the outcome of opening the system manager.
type launchResultMsg struct {
	name string
	err  error
}

// submitErrMsg reports a request the coordinator refused to queue.
type submitErrMsg struct {
	err error
}
