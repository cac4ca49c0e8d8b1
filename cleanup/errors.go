package cleanup

import "errors"

// ErrAlreadyRunning is returned by Start if the sweeper's background loop
// has already been started.
var ErrAlreadyRunning = errors.New("cleanup: sweeper already running")
