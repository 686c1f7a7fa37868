package app

// AppState represents the different views of the run monitor.
type AppState int

const (
	Running AppState = iota
	ShowError
	Finished
	Exiting
)
