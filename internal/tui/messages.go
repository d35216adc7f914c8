package tui

// RowUpdateMsg updates a single row's fields by column name.
type RowUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// TransferMsg reports archive download progress for a row. Total is -1
// when the server sent no Content-Length.
type TransferMsg struct {
	Key     string
	Written int64
	Total   int64
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
