package model

// ValidationError blocks an action without changing any state.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Msg
}
