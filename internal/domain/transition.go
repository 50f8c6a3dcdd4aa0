package domain

// TransitionPM validates a GL review request. Only closing a completed PM and
// reopening a closed one back to completed are allowed.
func TransitionPM(from, to PMStatus) error {
	switch {
	case from == PMCompleted && to == PMClosed:
		return nil
	case from == PMClosed && to == PMCompleted:
		return nil
	}
	return NewInvalidTransitionError(from, to)
}
