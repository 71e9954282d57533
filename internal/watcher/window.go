package watcher

// Window is an inclusive block range handed to a single getLogs query.
// Never mutated after creation.
type Window struct {
	From uint64
	To   uint64
}

// PlanWindow computes the next provider-legal query window: it starts at
// cursor and ends at min(cursor+maxSpan-1, safeHead). ok is false when
// safeHead has not reached the cursor yet, i.e. there is no work.
func PlanWindow(cursor, safeHead, maxSpan uint64) (Window, bool) {
	if safeHead < cursor {
		return Window{}, false
	}
	if maxSpan == 0 {
		maxSpan = 1
	}

	to := safeHead
	if span := safeHead - cursor + 1; span > maxSpan {
		to = cursor + maxSpan - 1
	}
	return Window{From: cursor, To: to}, true
}
