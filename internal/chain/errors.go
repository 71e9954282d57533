package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRangeTooLarge marks a getLogs rejection because the requested block span
// exceeds the provider's policy. The window planner should make this
// unreachable; when it fires the configured max span must shrink, so it is
// surfaced distinctly instead of being retried with the same window.
var ErrRangeTooLarge = errors.New("provider rejected block range")

// ProviderError wraps transport, node, and timeout failures. The watcher loop
// treats all of them the same way: back off and retry from the current cursor.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// rangeRejectionMarkers are substrings providers use when refusing a span.
// Alchemy, Infura, and QuickNode all phrase this differently.
var rangeRejectionMarkers = []string{
	"block range",
	"query returned more than",
	"exceed maximum block range",
	"too many blocks",
	"limit exceeded",
}

func classifyLogsError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range rangeRejectionMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrRangeTooLarge, err)
		}
	}
	return &ProviderError{Op: "getLogs", Err: err}
}
