package chain

import (
	"errors"
	"testing"
)

func TestClassifyLogsErrorRangeRejection(t *testing.T) {
	cases := []string{
		"eth_getLogs block range too wide, block range should work",
		"query returned more than 10000 results",
		"exceed maximum block range: 10",
		"Log response size exceeded, limit exceeded",
	}

	for _, msg := range cases {
		err := classifyLogsError(errors.New(msg))
		if !errors.Is(err, ErrRangeTooLarge) {
			t.Fatalf("%q should classify as range rejection, got %v", msg, err)
		}
	}
}

func TestClassifyLogsErrorTransport(t *testing.T) {
	err := classifyLogsError(errors.New("connection reset by peer"))
	if errors.Is(err, ErrRangeTooLarge) {
		t.Fatalf("transport error misclassified as range rejection")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if provErr.Op != "getLogs" {
		t.Fatalf("unexpected op: %s", provErr.Op)
	}
}
