package split

import (
	"testing"

	weave "github.com/iov-one/weave"
)

func TestSplitAddressCondition(t *testing.T) {
	// The income account must stay at the published condition so that
	// external tools can compute the address without querying the chain.
	want := weave.Condition("split/income/main").Address()
	if got := SplitAddress(); !got.Equals(want) {
		t.Fatalf("want %q, got %q", want, got)
	}
}
