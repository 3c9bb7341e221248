// Package clock provides the injected time source used for all timestamps.
package clock

import "time"

// Clock is the sole time source of the engine. Injecting it keeps every
// timestamp deterministic under test.
type Clock interface {
	NowMs() int64
}

// System reads the wall clock.
type System struct{}

func (System) NowMs() int64 {
	return time.Now().UnixMilli()
}
