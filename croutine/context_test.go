package croutine

import "testing"

func TestSwapContextPingPong(t *testing.T) {
	main := newMainContext()
	c := newContext(0)

	var trace []int
	c.Make(func(arg any) {
		n := arg.(int)
		for i := 0; i < n; i++ {
			trace = append(trace, i)
			SwapContext(c, main)
		}
		ExitContext(c, main)
	}, 3)

	for i := 0; i < 4; i++ {
		SwapContext(main, c)
	}
	if len(trace) != 3 || trace[0] != 0 || trace[2] != 2 {
		t.Fatalf("trace = %v, want [0 1 2]", trace)
	}

	// The same context runs a new entry after Make.
	ran := false
	c.Make(func(any) {
		ran = true
		ExitContext(c, main)
	}, nil)
	SwapContext(main, c)
	if !ran {
		t.Fatal("second entry did not run on reused context")
	}

	c.shutdown()
}
