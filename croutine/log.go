package croutine

import (
	"fmt"
	"os"
	"sync/atomic"

	"strand/hal"
)

type loggerHolder struct{ l hal.Logger }

var logger atomic.Pointer[loggerHolder]

func init() {
	logger.Store(&loggerHolder{l: hal.NewWriterLogger(os.Stderr)})
}

// SetLogger replaces the process-wide logger used for usage errors and
// faults. A nil logger discards.
func SetLogger(l hal.Logger) {
	if l == nil {
		l = hal.Discard
	}
	logger.Store(&loggerHolder{l: l})
}

func logf(format string, args ...any) {
	logger.Load().l.WriteLineString(fmt.Sprintf(format, args...))
}
