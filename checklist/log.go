package checklist

import (
	"github.com/golang/glog"
)

// Logging convention in the `checklist` package:
// Info:
//     abnormal but recoverable events. This level should be silent on normal operation.
//     this includes:
//     - dropped protocol messages and stale results
//     - push channel disconnects and reconnects
//     - toggle commit failures
// Warning:
//     recovered panics from observers
// Debug (glog.V(LogLevelDebug)):
//     per event traces with uids and client ids that can be used to filter
//     - applied remote events, armed/canceled/committed toggles, loads

const LogLevelDebug glog.Level = 2

func debugf(format string, a ...any) {
	glog.V(LogLevelDebug).Infof(format, a...)
}
