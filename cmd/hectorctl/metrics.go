package main

import (
	"fmt"

	"github.com/outbain/hectorgo/monitor"
)

// sinkFor returns the counter sink a command reports recoverable errors
// through. Exporting those counters over HTTP is out of scope here;
// selecting a backend only switches from the discarding default to a
// concrete Sink a caller's own process can export however it likes.
func sinkFor(backend string) (monitor.Sink, error) {
	switch backend {
	case "", "none":
		return monitor.NopSink{}, nil
	case "victoriametrics":
		return monitor.NewVMSink(), nil
	case "go-metrics":
		return monitor.NewGoMetricsSink(), nil
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", backend)
	}
}
