// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sss.
//
// go-sss is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	rtmetrics "runtime/metrics"
)

// Runtime samples behind the resource gauges. runtime/metrics reads them
// without the stop-the-world pause of runtime.ReadMemStats.
const (
	sampleGoroutines = "/sched/goroutines:goroutines"
	sampleHeapLive   = "/memory/classes/heap/objects:bytes"
	sampleTotal      = "/memory/classes/total:bytes"
)

// CollectResources samples goroutine and memory statistics into the
// recorder's gauges. Streaming keeps memory bounded regardless of secret
// size, and these gauges make that observable per run.
func (r *Recorder) CollectResources() {
	if r == nil {
		return
	}

	samples := []rtmetrics.Sample{
		{Name: sampleGoroutines},
		{Name: sampleHeapLive},
		{Name: sampleTotal},
	}
	rtmetrics.Read(samples)

	for _, s := range samples {
		if s.Value.Kind() != rtmetrics.KindUint64 {
			continue
		}
		v := float64(s.Value.Uint64())
		switch s.Name {
		case sampleGoroutines:
			r.goroutines.Set(v)
		case sampleHeapLive:
			r.memoryAllocBytes.Set(v)
		case sampleTotal:
			r.memorySysBytes.Set(v)
		}
	}
}
