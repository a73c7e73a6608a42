// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

// Projection is the aggregate integrity chart: one category per device
// that has a report, in device order. The three slices are parallel.
type Projection struct {
	Labels        []string  `json:"labels"`
	LatencyMean   []float64 `json:"latencyMean"`
	LatencyJitter []float64 `json:"latencyJitter"`
}

// Len returns the number of categories
func (p Projection) Len() int {
	return len(p.Labels)
}

// Max returns the largest plotted value
func (p Projection) Max() float64 {
	max := 0.0
	for i := range p.Labels {
		if p.LatencyMean[i] > max {
			max = p.LatencyMean[i]
		}
		if p.LatencyJitter[i] > max {
			max = p.LatencyJitter[i]
		}
	}
	return max
}

// Project derives the aggregate chart from the reports and the already
// reconciled device list. Devices without a report are skipped, not
// zero-filled. Absent latency signals plot as 0.
func Project(reports map[string]IntegrityReport, devices []Device, labelWidth int) Projection {
	p := Projection{
		Labels:        []string{},
		LatencyMean:   []float64{},
		LatencyJitter: []float64{},
	}

	seen := make(map[string]bool, len(devices))
	for _, dev := range devices {
		if seen[dev.Address] {
			continue
		}
		seen[dev.Address] = true

		report, ok := reports[dev.Address]
		if !ok {
			continue
		}
		p.Labels = append(p.Labels, Truncate(dev.Label(), labelWidth))
		p.LatencyMean = append(p.LatencyMean, report.Signals.LatencyMeanMs.Or(0))
		p.LatencyJitter = append(p.LatencyJitter, report.Signals.LatencyJitterMs.Or(0))
	}

	return p
}

// Truncate shortens s to width runes, marking the cut with an ellipsis.
// A width <= 0 uses DefaultLabelWidth.
func Truncate(s string, width int) string {
	if width <= 0 {
		width = DefaultLabelWidth
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
