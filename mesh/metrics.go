/*
 * MIT License
 *
 * Copyright (c) 2022-2026  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package mesh

import (
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
)

// meshMetrics holds the OpenTelemetry instruments of the client. Instruments
// are created against the globally registered meter provider; without an SDK
// installed they are no-ops.
type meshMetrics struct {
	strayResponses  metric.Int64Counter
	requestTimeouts metric.Int64Counter
	activations     metric.Int64UpDownCounter
	reconnects      metric.Int64Counter
	tickDuration    metric.Float64Histogram
}

func newMeshMetrics(meter metric.Meter) (*meshMetrics, error) {
	var errs []error

	strayResponses, err := meter.Int64Counter(
		"gomesh.messages.stray_responses",
		metric.WithDescription("Inbound responses with no matching pending call"),
	)
	errs = append(errs, err)

	requestTimeouts, err := meter.Int64Counter(
		"gomesh.messages.request_timeouts",
		metric.WithDescription("Outbound invocations that timed out"),
	)
	errs = append(errs, err)

	activations, err := meter.Int64UpDownCounter(
		"gomesh.execution.activations",
		metric.WithDescription("Activations currently hosted by this node"),
	)
	errs = append(errs, err)

	reconnects, err := meter.Int64Counter(
		"gomesh.connection.reconnects",
		metric.WithDescription("Message channel re-establishments"),
	)
	errs = append(errs, err)

	tickDuration, err := meter.Float64Histogram(
		"gomesh.tick.duration",
		metric.WithDescription("Composite tick duration"),
		metric.WithUnit("s"),
	)
	errs = append(errs, err)

	if combined := multierr.Combine(errs...); combined != nil {
		return nil, combined
	}

	return &meshMetrics{
		strayResponses:  strayResponses,
		requestTimeouts: requestTimeouts,
		activations:     activations,
		reconnects:      reconnects,
		tickDuration:    tickDuration,
	}, nil
}
