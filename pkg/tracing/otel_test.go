// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, cycle := StartCycleSpan(context.Background(), "s1", 3)
	_, node := StartNodeSpan(ctx, "classify_level2", "level2")
	EndSpan(node, errors.New("boom"))
	EndSpan(cycle, nil)

	ended := rec.Ended()
	if assert.Len(t, ended, 2) {
		assert.Equal(t, "node.execute", ended[0].Name())
		assert.Equal(t, "cycle.run", ended[1].Name())
		assert.Equal(t, ended[1].SpanContext().TraceID(), ended[0].SpanContext().TraceID())
	}
}
