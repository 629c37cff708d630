package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		wantErr  error
		exports  bool
	}{
		{name: "none", exporter: ExporterNone},
		{name: "empty means none", exporter: ""},
		{name: "stdout", exporter: ExporterStdout, exports: true},
		{name: "unknown", exporter: "zipkin", wantErr: ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := DefaultConfig()
			cfg.TraceExporter = tt.exporter
			cfg.Writer = &buf

			tp, shutdown, err := Init(context.Background(), cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			_, span := tp.Tracer("test").Start(context.Background(), "Evaluator.Evaluate")
			span.End()
			require.NoError(t, shutdown(context.Background()))

			if tt.exports {
				assert.Contains(t, buf.String(), `"Name":"Evaluator.Evaluate"`)
				assert.Contains(t, buf.String(), "nlpeval")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestInit_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Init(ctx, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
