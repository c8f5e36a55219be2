package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "dev")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	opts, err := exporterOptions("localhost:4318")
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	opts, err = exporterOptions("https://otel.example.com/v1/traces")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = exporterOptions("ftp://otel.example.com")
	assert.Error(t, err)

	_, err = exporterOptions("http://")
	assert.Error(t, err)
}
