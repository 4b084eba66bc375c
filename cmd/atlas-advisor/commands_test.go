package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/envelope"
)

func TestPrintEnvelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printEnvelope(&buf, envelope.OK(map[string]int{"total": 2})))
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, true, out["success"])

	buf.Reset()
	err := printEnvelope(&buf, envelope.Fail(apperr.New(apperr.CategoryTimeout), ""))
	assert.ErrorContains(t, err, "TIMEOUT")
	assert.Contains(t, buf.String(), `"success": false`)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "recommend", "search", "import-datasets"} {
		assert.True(t, names[want], want)
	}
}
