package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValueForInjection_CleanValue(t *testing.T) {
	assert.Nil(t, CheckValueForInjection("customer_id", "12345"))
	assert.Nil(t, CheckValueForInjection("email", "alice@example.com"))
}

func TestCheckValueForInjection_NonStringSkipped(t *testing.T) {
	assert.Nil(t, CheckValueForInjection("limit", 100))
	assert.Nil(t, CheckValueForInjection("active", true))
	assert.Nil(t, CheckValueForInjection("ratio", 0.5))
}

func TestCheckValueForInjection_DetectsInjection(t *testing.T) {
	result := CheckValueForInjection("search", "' OR '1'='1")
	require.NotNil(t, result)
	assert.True(t, result.IsSQLi)
	assert.Equal(t, "search", result.ParamName)
	assert.NotEmpty(t, result.Fingerprint)
}
