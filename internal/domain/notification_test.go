package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLogNotification(t *testing.T) {
	n, err := DecodeLogNotification([]byte(`{"record_id":"r-1","tenant_id":"acme"}`))

	require.NoError(t, err)
	assert.Equal(t, "r-1", n.RecordID)
	assert.Equal(t, "acme", n.TenantID)
}

func TestDecodeLogNotification_Malformed(t *testing.T) {
	for _, body := range []string{
		``,
		`not json`,
		`{"record_id":"r-1"}`,
		`{"tenant_id":"acme"}`,
		`{"record_id":"r-1","tenant_id":"acme","unknown":"x"}`,
		`[]`,
	} {
		_, err := DecodeLogNotification([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedMessage, "body: %s", body)
	}
}

func TestDecodeExportNotification(t *testing.T) {
	n, err := DecodeExportNotification([]byte(`{"export_id":"j-1","tenant_id":"acme"}`))

	require.NoError(t, err)
	assert.Equal(t, "j-1", n.JobID)
	assert.Equal(t, "acme", n.TenantID)
}

func TestDecodeExportNotification_Malformed(t *testing.T) {
	_, err := DecodeExportNotification([]byte(`{"export_id":"j-1"}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}
