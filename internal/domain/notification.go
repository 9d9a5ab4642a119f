package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedMessage marks a queue body that does not decode into a known
// notification shape. Consumers log and drop these instead of retrying.
var ErrMalformedMessage = errors.New("malformed queue message")

// LogNotification tells the log consumer that a canonical record was
// persisted and should be indexed. The record itself is re-resolved from the
// store, never carried in the message.
type LogNotification struct {
	RecordID string `json:"record_id"`
	TenantID string `json:"tenant_id"`
}

// ExportNotification tells the export consumer to run one export job.
type ExportNotification struct {
	JobID    string `json:"export_id"`
	TenantID string `json:"tenant_id"`
}

// DecodeLogNotification strictly decodes a queue body. Unknown fields or
// missing identifiers map to ErrMalformedMessage.
func DecodeLogNotification(body []byte) (LogNotification, error) {
	var n LogNotification
	if err := decodeStrict(body, &n); err != nil {
		return n, err
	}
	if n.RecordID == "" || n.TenantID == "" {
		return n, fmt.Errorf("%w: missing record_id or tenant_id", ErrMalformedMessage)
	}
	return n, nil
}

// DecodeExportNotification strictly decodes a queue body for the export queue.
func DecodeExportNotification(body []byte) (ExportNotification, error) {
	var n ExportNotification
	if err := decodeStrict(body, &n); err != nil {
		return n, err
	}
	if n.JobID == "" || n.TenantID == "" {
		return n, fmt.Errorf("%w: missing export_id or tenant_id", ErrMalformedMessage)
	}
	return n, nil
}

func decodeStrict(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}
