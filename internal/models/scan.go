package models

import "time"

// GeoPoint is a best-effort device location attached to a scan.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// ScanResult is the normalized output of any capture source. It is produced
// once per physical read and immediately converted into a scan operation by
// the caller.
type ScanResult struct {
	// AssetID is the identifier read from the physical tag or code.
	AssetID string

	// ScanType names the capture modality that produced the result.
	ScanType string

	// Timestamp is the moment of the read, in UTC.
	Timestamp time.Time

	// Location is the device position at scan time, nil when unavailable.
	Location *GeoPoint

	// Metadata carries modality-specific extras (symbology, tag technology).
	Metadata map[string]any

	// Signature optionally authenticates the read, empty when unsigned.
	Signature string
}

// OperationPayload flattens the scan into the payload map carried by a
// scan operation.
func (s *ScanResult) OperationPayload() map[string]any {
	p := map[string]any{
		"assetId":   s.AssetID,
		"scanType":  s.ScanType,
		"timestamp": s.Timestamp.Format(time.RFC3339Nano),
	}
	if s.Location != nil {
		p["location"] = map[string]any{
			"latitude":  s.Location.Latitude,
			"longitude": s.Location.Longitude,
			"accuracy":  s.Location.Accuracy,
		}
	}
	if len(s.Metadata) > 0 {
		p["metadata"] = s.Metadata
	}
	if s.Signature != "" {
		p["signature"] = s.Signature
	}
	return p
}
