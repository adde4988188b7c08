package capture

import (
	"errors"
	"strings"
)

// NFC is the proximity-tag capture source. One instance per NFC session.
type NFC struct {
	*scanner
}

// NewNFC builds the proximity source. Devices without NFC hardware fail
// here, at construction, never during steady-state operation.
func NewNFC(driver Driver, opts ...Option) (*NFC, error) {
	if driver == nil || !driver.Supported() {
		return nil, errors.New("nfc: not supported on this device")
	}
	return &NFC{scanner: newScanner("nfc", driver, validNFC, nfcAttributes, opts...)}, nil
}

func validNFC(raw RawRead) bool {
	return strings.TrimSpace(raw.Data) != ""
}

func nfcAttributes(raw RawRead) map[string]any {
	tech, _ := raw.Extra["technology"].(string)
	if tech == "" {
		return nil
	}
	return map[string]any{"technology": tech}
}
