package capture

import (
	"encoding/hex"
	"errors"
	"strings"
)

// minimum EPC length in hex characters (96-bit EPC).
const minEPCHexLen = 24

// RFID is the radio-tag capture source. One instance per radio session.
type RFID struct {
	*scanner
}

// NewRFID builds the radio source, failing at construction when no RFID
// radio is present.
func NewRFID(driver Driver, opts ...Option) (*RFID, error) {
	if driver == nil || !driver.Supported() {
		return nil, errors.New("rfid: radio not available on this device")
	}
	return &RFID{scanner: newScanner("rfid", driver, validRFID, rfidAttributes, opts...)}, nil
}

// validRFID accepts well-formed EPC identifiers: hex strings of at least
// 96 bits.
func validRFID(raw RawRead) bool {
	epc := strings.TrimSpace(raw.Data)
	if len(epc) < minEPCHexLen || len(epc)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(epc)
	return err == nil
}

func rfidAttributes(raw RawRead) map[string]any {
	attrs := map[string]any{"epc": strings.TrimSpace(raw.Data)}
	if rssi, ok := raw.Extra["rssi"]; ok {
		attrs["rssi"] = rssi
	}
	return attrs
}
