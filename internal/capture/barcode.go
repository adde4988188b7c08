package capture

import (
	"errors"
	"strings"
)

// Symbologies the optical scanner accepts.
var recognizedSymbologies = map[string]struct{}{
	"qr":         {},
	"code128":    {},
	"code39":     {},
	"ean13":      {},
	"datamatrix": {},
}

// Barcode is the optical-code capture source, backed by a camera session.
// One instance per camera session; construct it once at the composition
// root.
type Barcode struct {
	*scanner
}

// NewBarcode builds the optical source. It fails when the device has no
// usable camera; steady-state scan errors are reported by Scan instead.
func NewBarcode(driver Driver, opts ...Option) (*Barcode, error) {
	if driver == nil || !driver.Supported() {
		return nil, errors.New("barcode: camera not available on this device")
	}
	return &Barcode{scanner: newScanner("barcode", driver, validBarcode, barcodeAttributes, opts...)}, nil
}

func validBarcode(raw RawRead) bool {
	if strings.TrimSpace(raw.Data) == "" {
		return false
	}
	sym, _ := raw.Extra["symbology"].(string)
	_, ok := recognizedSymbologies[strings.ToLower(sym)]
	return ok
}

func barcodeAttributes(raw RawRead) map[string]any {
	sym, _ := raw.Extra["symbology"].(string)
	return map[string]any{"symbology": strings.ToLower(sym)}
}
