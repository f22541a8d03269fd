package network

// ScanSource reports nearby SSIDs, the abstraction the AVAILABLE_SEEN
// state polls (spec §4.I: "periodic scan (default every 10s) ... if
// scanned SSIDs contain the stored SSID, emits AVAILABLE").
type ScanSource interface {
	Scan() ([]string, error)
}

// FakeScanSource is a test/non-Linux stand-in returning a fixed list.
type FakeScanSource struct {
	SSIDs []string
	Err   error
}

// Scan returns the configured fixed list or error.
func (f *FakeScanSource) Scan() ([]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.SSIDs, nil
}

// ContainsSSID reports whether ssid appears in the scan result.
func ContainsSSID(found []string, ssid string) bool {
	for _, s := range found {
		if s == ssid {
			return true
		}
	}
	return false
}
