//go:build linux

package network

import "github.com/schollz/wifiscan"

// RadioScanSource backs ScanSource with the host's real WiFi radio via
// github.com/schollz/wifiscan, the pack's WiFi-scan dependency (no
// teacher file scans WiFi directly; grounded on the dependency's own
// published API rather than a pack usage site, since spec §4.I's
// AVAILABLE_SEEN state has no analogue in the teacher's domain).
type RadioScanSource struct{}

// Scan lists the SSIDs currently visible to the radio.
func (RadioScanSource) Scan() ([]string, error) {
	aps, err := wifiscan.Scan()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(aps))
	for _, ap := range aps {
		out = append(out, ap.SSID)
	}
	return out, nil
}
