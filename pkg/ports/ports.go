// Package ports declares the external-collaborator interfaces spec.md
// §6 places outside the core pipeline: the radio/acoustic scanner, the
// acoustic ranging device, and the service/membership registry. The core
// packages depend only on these contracts; concrete adapters (a real
// Wi-Fi/BLE scanner, a speaker/microphone driver, mDNS or a config file)
// live outside pkg/.
//
// Doc style (interface + example implementation sketch in comments) is
// grounded on the teacher's pkg/bolt/server.go QueryExecutor.
package ports

import (
	"context"
	"time"

	"github.com/closedform/senseye/pkg/measurement"
)

// Scanner is the external collaborator producing raw RF observations
// (spec.md §6: "Scanner: produces raw RSSI samples for nearby
// devices/peers; platform- and radio-specific").
//
// Example Implementation:
//
//	type WifiScanner struct { iface string }
//
//	func (w *WifiScanner) Scan(ctx context.Context) ([]measurement.Measurement, error) {
//		return platformScanWifi(ctx, w.iface)
//	}
type Scanner interface {
	Scan(ctx context.Context) ([]measurement.Measurement, error)
}

// AcousticDevice is the external collaborator able to emit a chirp on a
// given frequency band and listen for a peer's reply, used by
// calibration to range node pairs acoustically (spec.md §4.7).
type AcousticDevice interface {
	EmitChirp(ctx context.Context, startHz, endHz float64) (sentAt time.Time, err error)
	ListenForChirp(ctx context.Context, startHz, endHz float64, timeout time.Duration) (arrivedAt time.Time, peakSNRDB float64, err error)
}

// PeerInfo describes one member of the mesh as known to the membership
// registry.
type PeerInfo struct {
	NodeID  string
	Address string
}

// ServiceRegistry is the external collaborator that discovers and
// tracks mesh peer membership (spec.md §6: "node discovery is delegated
// to an external registry; core treats the peer set as given").
type ServiceRegistry interface {
	Peers(ctx context.Context) ([]PeerInfo, error)
	Watch(ctx context.Context) (<-chan []PeerInfo, error)
}
