// ABOUTME: Version constants for the playback engine
// ABOUTME: Identifies the product in logs and remote-control handshakes
package version

const (
	Version      = "0.3.0"
	Product      = "Cutplane Playback"
	Manufacturer = "Cutplane"
)
