// ABOUTME: Version and product information
// ABOUTME: Reported by the CLI and written to the log at startup
package version

const (
	Version      = "0.3.0"
	Product      = "pcmrender"
	Manufacturer = "LAGonauta"
)
