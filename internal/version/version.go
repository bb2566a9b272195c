// ABOUTME: Version information for livewave
// ABOUTME: Reported in logs and the websocket user agent
package version

const (
	// Version is the release version
	Version = "0.1.0"

	// Product is the product name
	Product = "livewave"

	// Manufacturer is the publisher
	Manufacturer = "harperreed"
)

// UserAgent identifies the client to the live endpoint
func UserAgent() string {
	return Product + "/" + Version
}
