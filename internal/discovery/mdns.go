// ABOUTME: mDNS discovery of local live relays
// ABOUTME: Handles both advertisement (relay side) and browsing (client side)
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service a relay advertises
const ServiceType = "_livewave-relay._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	relays chan *RelayInfo
}

// RelayInfo describes a discovered relay
type RelayInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the websocket endpoint of the relay
func (r *RelayInfo) URL() string {
	path := r.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(r.Host, fmt.Sprint(r.Port)), path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = "/live"
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		relays: make(chan *RelayInfo, 10),
	}
}

// Advertise advertises a relay via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for relays until Stop. Each relay is reported once.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

const (
	queryTimeout  = 3 * time.Second
	queryInterval = 2 * time.Second
)

// browseLoop runs query rounds and forwards relays not seen before
func (m *Manager) browseLoop() {
	seen := make(relaySet)
	for m.ctx.Err() == nil {
		for _, relay := range m.query() {
			if !seen.add(relay) {
				continue
			}
			log.Printf("Discovered relay: %s at %s", relay.Name, relay.URL())

			select {
			case m.relays <- relay:
			case <-m.ctx.Done():
				return
			}
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(queryInterval):
		}
	}
}

// query runs one mDNS round and returns the relays that answered
func (m *Manager) query() []*RelayInfo {
	entries := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []*RelayInfo, 1)

	go func() {
		var found []*RelayInfo
		for entry := range entries {
			if relay := relayFromEntry(entry); relay != nil {
				found = append(found, relay)
			}
		}
		collected <- found
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Timeout = queryTimeout
	params.Entries = entries
	params.DisableIPv6 = true

	if err := mdns.Query(params); err != nil {
		log.Printf("mDNS query failed: %v", err)
	}
	close(entries)
	return <-collected
}

// relaySet remembers relays by endpoint
type relaySet map[string]struct{}

// add records relay and reports whether it was new
func (s relaySet) add(relay *RelayInfo) bool {
	key := relay.URL()
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

// relayFromEntry converts an entry of our service type. Relays always
// publish a path= record, so entries without one are not relays.
func relayFromEntry(entry *mdns.ServiceEntry) *RelayInfo {
	suffix := "." + ServiceType + ".local."
	if entry == nil || entry.AddrV4 == nil || !strings.HasSuffix(entry.Name, suffix) {
		return nil
	}

	for _, field := range entry.InfoFields {
		path, ok := strings.CutPrefix(field, "path=")
		if !ok {
			continue
		}
		return &RelayInfo{
			Name: strings.TrimSuffix(entry.Name, suffix),
			Host: entry.AddrV4.String(),
			Port: entry.Port,
			Path: path,
		}
	}
	return nil
}

// Relays returns the channel of discovered relays
func (m *Manager) Relays() <-chan *RelayInfo {
	return m.relays
}

// FindRelay browses until the first relay is found or ctx ends
func (m *Manager) FindRelay(ctx context.Context) (*RelayInfo, error) {
	if err := m.Browse(); err != nil {
		return nil, err
	}
	defer m.Stop()

	select {
	case relay := <-m.relays:
		return relay, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no relay found: %w", ctx.Err())
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
