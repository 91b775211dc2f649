package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/version"
)

const (
	// ServiceType is the mDNS service type monitors advertise
	ServiceType = "_essp._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for monitor discovery
	DefaultScanTimeout = 5 * time.Second
)

// Peer is a monitor found on the local network.
type Peer struct {
	Instance string
	Hostname string
	IP       string
	Port     int
	Device   string            // profile name from the "device" TXT record
	Metadata map[string]string // all TXT records

	DiscoveredAt time.Time
}

// String returns a human-readable description.
func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s) at %s:%d", p.Instance, p.Device, p.IP, p.Port)
}

// URL returns the WebSocket endpoint.
func (p *Peer) URL() string {
	return fmt.Sprintf("ws://%s:%d/ws", p.IP, p.Port)
}

// Announcement is a running mDNS registration.
type Announcement struct {
	server *zeroconf.Server
}

// Announce advertises a monitor listening on port.
func Announce(instance string, port int, deviceName string) (*Announcement, error) {
	txt := []string{
		"device=" + deviceName,
		"version=" + version.Get().Version,
		"path=/ws",
	}
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Monitor announced",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port))
	return &Announcement{server: server}, nil
}

// Shutdown withdraws the announcement.
func (a *Announcement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Scanner handles mDNS monitor discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout}
}

// Browse collects monitors that answer within the scanner timeout.
func (s *Scanner) Browse(ctx context.Context) ([]*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu    sync.Mutex
		peers []*Peer
		done  = make(chan struct{})
	)
	go func() {
		defer close(done)
		for entry := range entries {
			if p := parseServiceEntry(entry); p != nil {
				mu.Lock()
				peers = append(peers, p)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once the browse context ends.
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return peers, nil
}

// parseServiceEntry converts a zeroconf service entry to a Peer.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Peer {
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Peer{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Device:       metadata["device"],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
