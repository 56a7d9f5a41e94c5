package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// Advertiser publishes listeners over mDNS.
type Advertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	servers map[string]*zeroconf.Server // keyed by instance
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{
		config:  config,
		servers: make(map[string]*zeroconf.Server),
	}
}

func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise publishes info, replacing any earlier advertisement with the
// same instance name.
func (a *Advertiser) Advertise(info *ServiceInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.servers[info.Instance]; ok {
		s.Shutdown()
		delete(a.servers, info.Instance)
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.Instance,
		ServiceType,
		Domain,
		info.Port,
		TXTRecordsToStrings(EncodeTXT(info)),
		interfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", info.Instance, err)
	}

	a.servers[info.Instance] = server
	return nil
}

// Stop withdraws the advertisement for instance, if any.
func (a *Advertiser) Stop(instance string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.servers[instance]; ok {
		s.Shutdown()
		delete(a.servers, instance)
	}
}

// StopAll withdraws every advertisement.
func (a *Advertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for instance, s := range a.servers {
		s.Shutdown()
		delete(a.servers, instance)
	}
}

// Advertised returns the number of active advertisements.
func (a *Advertiser) Advertised() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.servers)
}

// Service is a listener found by Browse.
type Service struct {
	ServiceInfo

	Host      string
	Addresses []string
}

// Browse reports advertised listeners until ctx is done. The returned
// channel is closed when browsing stops.
func Browse(ctx context.Context, iface string) (<-chan *Service, error) {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	out := make(chan *Service)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(iface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-removed:
			case entry, ok := <-entries:
				if !ok {
					return
				}
				select {
				case out <- entryToService(entry):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

func entryToService(entry *zeroconf.ServiceEntry) *Service {
	s := &Service{
		ServiceInfo: ServiceInfo{
			Instance: entry.Instance,
			Port:     entry.Port,
		},
		Host: entry.HostName,
	}
	DecodeTXT(StringsToTXTRecords(entry.Text), &s.ServiceInfo)

	for _, ip := range entry.AddrIPv4 {
		s.Addresses = append(s.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		s.Addresses = append(s.Addresses, ip.String())
	}
	return s
}
