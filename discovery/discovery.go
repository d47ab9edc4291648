// Package discovery announces a running table to a Consul agent so clients
// and operators can find it.
package discovery

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/metrics"
)

// Cfg configures one Consul registrar inside the "plugin" section.
type Cfg struct {
	Address     string   `mapstructure:"address"`
	Datacenter  string   `mapstructure:"datacenter"`
	Token       string   `mapstructure:"token"`
	ServiceName string   `mapstructure:"serviceName"`
	ServiceID   string   `mapstructure:"serviceID"`
	Tags        []string `mapstructure:"tags"`
	// CheckInterval is how often the agent dials the table port.
	CheckInterval time.Duration `mapstructure:"checkInterval"`
	// DeregisterAfter removes a table whose check stayed critical this long.
	DeregisterAfter time.Duration `mapstructure:"deregisterAfter"`
	Tag             string        `mapstructure:"tag"`
}

// DefaultCfg returns the settings used for keys the section leaves out.
func DefaultCfg() *Cfg {
	return &Cfg{
		ServiceName:     "pokernet",
		CheckInterval:   10 * time.Second,
		DeregisterAfter: time.Minute,
	}
}

// Validate checks the settings.
func (c *Cfg) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("serviceName cannot be empty")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("checkInterval must be positive")
	}
	if c.DeregisterAfter < c.CheckInterval {
		return fmt.Errorf("deregisterAfter must not be shorter than checkInterval")
	}
	return nil
}

func (c *Cfg) serviceID(port uint16) string {
	if c.ServiceID != "" {
		return c.ServiceID
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%s-%d", c.ServiceName, host, port)
}

// agent is the part of *api.Agent the registrar uses.
type agent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

// TableStatus is published as service metadata.
type TableStatus struct {
	Players     int
	MaxPlayers  int
	GameRunning bool
}

func (s TableStatus) meta() map[string]string {
	return map[string]string{
		"players":      strconv.Itoa(s.Players),
		"max_players":  strconv.Itoa(s.MaxPlayers),
		"game_running": strconv.FormatBool(s.GameRunning),
	}
}

// ErrNotRegistered is returned by Update before Register.
var ErrNotRegistered = errors.New("service not registered")

// Registrar registers one table with the local Consul agent.
type Registrar struct {
	mu    sync.Mutex
	cfg   *Cfg
	agent agent
	reg   *api.AgentServiceRegistration
	last  TableStatus
}

// New creates a registrar for the agent at cfg.Address, or the agent named by
// the CONSUL_HTTP_ADDR environment when empty. No request is made yet.
func New(cfg *Cfg) (*Registrar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid discovery config: %w", err)
	}
	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	if cfg.Datacenter != "" {
		apiCfg.Datacenter = cfg.Datacenter
	}
	if cfg.Token != "" {
		apiCfg.Token = cfg.Token
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return newRegistrar(cfg, client.Agent()), nil
}

func newRegistrar(cfg *Cfg, a agent) *Registrar {
	return &Registrar{cfg: cfg, agent: a}
}

func (r *Registrar) registration(addr netip.AddrPort, status TableStatus) *api.AgentServiceRegistration {
	host := addr.Addr().Unmap()
	address := ""
	check := host
	if host.IsValid() && !host.IsUnspecified() {
		address = host.String()
	} else if host.Is6() {
		check = netip.IPv6Loopback()
	} else {
		check = netip.AddrFrom4([4]byte{127, 0, 0, 1})
	}
	target := netip.AddrPortFrom(check, addr.Port()).String()
	return &api.AgentServiceRegistration{
		ID:      r.cfg.serviceID(addr.Port()),
		Name:    r.cfg.ServiceName,
		Tags:    r.cfg.Tags,
		Port:    int(addr.Port()),
		Address: address,
		Meta:    status.meta(),
		Check: &api.AgentServiceCheck{
			TCP:                            target,
			Interval:                       r.cfg.CheckInterval.String(),
			Timeout:                        (r.cfg.CheckInterval / 2).String(),
			DeregisterCriticalServiceAfter: r.cfg.DeregisterAfter.String(),
		},
	}
}

// Register announces the table listening on addr.
func (r *Registrar) Register(addr netip.AddrPort, status TableStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg := r.registration(addr, status)
	if err := r.agent.ServiceRegister(reg); err != nil {
		metrics.IncrCounterWithDimGroup("discovery", "register_error_total", 1, metrics.Dimension{"op": "register"})
		return fmt.Errorf("register %s: %w", reg.ID, err)
	}
	r.reg = reg
	r.last = status
	log.Info().Str("id", reg.ID).Str("name", reg.Name).Int("port", reg.Port).Msg("service registered")
	return nil
}

// Update republishes the status when it changed.
func (r *Registrar) Update(status TableStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg == nil {
		return ErrNotRegistered
	}
	if status == r.last {
		return nil
	}
	reg := *r.reg
	reg.Meta = status.meta()
	if err := r.agent.ServiceRegister(&reg); err != nil {
		metrics.IncrCounterWithDimGroup("discovery", "register_error_total", 1, metrics.Dimension{"op": "update"})
		return fmt.Errorf("update %s: %w", reg.ID, err)
	}
	r.reg = &reg
	r.last = status
	log.Debug().Str("id", reg.ID).Int("players", status.Players).Bool("running", status.GameRunning).Msg("service status updated")
	return nil
}

// Deregister removes the table. It does nothing when not registered.
func (r *Registrar) Deregister() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg == nil {
		return nil
	}
	id := r.reg.ID
	if err := r.agent.ServiceDeregister(id); err != nil {
		metrics.IncrCounterWithDimGroup("discovery", "register_error_total", 1, metrics.Dimension{"op": "deregister"})
		return fmt.Errorf("deregister %s: %w", id, err)
	}
	r.reg = nil
	log.Info().Str("id", id).Msg("service deregistered")
	return nil
}

// Sync registers the table on first use and updates its status afterwards.
func (r *Registrar) Sync(addr netip.AddrPort, status TableStatus) error {
	err := r.Update(status)
	if errors.Is(err, ErrNotRegistered) {
		return r.Register(addr, status)
	}
	return err
}

// Registered reports whether the table is currently announced.
func (r *Registrar) Registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg != nil
}

// FactoryName implements plugin.Plugin.
func (r *Registrar) FactoryName() string {
	return "consul"
}
