package registry

import (
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Registrar announces the service in Consul with an HTTP health check and
// deregisters it again on shutdown.
type Registrar struct {
	client    *api.Client
	serviceID string
	log       *zap.Logger
}

type Options struct {
	Address    string
	Scheme     string
	Datacenter string

	ServiceName string
	ServicePort int
	Tags        []string
}

func NewRegistrar(opts Options, log *zap.Logger) (*Registrar, error) {
	cfg := api.DefaultConfig()
	cfg.Address = opts.Address
	cfg.Scheme = opts.Scheme
	cfg.Datacenter = opts.Datacenter

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	if _, err := client.Status().Leader(); err != nil {
		return nil, fmt.Errorf("connect consul: %w", err)
	}

	ip, err := localIP()
	if err != nil {
		return nil, fmt.Errorf("resolve local ip: %w", err)
	}
	serviceID := fmt.Sprintf("%s-%s-%d", opts.ServiceName, ip, opts.ServicePort)

	registration := &api.AgentServiceRegistration{
		ID:      serviceID,
		Name:    opts.ServiceName,
		Tags:    opts.Tags,
		Address: ip,
		Port:    opts.ServicePort,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", ip, opts.ServicePort),
			Interval:                       (10 * time.Second).String(),
			Timeout:                        (3 * time.Second).String(),
			DeregisterCriticalServiceAfter: (time.Minute).String(),
		},
	}
	if err := client.Agent().ServiceRegister(registration); err != nil {
		return nil, fmt.Errorf("register service: %w", err)
	}

	log.Info("registered in consul",
		zap.String("service_id", serviceID),
		zap.String("address", ip))
	return &Registrar{client: client, serviceID: serviceID, log: log}, nil
}

func (r *Registrar) Deregister() {
	if err := r.client.Agent().ServiceDeregister(r.serviceID); err != nil {
		r.log.Warn("deregister service", zap.Error(err))
		return
	}
	r.log.Info("deregistered from consul", zap.String("service_id", r.serviceID))
}

func localIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
