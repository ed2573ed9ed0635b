// Package network implements the deterministic, tick-driven simulated
// transport that connects StoreClient, StoreServer, and every other
// component that needs to exchange messages in the simulated cluster.
package network

import "fmt"

// Endpoint is an opaque, value-equal network address: a host and a port.
// Two endpoints with equal fields are the same endpoint.
type Endpoint struct {
	Host string
	Port int
}

// NewEndpoint validates and constructs an Endpoint.
func NewEndpoint(host string, port int) (Endpoint, error) {
	if host == "" {
		return Endpoint{}, fmt.Errorf("host cannot be empty")
	}
	if port <= 0 {
		return Endpoint{}, fmt.Errorf("port must be a positive integer")
	}
	return Endpoint{Host: host, Port: port}, nil
}

// MustEndpoint is like NewEndpoint but panics on error; useful for tests
// and static configuration.
func MustEndpoint(host string, port int) Endpoint {
	e, err := NewEndpoint(host, port)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}
