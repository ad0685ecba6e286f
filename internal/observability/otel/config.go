// Package otel wires OpenTelemetry tracing for ethosgate.
// Tracing is off unless --otel is given.
package otel

import (
	"errors"
)

// OTLP exporter protocols
const (
	ProtocolHTTP = "otlphttp"
	ProtocolGRPC = "otlpgrpc"
)

// TracerName identifies spans created by this module
const TracerName = "github.com/ethosgate/ethosgate"

// Config holds tracing options
type Config struct {
	Enabled     bool
	Endpoint    string // "http://localhost:4318" or "localhost:4317"
	Protocol    string
	Insecure    bool
	ServiceName string
	SampleRatio float64
}

// DefaultConfig has tracing disabled
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Protocol:    ProtocolHTTP,
		ServiceName: "ethosgate",
		SampleRatio: 1.0,
	}
}

// Validate only checks an enabled config
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return errors.New("otel: protocol must be 'otlphttp' or 'otlpgrpc'")
	}

	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return errors.New("otel: sample-ratio must be between 0 and 1")
	}
	if c.ServiceName == "" {
		return errors.New("otel: service name must not be empty")
	}

	return nil
}

// endpoint resolves the exporter address: explicit flag, then env, then protocol default
func (c Config) endpoint(env func(string) string) string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if v := env("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		return v
	}
	if c.Protocol == ProtocolGRPC {
		return "localhost:4317"
	}
	return "http://localhost:4318"
}
