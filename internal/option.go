package internal

import "github.com/halvar/vellum/internal/compiler"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	compiler compiler.Service
	mcpMode  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithCompiler overrides the compiler service. Used in tests.
func WithCompiler(svc compiler.Service) Option {
	return func(a *application) {
		a.compiler = svc
	}
}

// WithMCPMode runs the stdio MCP server instead of the HTTP server.
func WithMCPMode(enabled bool) Option {
	return func(a *application) {
		a.mcpMode = enabled
	}
}
