package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	version  string
	input    string
	pagesDir string
	out      io.Writer
	logOut   io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithInput overrides the configured hierarchy file.
func WithInput(path string) Option {
	return func(a *application) {
		a.input = path
	}
}

// WithPagesDir overrides the configured page body directory.
func WithPagesDir(dir string) Option {
	return func(a *application) {
		a.pagesDir = dir
	}
}

// WithOutput sets where command results (reports, counts) are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithLogOutput sets where JSON logs are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
