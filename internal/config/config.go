// Package config defines the immutable configuration struct rubyshd is
// run with. Loading it from the environment is the cmd/rubyshd
// adapter's job (spec.md §1 treats configuration loading as an
// external collaborator) — this package only names the recognized
// keys and their defaults.
package config

// Config is the immutable set of recognized settings, built once at
// process start and never mutated afterward.
type Config struct {
	PublicRootPath string `env:"PUBLIC_ROOT_PATH" envDefault:"./public"`
	ErrdocsPath    string `env:"ERRDOCS_PATH" envDefault:"./errdocs"`
	PartialsPath   string `env:"PARTIALS_PATH" envDefault:"./partials"`
	DataPath       string `env:"DATA_PATH" envDefault:"./data"`

	ClientCACertificatePEMFilename string `env:"TLS_CLIENT_CA_CERTIFICATE_PEM_FILENAME"`
	ServerCertificatePEMFilename   string `env:"TLS_SERVER_CERTIFICATE_PEM_FILENAME"`
	ServerPrivateKeyPEMFilename    string `env:"TLS_SERVER_PRIVATE_KEY_PEM_FILENAME"`

	MaxRequestHeaderSize int `env:"MAX_REQUEST_HEADER_SIZE" envDefault:"2048"`
	TLSListenPort        int `env:"TLS_LISTEN_PORT" envDefault:"4443"`
	DefaultHostname      string `env:"DEFAULT_HOSTNAME" envDefault:"ruby.sh"`

	// RenderedFileCacheSize bounds the entry count of the rendered-file
	// cache (internal/cache). Not an environment key in spec.md §6; it
	// is a compile-time-ish operational knob kept here for convenience.
	RenderedFileCacheSize int `env:"RENDERED_FILE_CACHE_SIZE" envDefault:"256"`

	// MaxOpenConnections bounds the number of simultaneously in-flight
	// connections the accept loop (C6) will service (spec.md §5's
	// "bounded semaphore of in-flight connections").
	MaxOpenConnections int `env:"MAX_OPEN_CONNECTIONS" envDefault:"256"`

	// ConnectionTimeoutSeconds is the total per-connection deadline
	// spec.md §5 requires ("each connection carries a total deadline;
	// on expiry the task is dropped").
	ConnectionTimeoutSeconds int `env:"CONNECTION_TIMEOUT_SECONDS" envDefault:"30"`

	// LogLevel controls the structured logger's verbosity (C13).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// CacheableMaxAgeSeconds is the compile-time constant spec.md §4.8
// step 5 assigns to cacheable static HTTPS responses.
const CacheableMaxAgeSeconds = 3600
