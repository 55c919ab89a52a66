package server

type Config struct {
	// ListenAddr is the HTTP listen address of the daemon API, e.g. 127.0.0.1:7717.
	ListenAddr string `yaml:"listen_addr"`
}

func DefaultConfig() Config {
	return Config{ListenAddr: "127.0.0.1:7717"}
}
