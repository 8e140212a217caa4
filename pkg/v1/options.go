package v1

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	dataDir   string
	vaultPath string
	watch     bool
}

// WithDataDir sets the directory holding the journal, index and config.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithVaultPath overrides the configured note-vault root.
func WithVaultPath(path string) Option {
	return func(c *clientConfig) {
		c.vaultPath = path
	}
}

// WithWatcher starts the background vault watcher with the client.
func WithWatcher() Option {
	return func(c *clientConfig) {
		c.watch = true
	}
}
