package config

type Op struct {
	dataDir string
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) error {
	for _, opt := range opts {
		opt(op)
	}

	if op.dataDir != "" {
		d, err := setupDir(op.dataDir)
		if err != nil {
			return err
		}
		op.dataDir = d
	}
	return nil
}

// WithDataDir places the default log file under dataDir instead of
// logging to stderr.
func WithDataDir(dataDir string) OpOption {
	return func(op *Op) {
		op.dataDir = dataDir
	}
}
