package rbm

// Config configures the machine
type Config struct {
	Notespan    int   // pitches per frame
	Timesteps   int   // frames per training example
	HiddenNodes int   // width of the hidden layer
	Seed        int64 // seed for the weight initialisation
}

// DefaultConf returns the stock layer sizes for a pitch window notespan wide
func DefaultConf(notespan int) Config {
	return Config{
		Notespan:    notespan,
		Timesteps:   48,
		HiddenNodes: 50,
	}
}

// VisibleNodes is the length of one flattened training example
func (conf Config) VisibleNodes() int {
	return 2 * conf.Notespan * conf.Timesteps
}

// IsValid reports whether every layer has at least one unit
func (conf Config) IsValid() bool {
	return conf.Notespan >= 1 &&
		conf.Timesteps >= 1 &&
		conf.HiddenNodes >= 1
}
