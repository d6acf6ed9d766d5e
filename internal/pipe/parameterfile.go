package pipe

// ParameterFile is a reference to an external key/value document on disk
// attached to a pipe. Unless MultiUse is true on every pipe
// referencing it, a given path may be attached to at most one pipe across
// the graph -- the Graph enforces this at Add time since it requires
// knowledge of the whole topology, not just a single pipe's declaration.
type ParameterFile struct {
	Path     string
	MultiUse bool
}

// NewParameterFile declares a config file dependency for a pipe.
func NewParameterFile(path string, multiUse bool) *ParameterFile {
	return &ParameterFile{Path: path, MultiUse: multiUse}
}
