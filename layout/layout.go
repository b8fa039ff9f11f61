// Package layout defines the on-host directory structure of a deployed
// application:
//
//	root/
//	    bin/   executables
//	    app/   application code
//	    log/   log files
//	    conf/  configuration
//	    venv/  virtual environment
//
// Callers resolve paths through a Layout instead of hardcoding the
// structure, so it can change without breaking dependent code.
package layout

import "path"

// Layout resolves directories under a deploy root.
// Remote paths are POSIX, so path.Join is used rather than filepath.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root
func New(root string) Layout {
	return Layout{Root: root}
}

// Bin returns the executables directory
func (l Layout) Bin() string {
	return path.Join(l.Root, "bin")
}

// App returns the application code directory
func (l Layout) App() string {
	return path.Join(l.Root, "app")
}

// Log returns the log directory
func (l Layout) Log() string {
	return path.Join(l.Root, "log")
}

// Conf returns the configuration directory
func (l Layout) Conf() string {
	return path.Join(l.Root, "conf")
}

// Venv returns the virtual environment directory
func (l Layout) Venv() string {
	return path.Join(l.Root, "venv")
}

// All returns every directory in the layout, for bulk creation
func (l Layout) All() []string {
	return []string{l.Bin(), l.App(), l.Log(), l.Conf(), l.Venv()}
}
