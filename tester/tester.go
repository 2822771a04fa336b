// Package tester defines the component contract the harness
// subcommands drive.
package tester

// Tester is implemented by each harness component.
type Tester interface {
	// Name returns the name of the component.
	Name() string
	// Apply runs the component.
	Apply() error
	// Delete removes the artifacts the component produced.
	Delete() error
}
