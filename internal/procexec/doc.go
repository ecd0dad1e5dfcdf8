// Package procexec starts external tools with their output streams exposed
// as readers.
//
// Spawn never waits on the child. Callers drain Handle.Stdout and
// Handle.Stderr while Handle.Wait collects the exit status on another
// goroutine; the read ends are owned by the handle, so waiting never cuts a
// stream short.
package procexec
