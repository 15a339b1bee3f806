// Package tqlplugin is the plugin registry: external programs described
// by a descriptor, launched synchronously via os/exec with their stdout
// and stderr streamed back to the session.
package tqlplugin

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"

	"github.com/mrorigo/tuiql/internal/kernelerr"
	"github.com/mrorigo/tuiql/internal/obslog"
)

// Descriptor is a plugin entry as read from configuration.
type Descriptor struct {
	Name         string
	Path         string
	Description  string
	Capabilities []string
}

// Registry holds the descriptors loaded at startup, ordered by
// registration so listing is deterministic.
type Registry struct {
	entries []Descriptor
}

// NewRegistry builds a registry from a set of descriptors, preserving
// their given order.
func NewRegistry(descriptors []Descriptor) *Registry {
	return &Registry{entries: descriptors}
}

// Register adds or replaces a descriptor by name.
func (r *Registry) Register(d Descriptor) {
	for i, e := range r.entries {
		if e.Name == d.Name {
			r.entries[i] = d
			return
		}
	}
	r.entries = append(r.entries, d)
}

// Names returns the registered plugin names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name
	}
	return out
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Descriptor{}, false
}

// PluginFailedError reports a plugin process that exited non-zero.
type PluginFailedError struct {
	Name     string
	ExitCode int
}

func (e *PluginFailedError) Error() string {
	return fmt.Sprintf("plugin %q exited with status %d", e.Name, e.ExitCode)
}

// Invoke looks up name, re-verifies its path exists and is executable,
// and runs it synchronously with args, streaming stdout/stderr to out/errw.
func (r *Registry) Invoke(name string, args []string, out, errw io.Writer) error {
	d, ok := r.Get(name)
	if !ok {
		return kernelerr.New(kernelerr.Plugin, fmt.Sprintf("unknown plugin %q", name))
	}

	info, err := os.Stat(d.Path)
	if err != nil {
		return kernelerr.Wrap(kernelerr.Plugin, fmt.Sprintf("plugin %q not found at %s", name, d.Path), err)
	}
	if !isExecutable(info) {
		return kernelerr.New(kernelerr.Plugin, fmt.Sprintf("plugin %q at %s is not executable", name, d.Path))
	}

	correlationID := uuid.NewString()
	cmd := exec.Command(d.Path, args...)
	cmd.Stdout = out
	cmd.Stderr = errw
	cmd.Env = append(os.Environ(), "TUIQL_CORRELATION_ID="+correlationID)

	obslog.Log.Info().Str("plugin", name).Str("correlation_id", correlationID).Msg("invoking plugin")

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &PluginFailedError{Name: name, ExitCode: exitErr.ExitCode()}
		}
		return kernelerr.Wrap(kernelerr.Plugin, fmt.Sprintf("failed to launch plugin %q", name), err)
	}
	return nil
}

func isExecutable(info os.FileInfo) bool {
	if info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
