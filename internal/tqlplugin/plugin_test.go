package tqlplugin

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mrorigo/tuiql/internal/testutil"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("plugin invocation assumes a POSIX executable bit")
	}
	path := filepath.Join(t.TempDir(), "plugin.sh")
	testutil.AssertNoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestInvokeStreamsStdout(t *testing.T) {
	path := writeScript(t, "echo hello\n")
	r := NewRegistry([]Descriptor{{Name: "greet", Path: path}})

	var out, errw bytes.Buffer
	testutil.AssertNoError(t, r.Invoke("greet", nil, &out, &errw))
	testutil.AssertEqual(t, out.String(), "hello\n")
}

func TestInvokeSetsCorrelationIDEnvVar(t *testing.T) {
	path := writeScript(t, "echo $TUIQL_CORRELATION_ID\n")
	r := NewRegistry([]Descriptor{{Name: "greet", Path: path}})

	var out, errw bytes.Buffer
	testutil.AssertNoError(t, r.Invoke("greet", nil, &out, &errw))
	if out.Len() == 0 || out.String() == "\n" {
		t.Fatalf("expected a non-empty correlation id, got %q", out.String())
	}
}

func TestInvokeReportsNonZeroExit(t *testing.T) {
	path := writeScript(t, "exit 3\n")
	r := NewRegistry([]Descriptor{{Name: "fail", Path: path}})

	var out, errw bytes.Buffer
	err := r.Invoke("fail", nil, &out, &errw)
	pf, ok := err.(*PluginFailedError)
	if !ok {
		t.Fatalf("expected *PluginFailedError, got %T: %v", err, err)
	}
	testutil.AssertEqual(t, pf.ExitCode, 3)
}

func TestInvokeUnknownPlugin(t *testing.T) {
	r := NewRegistry(nil)
	var out, errw bytes.Buffer
	if err := r.Invoke("nope", nil, &out, &errw); err == nil {
		t.Fatal("expected an error for an unknown plugin")
	}
}

func TestInvokeRejectsNonExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable-bit check assumes POSIX permissions")
	}
	path := filepath.Join(t.TempDir(), "notexec.sh")
	testutil.AssertNoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0644))
	r := NewRegistry([]Descriptor{{Name: "notexec", Path: path}})

	var out, errw bytes.Buffer
	if err := r.Invoke("notexec", nil, &out, &errw); err == nil {
		t.Fatal("expected an error for a non-executable plugin")
	}
}
