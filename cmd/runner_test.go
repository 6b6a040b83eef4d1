package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/panqplex/panqplex/internal/shared"
	tu "github.com/panqplex/panqplex/internal/testing"
	"github.com/urfave/cli/v3"
)

// testConfig returns a configuration pointing at a throwaway database with
// one configured account.
func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "test.db")
	config.Database.MaxOpenConns = 1
	config.Database.MaxIdleConns = 1
	config.Accounts = []shared.AccountConfig{
		{ID: "studio", DisplayName: "Studio", MaxDailyUploads: 5},
	}
	return config
}

// newTestRunner wires a Runner over a mock transport and buffered output,
// and returns the root command for dispatching.
func newTestRunner(t *testing.T) (*Runner, *tu.MockTransport, *bytes.Buffer, *cli.Command) {
	t.Helper()
	transport := tu.NewMockTransport()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:    testConfig(t),
		Transport: transport,
		Creds:     tu.MockCredentials{},
		Output:    output,
	})
	t.Cleanup(func() { runner.Close() })

	root := &cli.Command{Name: "panqplex", Commands: runner.register()}
	return runner, transport, output, root
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			transport := tu.NewMockTransport()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Transport:  transport,
				Creds:      tu.MockCredentials{},
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.transport != transport {
				t.Error("expected transport to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "auth", "scan", "ls", "meta", "ready", "resolve", "check", "sync", "accounts"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d = %s, want %s", i, commands[i].Name, name)
			}
		}
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes formatted text", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("output = %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: tu.FWriter{}})

			err := runner.writePlain("hello")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("verbose flag lowers the log level", func(t *testing.T) {
		runner, _, _, root := newTestRunner(t)

		if err := root.Run(context.Background(), []string{"panqplex", "ls", "--verbose"}); err != nil {
			t.Fatalf("ls --verbose: %v", err)
		}
		if runner.logger.GetLevel() != log.DebugLevel {
			t.Errorf("log level = %v, want debug", runner.logger.GetLevel())
		}
	})

	t.Run("Close without engine is a no-op", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		if err := runner.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
}

func TestScanAndListCommands(t *testing.T) {
	_, _, output, root := newTestRunner(t)
	ctx := context.Background()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("media bytes"), 0644); err != nil {
		t.Fatalf("failed to write media file: %v", err)
	}

	if err := root.Run(ctx, []string{"panqplex", "scan", dir}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(output.String(), "Discovered 1 new") {
		t.Errorf("scan output = %q", output.String())
	}

	output.Reset()
	if err := root.Run(ctx, []string{"panqplex", "ls"}); err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(output.String(), "clip.mp4") {
		t.Errorf("ls output = %q", output.String())
	}

	output.Reset()
	if err := root.Run(ctx, []string{"panqplex", "ls", "--csv"}); err != nil {
		t.Fatalf("ls --csv: %v", err)
	}
	if !strings.Contains(output.String(), "acknowledged") {
		t.Errorf("csv output = %q", output.String())
	}

	if err := root.Run(ctx, []string{"panqplex", "ls", "--status", "bogus"}); err == nil {
		t.Error("expected error for unknown status filter")
	}
}

func TestMetaReadySyncCommands(t *testing.T) {
	_, transport, output, root := newTestRunner(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("media bytes"), 0644); err != nil {
		t.Fatalf("failed to write media file: %v", err)
	}
	if err := root.Run(ctx, []string{"panqplex", "scan", dir}); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if err := root.Run(ctx, []string{"panqplex", "meta", "set", path, "title", "My Clip"}); err != nil {
		t.Fatalf("meta set: %v", err)
	}
	if err := root.Run(ctx, []string{"panqplex", "ready", path}); err != nil {
		t.Fatalf("ready: %v", err)
	}

	output.Reset()
	if err := root.Run(ctx, []string{"panqplex", "sync"}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(output.String(), "Uploaded 1 file(s)") {
		t.Errorf("sync output = %q", output.String())
	}
	if transport.Creates != 1 {
		t.Errorf("expected one upload session, got %d", transport.Creates)
	}

	output.Reset()
	if err := root.Run(ctx, []string{"panqplex", "check"}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(output.String(), "Finished") {
		t.Errorf("check output = %q", output.String())
	}

	output.Reset()
	if err := root.Run(ctx, []string{"panqplex", "accounts"}); err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if !strings.Contains(output.String(), "studio") || !strings.Contains(output.String(), "1/5") {
		t.Errorf("accounts output = %q", output.String())
	}
}

func TestMetaCommandValidation(t *testing.T) {
	_, _, _, root := newTestRunner(t)
	ctx := context.Background()

	if err := root.Run(ctx, []string{"panqplex", "meta", "set"}); err == nil {
		t.Error("expected error for missing arguments")
	}
	if err := root.Run(ctx, []string{"panqplex", "ready"}); err == nil {
		t.Error("expected error for missing file argument")
	}
	if err := root.Run(ctx, []string{"panqplex", "scan"}); err == nil {
		t.Error("expected error for missing directory argument")
	}
}
