package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	// Test that root command is properly configured
	if RootCmd.Use != "ghstore" {
		t.Errorf("expected Use to be 'ghstore', got '%s'", RootCmd.Use)
	}

	if RootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if RootCmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	if !strings.Contains(RootCmd.Long, "Quick Start") {
		t.Error("expected Long description to contain 'Quick Start' section")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	// Test that subcommands are registered
	commands := RootCmd.Commands()

	expectedCommands := []string{"login", "logout", "list", "check", "install", "update", "info", "history", "status", "daemon"}
	foundCommands := make(map[string]bool)

	for _, cmd := range commands {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("expected command '%s' to be registered", expected)
		}
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"db", "config"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
}

func TestDaemonCommandHasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range daemonCmd.Commands() {
		found[cmd.Name()] = true
	}

	for _, expected := range []string{"start", "stop", "run"} {
		if !found[expected] {
			t.Errorf("expected daemon subcommand '%s' to be registered", expected)
		}
	}
}

func TestPIDAndLogFilePaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	pid, err := pidFilePath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(pid, "daemon.pid") {
		t.Errorf("expected path to end with 'daemon.pid', got '%s'", pid)
	}

	logPath, err := logFilePath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(logPath, "daemon.log") {
		t.Errorf("expected path to end with 'daemon.log', got '%s'", logPath)
	}
}

func TestRootCommandConfiguration(t *testing.T) {
	if RootCmd.RunE == nil {
		t.Fatal("expected RootCmd.RunE to be set for bare invocation")
	}

	if RootCmd.SuggestionsMinimumDistance != 2 {
		t.Errorf("SuggestionsMinimumDistance = %d, want 2", RootCmd.SuggestionsMinimumDistance)
	}

	if !RootCmd.SilenceUsage {
		t.Error("expected SilenceUsage to be true")
	}
	if !RootCmd.SilenceErrors {
		t.Error("expected SilenceErrors to be true")
	}
}

func TestRootCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	defer RootCmd.SetOut(nil)

	RootCmd.SetErr(bytes.NewBuffer(nil))
	defer RootCmd.SetErr(nil)

	RootCmd.SetArgs([]string{"--help"})
	if err := Execute(); err != nil {
		t.Errorf("expected Execute() with --help to succeed, got error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected help output to contain 'Usage:', got: %s", out)
	}
	if !strings.Contains(out, "install") {
		t.Errorf("expected help output to mention 'install', got: %s", out)
	}
}

func TestUnknownSubcommandErrors(t *testing.T) {
	RootCmd.SetOut(bytes.NewBuffer(nil))
	defer RootCmd.SetOut(nil)
	RootCmd.SetErr(bytes.NewBuffer(nil))
	defer RootCmd.SetErr(nil)

	RootCmd.SetArgs([]string{"blorp"})
	err := Execute()

	if err == nil {
		t.Fatal("expected Execute() to return an error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected error to contain 'unknown command', got: %v", err)
	}
}
