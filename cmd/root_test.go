package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"serve", "worker", "migrate", "extract", "config"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "payrecon", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	flag = serveCmd.Flags().Lookup("worker-interval")
	require.NotNil(t, flag, "serve command should have --worker-interval flag")
	assert.Equal(t, "0s", flag.DefValue)
}

func TestWorkerCommand_Flags(t *testing.T) {
	for _, name := range []string{"limit", "dry-run", "interval"} {
		assert.NotNil(t, workerCmd.Flags().Lookup(name), "worker should have --%s flag", name)
	}
	assert.Equal(t, "false", workerCmd.Flags().Lookup("dry-run").DefValue)
}

func TestExtractCommand_Flags(t *testing.T) {
	flag := extractCmd.Flags().Lookup("reconcile-memo")
	require.NotNil(t, flag, "extract command should have --reconcile-memo flag")
	assert.Error(t, extractCmd.Args(extractCmd, nil))
	assert.NoError(t, extractCmd.Args(extractCmd, []string{"-"}))
}
