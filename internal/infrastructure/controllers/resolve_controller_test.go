//go:build unit

package controllers_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rios0rios0/pinbump/internal/domain/commands"
	"github.com/rios0rios0/pinbump/internal/domain/entities"
	"github.com/rios0rios0/pinbump/internal/infrastructure/controllers"
	"github.com/rios0rios0/pinbump/test/domain/commanddoubles"
	"github.com/rios0rios0/pinbump/test/domain/entitybuilders"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newCommand(t *testing.T, controller *controllers.ResolveController, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	//nolint:exhaustruct // Minimal Command initialization with required fields only
	cmd := &cobra.Command{Use: "resolve"}
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	controller.AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	return cmd, out
}

func TestResolveControllerExecute(t *testing.T) {
	t.Parallel()

	t.Run("should apply flag overrides and build one scan pass per source", func(t *testing.T) {
		t.Parallel()

		// given
		config := writeFile(t, "pinbump.yaml", "token: from-file\nsource: tags\n")
		refsFile := writeFile(t, "refs.yaml", "references:\n  - uses: actions/cache@v3\n    file: ci.yml\n    line: 3\n")
		stub := &commanddoubles.StubRunCommand{}
		controller := controllers.NewResolveController(stub)
		cmd, _ := newCommand(t, controller,
			"--config", config, "--file", refsFile, "--source", "git", "--workers", "9", "--token", "from-flag")

		// when
		err := controller.Execute(cmd, []string{"actions/checkout@0400d5f#v4.2.4"})

		// then
		require.NoError(t, err)
		require.Equal(t, 1, stub.ExecuteCallCount)
		assert.Equal(t, entities.SourceGit, stub.LastSettings.Source)
		assert.Equal(t, 9, stub.LastSettings.Run.Workers)
		assert.Equal(t, "from-flag", stub.LastSettings.Token)
		require.Len(t, stub.LastScans, 2)
		assert.Equal(t, refsFile, stub.LastScans[0].Name)
		assert.Equal(t, "ci.yml", stub.LastScans[0].References[0].Provenance.File)
		assert.Equal(t, "v4.2.4", stub.LastScans[1].References[0].Annotation)
	})

	t.Run("should print the report as yaml", func(t *testing.T) {
		t.Parallel()

		// given
		hash := "11bd71901bbe5b1630ceea73d27597364c9af683"
		latest := "v5.0.0"
		ref := entitybuilders.NewReferenceBuilder().WithName("checkout").BuildReference()
		stub := &commanddoubles.StubRunCommand{Result: entities.ScanResult{
			Name: "arguments",
			Records: []entities.ResolutionRecord{{
				Reference:      ref,
				CurrentRef:     "v4",
				DisplayVersion: "v4",
				Kind:           entities.RefKindTag,
				LatestVersion:  &latest,
				LatestHash:     &hash,
				Severity:       entities.SeverityMajor,
				IsBreaking:     true,
				HasUpdate:      true,
				Status:         entities.StatusUpdateAvailable,
			}},
		}}
		controller := controllers.NewResolveController(stub)
		config := writeFile(t, "pinbump.yaml", "source: tags\n")
		cmd, out := newCommand(t, controller, "--config", config, "--output", "yaml")

		// when
		err := controller.Execute(cmd, []string{"actions/checkout@v4"})

		// then
		require.NoError(t, err)
		var report map[string]any
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
		records, ok := report["records"].([]any)
		require.True(t, ok)
		require.Len(t, records, 1)
		record, ok := records[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "v5.0.0", record["latest"])
		assert.Equal(t, hash, record["latest-hash"])
		assert.Equal(t, true, record["breaking"])
		assert.Equal(t, false, record["selected-by-default"])
	})

	t.Run("should print the report and return the error when every reference failed", func(t *testing.T) {
		t.Parallel()

		// given
		ref := entitybuilders.NewReferenceBuilder().BuildReference()
		stub := &commanddoubles.StubRunCommand{
			Result: entities.ScanResult{Records: []entities.ResolutionRecord{{
				Reference: ref,
				Status:    entities.StatusFailed,
				Err:       errors.New("unauthorized"),
			}}},
			ExecuteErr: commands.ErrAllResolutionsFailed,
		}
		controller := controllers.NewResolveController(stub)
		config := writeFile(t, "pinbump.yaml", "source: tags\n")
		cmd, out := newCommand(t, controller, "--config", config)

		// when
		err := controller.Execute(cmd, []string{"actions/checkout@v4"})

		// then
		require.ErrorIs(t, err, commands.ErrAllResolutionsFailed)
		assert.Contains(t, out.String(), "failed: unauthorized")
		assert.Contains(t, out.String(), "0 updates available, 0 up to date, 1 failed")
	})

	t.Run("should not run without references", func(t *testing.T) {
		t.Parallel()

		// given
		stub := &commanddoubles.StubRunCommand{}
		controller := controllers.NewResolveController(stub)
		config := writeFile(t, "pinbump.yaml", "source: tags\n")
		cmd, _ := newCommand(t, controller, "--config", config)

		// when
		err := controller.Execute(cmd, nil)

		// then
		require.Error(t, err)
		assert.Zero(t, stub.ExecuteCallCount)
	})

	t.Run("should reject an invalid reference argument", func(t *testing.T) {
		t.Parallel()

		// given
		stub := &commanddoubles.StubRunCommand{}
		controller := controllers.NewResolveController(stub)
		config := writeFile(t, "pinbump.yaml", "source: tags\n")
		cmd, _ := newCommand(t, controller, "--config", config)

		// when
		err := controller.Execute(cmd, []string{"checkout"})

		// then
		require.ErrorIs(t, err, entities.ErrInvalidReference)
		assert.Zero(t, stub.ExecuteCallCount)
	})

	t.Run("should reject an unknown output format", func(t *testing.T) {
		t.Parallel()

		// given
		stub := &commanddoubles.StubRunCommand{}
		controller := controllers.NewResolveController(stub)
		cmd, _ := newCommand(t, controller, "--output", "xml")

		// when
		err := controller.Execute(cmd, []string{"actions/checkout@v4"})

		// then
		require.Error(t, err)
		assert.Zero(t, stub.ExecuteCallCount)
	})
}

func TestVersionControllerExecute(t *testing.T) {
	t.Parallel()

	t.Run("should print the build version", func(t *testing.T) {
		t.Parallel()

		// given
		controller := controllers.NewVersionController()
		//nolint:exhaustruct // Minimal Command initialization with required fields only
		cmd := &cobra.Command{Use: "version"}
		out := &bytes.Buffer{}
		cmd.SetOut(out)

		// when
		err := controller.Execute(cmd, nil)

		// then
		require.NoError(t, err)
		assert.Equal(t, "pinbump "+entities.BuildVersion+"\n", out.String())
	})
}
