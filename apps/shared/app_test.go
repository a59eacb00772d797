package shared

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/hierarchy"
	appfs "github.com/trezcool/shule/fs"
)

func memoryConfig() *core.Config {
	conf := core.NewTestConfig()
	conf.Database.Engine = EngineMemory
	return conf
}

func TestNewApp_memory(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, memoryConfig(), Options{})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB())
	_, err = app.Registry.Get("institutions")
	assert.NoError(t, err)

	opts, err := app.Registry.Options(ctx, hierarchy.Institution, "")
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, "Greenfield Academy", opts[0].Name)
}

func TestReadScreens(t *testing.T) {
	embedded, err := appfs.FS.ReadFile(appfs.ScreensFile)
	require.NoError(t, err)

	conf := memoryConfig()
	got, err := ReadScreens(conf)
	require.NoError(t, err)
	assert.Equal(t, embedded, got)

	conf.ScreensFile = filepath.Join(t.TempDir(), "screens.yaml")
	require.NoError(t, os.WriteFile(conf.ScreensFile, []byte("screens: []\n"), 0o600))
	got, err = ReadScreens(conf)
	require.NoError(t, err)
	assert.Equal(t, "screens: []\n", string(got))

	conf.ScreensFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = ReadScreens(conf)
	assert.Error(t, err)
}
