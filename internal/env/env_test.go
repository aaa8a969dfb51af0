package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "linux", Linux.Node())
	assert.Equal(t, "win32", Windows.Node())
	assert.Equal(t, "darwin", Darwin.Node())

	assert.Equal(t, "x64", X64.Node())
	assert.Equal(t, "ia32", IA32.Node())
	assert.Equal(t, "arm64", Arm64.Node())
	assert.Equal(t, "arm", Arm.Node())
}

func TestParseTags(t *testing.T) {
	t.Parallel()

	p, err := ParsePlatform("win32")
	require.NoError(t, err)
	assert.Equal(t, Windows, p)
	p, err = ParsePlatform("mac")
	require.NoError(t, err)
	assert.Equal(t, Darwin, p)
	_, err = ParsePlatform("beos")
	require.Error(t, err)

	a, err := ParseArch("amd64")
	require.NoError(t, err)
	assert.Equal(t, X64, a)
	_, err = ParseArch("mips")
	require.Error(t, err)
}

func TestExpand(t *testing.T) {
	e := Environment{Platform: Linux, Arch: Arm64}

	t.Run("no templates", func(t *testing.T) {
		out, err := Expand("epack", e)
		require.NoError(t, err)
		assert.Equal(t, "epack", out)
	})

	t.Run("arch and platform", func(t *testing.T) {
		out, err := Expand("app-${arch}-${platform}", e)
		require.NoError(t, err)
		assert.Equal(t, "app-arm64-linux", out)
	})

	t.Run("env variable", func(t *testing.T) {
		t.Setenv("EPACK_TEST_VAR", "hello")
		out, err := Expand("_${env.EPACK_TEST_VAR}_", e)
		require.NoError(t, err)
		assert.Equal(t, "_hello_", out)
	})

	t.Run("unset env variable", func(t *testing.T) {
		_, err := Expand("${env.EPACK_DEFINITELY_UNSET}", e)
		require.Error(t, err)
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := Expand("${bogus}", e)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bogus")
	})

	t.Run("whitespace tolerated", func(t *testing.T) {
		out, err := Expand("${ arch }", e)
		require.NoError(t, err)
		assert.Equal(t, "arm64", out)
	})
}
