package apiclient

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_AddAuth(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		wantInMap bool
	}{
		{name: "given login, then stores in dedicated field", key: AuthLogin, value: "user"},
		{name: "given password, then stores in dedicated field", key: AuthPassword, value: "secret"},
		{name: "given domain, then stores in dedicated field", key: AuthDomain, value: "example.pro"},
		{name: "given custom key, then stores in auth map", key: "key", value: "abc", wantInMap: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParams().AddAuth(tt.key, tt.value)

			got, ok := p.Auth(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.value, got)

			_, inMap := p.AuthParams()[tt.key]
			assert.Equal(t, tt.wantInMap, inMap)
		})
	}
}

func TestParams_AuthParams_NeverIncludesReservedKeys(t *testing.T) {
	p := NewParams().
		AddAuth(AuthLogin, "user").
		AddAuth(AuthPassword, "secret").
		AddAuth(AuthDomain, "example.pro").
		AddAuth("api_key", "k")

	assert.Equal(t, map[string]string{"api_key": "k"}, p.AuthParams())
}

func TestParams_Auth_Missing(t *testing.T) {
	p := NewParams()

	_, ok := p.Auth("nope")
	assert.False(t, ok)

	_, ok = p.Auth(AuthDomain)
	assert.False(t, ok)
}

func TestParams_AuthParams_ReturnsCopy(t *testing.T) {
	p := NewParams().AddAuth("k", "v")
	m := p.AuthParams()
	m["k"] = "changed"

	got, _ := p.Auth("k")
	assert.Equal(t, "v", got)
}

func TestParams_MergeGet_LeftFold(t *testing.T) {
	tests := []struct {
		name   string
		merges []map[string]any
		want   map[string]any
	}{
		{
			name:   "given single merge, then map equals input",
			merges: []map[string]any{{"a": 1}},
			want:   map[string]any{"a": 1},
		},
		{
			name:   "given overlapping merges, then later values win",
			merges: []map[string]any{{"a": 1, "b": 2}, {"b": 3, "c": 4}},
			want:   map[string]any{"a": 1, "b": 3, "c": 4},
		},
		{
			name:   "given empty merge, then map is unchanged",
			merges: []map[string]any{{"a": 1}, {}},
			want:   map[string]any{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParams()
			for _, m := range tt.merges {
				p.MergeGet(m)
				p.MergePost(m)
			}

			assert.Equal(t, tt.want, p.GetParams())
			assert.Equal(t, tt.want, p.PostParams())
		})
	}
}

func TestParams_AddGetAndPost(t *testing.T) {
	p := NewParams().
		AddGet("type", "order_bot").
		AddGet("type", "order_bot_result").
		AddPost("id", 5)

	v, ok := p.GetParam("type")
	require.True(t, ok)
	assert.Equal(t, "order_bot_result", v)

	v, ok = p.PostParam("id")
	require.True(t, ok)
	assert.Equal(t, 5, v)

	_, ok = p.GetParam("missing")
	assert.False(t, ok)
	assert.True(t, p.HasGet())
	assert.True(t, p.HasPost())
}

func TestParams_Clear(t *testing.T) {
	p := NewParams().
		MergeGet(map[string]any{"a": 1}).
		MergePost(map[string]any{"b": 2})

	p.ClearGet().ClearPost()

	assert.Empty(t, p.GetParams())
	assert.Empty(t, p.PostParams())
	assert.NotNil(t, p.GetParams())
	assert.False(t, p.HasGet())
	assert.False(t, p.HasPost())

	// Clearing an already-empty store stays empty.
	p.ClearGet()
	assert.Empty(t, p.GetParams())
}

func TestParams_Proxy(t *testing.T) {
	p := NewParams()
	assert.False(t, p.HasProxy())

	p.SetProxy("http://proxy.internal:3128")

	addr, ok := p.Proxy()
	assert.True(t, ok)
	assert.True(t, p.HasProxy())
	assert.Equal(t, "http://proxy.internal:3128", addr)
}

func TestParams_SetFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "upload.bin")
	require.NoError(t, os.WriteFile(good, []byte("hello"), 0o600))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "given readable file, then stages it", path: good},
		{name: "given missing path, then returns IOError", path: filepath.Join(dir, "missing"), wantErr: true},
		{name: "given directory, then returns IOError", path: dir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParams()
			err := p.SetFile(tt.path)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrIO)
				var ioErr *IOError
				assert.ErrorAs(t, err, &ioErr)
				assert.False(t, p.HasFile())
				return
			}

			require.NoError(t, err)
			assert.True(t, p.HasFile())
			assert.Equal(t, tt.path, p.Filename())
		})
	}
}

func TestParams_SetFile_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(good, []byte("abc"), 0o600))

	p := NewParams()
	require.NoError(t, p.SetFile(good))

	err := p.SetFile(filepath.Join(dir, "nope.txt"))
	require.Error(t, err)
	assert.Equal(t, good, p.Filename())
}

func TestParams_FileParams(t *testing.T) {
	p := NewParams()
	_, ok := p.FileParams()
	assert.False(t, ok)

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2,3\n"), 0o600))
	require.NoError(t, p.SetFile(path))

	fp, ok := p.FileParams()
	require.True(t, ok)
	assert.Equal(t, FileParams{Name: path, Size: 6}, fp)
}

func TestParams_OpenCloseFile(t *testing.T) {
	p := NewParams()
	_, err := p.OpenFile()
	assert.ErrorIs(t, err, ErrIO)

	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01}, 0o600))
	require.NoError(t, p.SetFile(path))

	f, err := p.OpenFile()
	require.NoError(t, err)
	buf := make([]byte, 2)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, p.CloseFile())
	// Second close is a no-op.
	require.NoError(t, p.CloseFile())

	require.NoError(t, p.ClearFile())
	assert.False(t, p.HasFile())
}
