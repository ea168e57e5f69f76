package language

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()

	assert.Equal(t,
		[]string{"python", "javascript", "java", "cpp", "c", "go", "rust", "ruby", "php"},
		reg.SupportedIDs())

	py, ok := reg.Lookup("python")
	require.True(t, ok)
	assert.Equal(t, "Python (3.8.1)", py.DisplayName)
	assert.Equal(t, "71", py.BackendRuntimeID)
	assert.Equal(t, "main.py", py.Sandbox.SourceFile)

	for _, spec := range reg.All() {
		assert.NotEmpty(t, spec.Sandbox.Image, spec.ID)
		assert.NotEmpty(t, spec.Sandbox.RunCmd, spec.ID)
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	reg := Default()

	upper, ok := reg.Lookup("PYTHON")
	require.True(t, ok)
	lower, ok := reg.Lookup("python")
	require.True(t, ok)
	assert.Equal(t, lower, upper)

	_, ok = reg.Lookup("brainfuck")
	assert.False(t, ok)
}

func TestSupportedIDsIsACopy(t *testing.T) {
	reg := Default()
	ids := reg.SupportedIDs()
	ids[0] = "cobol"

	_, ok := reg.Lookup("python")
	assert.True(t, ok)
	assert.Equal(t, "python", reg.SupportedIDs()[0])
}

func TestLoadRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"empty":        "languages: []",
		"missing id":   "languages:\n  - name: X\n",
		"missing name": "languages:\n  - id: x\n",
		"duplicate":    "languages:\n  - id: x\n    name: X\n  - id: X\n    name: X2\n",
		"not yaml":     "languages: [",
	}

	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(table))
			require.Error(t, err)
		})
	}
}
