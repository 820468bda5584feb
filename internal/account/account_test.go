package account

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorProducesRoutableAddresses(t *testing.T) {
	g := NewGenerator("user123", "2925.com", "TavilyAuto123!")

	id, err := g.Next()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^user123-[a-z0-9]{8}@2925\.com$`), id.Email)
	assert.Equal(t, "TavilyAuto123!", id.Password)
}

func TestGeneratorSuffixesVary(t *testing.T) {
	g := NewGenerator("p", "2925.com", "pw")
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := g.Next()
		require.NoError(t, err)
		seen[id.Email] = true
	}
	assert.Greater(t, len(seen), 45, "suffixes should be effectively unique")
}

func TestRecordLineFormat(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	r := Record{
		Email:     "user-ab12cd34@2925.com",
		Password:  "TavilyAuto123!",
		Key:       "tvly-abc123",
		CreatedAt: ts,
	}
	assert.Equal(t,
		"user-ab12cd34@2925.com,TavilyAuto123!,tvly-abc123,2026-03-14 09:26:53;\n",
		r.Line())
}

func TestRecordLineMissingPassword(t *testing.T) {
	r := Record{
		Email:     "u@2925.com",
		Key:       "tvly-x",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	assert.Equal(t, "u@2925.com,N/A,tvly-x,2026-01-02 03:04:05;\n", r.Line())
}

func TestWriterAppendsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_keys.md")
	w, err := NewWriter(path)
	require.NoError(t, err)

	ts := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.Append(Record{Email: "a@2925.com", Password: "p", Key: "tvly-1", CreatedAt: ts}))
	require.NoError(t, w.Append(Record{Email: "b@2925.com", Key: "tvly-2", CreatedAt: ts}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "a@2925.com,p,tvly-1,2026-06-01 12:00:00;", lines[0])
	assert.Equal(t, "b@2925.com,N/A,tvly-2,2026-06-01 12:00:00;", lines[1])
}
