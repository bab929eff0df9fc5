package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "zero", input: "0", want: 0},
		{name: "bytes suffix", input: "512B", want: 512},
		{name: "IEC kibibytes", input: "100KiB", want: 100 * 1024},
		{name: "IEC mebibytes", input: "10MiB", want: 10 * 1024 * 1024},
		{name: "SI megabytes", input: "10MB", want: 10 * 1000 * 1000},
		{name: "space between value and unit", input: "2 GiB", want: 2 * 1024 * 1024 * 1024},
		{name: "surrounding whitespace", input: "  1MiB  ", want: 1024 * 1024},

		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "negative", input: "-1MiB", wantErr: true},
		{name: "unknown unit", input: "100X", wantErr: true},
		{name: "letters only", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "1.5 MiB", FormatSize(1536*1024))
	assert.Equal(t, "0 B", FormatSize(-5))
}

func TestStatsAdd(t *testing.T) {
	total := Stats{FilesCopied: 1, BytesCopied: 10}
	total.Add(Stats{
		LevelsVisited:  2,
		FoldersCreated: 1,
		FoldersRemoved: 3,
		FilesCopied:    2,
		FilesRemoved:   1,
		FilesSkipped:   4,
		BytesCopied:    5,
		Errors:         1,
	})

	assert.Equal(t, Stats{
		LevelsVisited:  2,
		FoldersCreated: 1,
		FoldersRemoved: 3,
		FilesCopied:    3,
		FilesRemoved:   1,
		FilesSkipped:   4,
		BytesCopied:    15,
		Errors:         1,
	}, total)
	assert.Equal(t, int64(8), total.Mutations())
}

func TestPassResultFailed(t *testing.T) {
	ok := PassResult{ID: "p1", Started: time.Now()}
	assert.False(t, ok.Failed())

	failed := PassResult{ID: "p2", Error: "copy file: permission denied"}
	assert.True(t, failed.Failed())
}
