package media

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/scribe/internal/config"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	stderr string
	err    error
	// write is called with the last argument of an ffmpeg call
	write func(path string) error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return CommandResult{Stderr: f.stderr, ExitCode: 1}, f.err
	}
	if f.write != nil && len(args) > 0 {
		if err := f.write(args[len(args)-1]); err != nil {
			return CommandResult{}, err
		}
	}
	return CommandResult{Stdout: f.stdout}, nil
}

func testNormalizer(r Runner) *Normalizer {
	return NewNormalizer(config.MediaConfig{ConvertFormats: []string{"m4a", ".MP4"}}).WithRunner(r)
}

func TestNeedsConversion(t *testing.T) {
	n := testNormalizer(&fakeRunner{})

	assert.True(t, n.NeedsConversion("m4a"))
	assert.True(t, n.NeedsConversion(".mp4"))
	assert.True(t, n.NeedsConversion("M4A"))
	assert.False(t, n.NeedsConversion("wav"))
	assert.False(t, n.NeedsConversion("mp3"))
}

func TestProbeDurationRoundsToTwoDecimals(t *testing.T) {
	r := &fakeRunner{stdout: "12.3456\n"}
	n := testNormalizer(r)

	d, err := n.ProbeDuration(context.Background(), []byte("audio"), "wav")
	require.NoError(t, err)
	assert.Equal(t, 12.35, d)

	require.Len(t, r.calls, 1)
	assert.Equal(t, "ffprobe", r.calls[0][0])
	assert.Contains(t, r.calls[0], "format=duration")
}

func TestProbeDurationUnparseable(t *testing.T) {
	n := testNormalizer(&fakeRunner{stdout: "N/A"})

	_, err := n.ProbeDuration(context.Background(), []byte("audio"), "wav")
	require.Error(t, err)
}

func TestProbeDurationCommandFailure(t *testing.T) {
	n := testNormalizer(&fakeRunner{err: errors.New("exit status 1"), stderr: "Invalid data found"})

	_, err := n.ProbeDuration(context.Background(), []byte("garbage"), "wav")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "ffprobe", cmdErr.Command)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestConvertReturnsWav(t *testing.T) {
	r := &fakeRunner{write: func(path string) error {
		return os.WriteFile(path, []byte("RIFF-wav"), 0644)
	}}
	n := testNormalizer(r)

	wav, err := n.Convert(context.Background(), []byte("m4a-bytes"), "m4a")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-wav"), wav)

	require.Len(t, r.calls, 1)
	args := r.calls[0]
	assert.Equal(t, "ffmpeg", args[0])
	assert.Subset(t, args, []string{"-ar", "16000", "-ac", "1", "-sample_fmt", "s16"})
}

func TestConvertFailure(t *testing.T) {
	n := testNormalizer(&fakeRunner{err: errors.New("exit status 1"), stderr: "moov atom not found"})

	_, err := n.Convert(context.Background(), []byte("bad"), "mp4")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 1, cmdErr.ExitCode)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "m4a", FormatOf("clip.M4A"))
	assert.Equal(t, "", FormatOf("noext"))
}
