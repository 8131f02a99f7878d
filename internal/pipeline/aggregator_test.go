package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RyanBlaney/graphical-soundscape/internal/store"
	"github.com/RyanBlaney/graphical-soundscape/pkg/audio"
	"github.com/RyanBlaney/graphical-soundscape/pkg/corpus"
	"github.com/RyanBlaney/graphical-soundscape/pkg/peaks"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var testAxis = []float64{0, 100, 200}

// fakeAnalyzer returns canned rows keyed by recording path
type fakeAnalyzer struct {
	rows  map[string][]float64
	fail  map[string]error
	block map[string]bool
	calls atomic.Int64
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, rec soundscape.Recording) (*Analysis, error) {
	f.calls.Add(1)
	if f.block[rec.Path] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.fail[rec.Path]; err != nil {
		return nil, err
	}
	values, ok := f.rows[rec.Path]
	if !ok {
		return nil, fmt.Errorf("no canned row for %s", rec.Path)
	}
	return &Analysis{
		Row: &soundscape.DensityRow{
			ID:       rec.ID(),
			Hour:     rec.Hour(),
			FreqAxis: testAxis,
			Values:   values,
			Frames:   10,
		},
		Peaks: 3,
	}, nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func rec(path string, hour int) soundscape.Recording {
	return soundscape.Recording{
		Path:        path,
		Name:        filepath.Base(path),
		CaptureTime: time.Date(2023, 4, 15, hour, 0, 0, 0, time.UTC),
	}
}

type AggregatorTestSuite struct {
	suite.Suite
	ctx      context.Context
	analyzer *fakeAnalyzer
	corpus   *corpus.Corpus
}

func (s *AggregatorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.analyzer = &fakeAnalyzer{
		rows: map[string][]float64{
			"/d/a.wav": {0.2, 0.0, 0.4},
			"/d/b.wav": {0.4, 0.2, 0.0},
			"/d/c.wav": {0.1, 0.1, 0.1},
		},
		fail:  map[string]error{},
		block: map[string]bool{},
	}
	s.corpus = &corpus.Corpus{
		Kind:       corpus.InputDirectory,
		Source:     "/d",
		Recordings: []soundscape.Recording{rec("/d/a.wav", 8), rec("/d/b.wav", 8), rec("/d/c.wav", 14)},
	}
}

func (s *AggregatorTestSuite) newAggregator(cfg Config) *Aggregator {
	agg, err := NewAggregator(cfg, s.analyzer, nil, &logging.NoOpLogger{})
	s.Require().NoError(err)
	return agg
}

func (s *AggregatorTestSuite) TestGroupsByHour() {
	progress := &lockedBuffer{}
	agg := s.newAggregator(Config{Workers: 3, Progress: progress})

	res, err := agg.Aggregate(s.ctx, s.corpus)
	s.Require().NoError(err)
	s.Require().NotNil(res.Matrix)
	s.NoError(res.Err)

	m := res.Matrix
	s.Equal([]int{8, 14}, m.Hours)
	s.Equal(testAxis, m.FreqAxis)
	s.InDeltaSlice([]float64{0.3, 0.1, 0.2}, m.Values[0], 1e-12)
	s.InDeltaSlice([]float64{0.1, 0.1, 0.1}, m.Values[1], 1e-12)
	s.Equal([]int{2, 1}, m.Counts)
	s.False(m.Partial)

	s.Equal(3, res.Summary.Scheduled)
	s.Equal(3, res.Summary.Processed)
	s.Equal(0, res.Summary.Skipped)
	s.Equal(2, res.Summary.Hours)
	s.Require().NotNil(res.Summary.PeaksPerRecording)
	s.Equal(3.0, res.Summary.PeaksPerRecording.Mean)

	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	s.Len(lines, 3)
	for _, l := range lines {
		s.Regexp(`^[1-3] / 3 : [abc]\.wav$`, l)
	}
}

func (s *AggregatorTestSuite) TestSkipPolicyLeavesOutFailures() {
	s.analyzer.fail["/d/b.wav"] = soundscape.NewRecordingIOError("/d/b.wav", "corrupt header", nil)
	agg := s.newAggregator(Config{Workers: 2, Policy: PolicySkip})

	res, err := agg.Aggregate(s.ctx, s.corpus)
	s.Require().NoError(err)
	s.Require().Error(res.Err)
	s.True(soundscape.IsKind(res.Err, soundscape.KindRecordingIO))

	s.InDeltaSlice([]float64{0.2, 0.0, 0.4}, res.Matrix.Values[0], 1e-12)
	s.Equal(1, res.Summary.Skipped)
	s.Equal(2, res.Summary.Processed)
	s.Equal(map[string]int{string(soundscape.KindRecordingIO): 1}, res.Summary.SkippedByKind)
	s.Require().Len(res.Summary.SkippedFiles, 1)
	s.Equal("/d/b.wav", res.Summary.SkippedFiles[0].Path)
}

func (s *AggregatorTestSuite) TestPlainErrorsBecomeRecordingIOErrors() {
	s.analyzer.fail["/d/c.wav"] = fmt.Errorf("disk on fire")
	agg := s.newAggregator(Config{Workers: 1})

	res, err := agg.Aggregate(s.ctx, s.corpus)
	s.Require().NoError(err)
	s.Equal([]int{8}, res.Matrix.Hours)
	s.Equal(map[string]int{string(soundscape.KindRecordingIO): 1}, res.Summary.SkippedByKind)
}

func (s *AggregatorTestSuite) TestAbortPolicyStopsOnFirstFailure() {
	s.analyzer.fail["/d/a.wav"] = soundscape.NewConfigurationError("threshold_abs at floor", nil)
	agg := s.newAggregator(Config{Workers: 1, Policy: PolicyAbort})

	res, err := agg.Aggregate(s.ctx, s.corpus)
	s.Require().Error(err)
	s.True(soundscape.IsKind(err, soundscape.KindConfiguration))
	s.Nil(res.Matrix)
}

func (s *AggregatorTestSuite) TestAllFailed() {
	for path := range s.analyzer.rows {
		s.analyzer.fail[path] = soundscape.NewRecordingIOError(path, "unreadable", nil)
	}
	agg := s.newAggregator(Config{Workers: 2})

	res, err := agg.Aggregate(s.ctx, s.corpus)
	s.Require().Error(err)
	s.Nil(res.Matrix)
	s.Equal(3, res.Summary.Skipped)
}

func (s *AggregatorTestSuite) TestTimeoutYieldsPartialMatrix() {
	s.analyzer.block["/d/c.wav"] = true
	agg := s.newAggregator(Config{Workers: 3, Timeout: 200 * time.Millisecond})

	res, err := agg.Aggregate(s.ctx, s.corpus)
	s.Require().NoError(err)
	s.Require().NotNil(res.Matrix)
	s.True(res.Matrix.Partial)
	s.True(res.Summary.Partial)
	s.Equal([]int{8}, res.Matrix.Hours)
	s.Equal(2, res.Summary.Processed)
	s.Equal(0, res.Summary.Skipped)
}

func (s *AggregatorTestSuite) TestCancelledBeforeAnyRow() {
	for path := range s.analyzer.rows {
		s.analyzer.block[path] = true
	}
	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	agg := s.newAggregator(Config{Workers: 3})
	res, err := agg.Aggregate(ctx, s.corpus)
	s.Require().Error(err)
	s.True(res.Summary.Partial)
}

func (s *AggregatorTestSuite) TestOrderInvariance() {
	rng := rand.New(rand.NewSource(3))
	var recs []soundscape.Recording
	rows := map[string][]float64{}
	for i := range 30 {
		path := fmt.Sprintf("/d/r%02d.wav", i)
		rows[path] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		recs = append(recs, rec(path, rng.Intn(5)))
	}
	s.analyzer.rows = rows

	agg := s.newAggregator(Config{Workers: 8})
	first, err := agg.Aggregate(s.ctx, &corpus.Corpus{Source: "/d", Recordings: recs})
	s.Require().NoError(err)

	for range 5 {
		shuffled := append([]soundscape.Recording(nil), recs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		again, err := agg.Aggregate(s.ctx, &corpus.Corpus{Source: "/d", Recordings: shuffled})
		s.Require().NoError(err)
		s.Equal(first.Matrix.Hours, again.Matrix.Hours)
		s.Equal(first.Matrix.Values, again.Matrix.Values)
	}
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorTestSuite))
}

func TestNewAggregatorValidation(t *testing.T) {
	_, err := NewAggregator(Config{}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, soundscape.IsKind(err, soundscape.KindConfiguration))

	_, err = NewAggregator(Config{Policy: "retry"}, &fakeAnalyzer{}, nil, nil)
	require.Error(t, err)
	assert.True(t, soundscape.IsKind(err, soundscape.KindConfiguration))

	agg, err := NewAggregator(Config{}, &fakeAnalyzer{}, nil, nil)
	require.NoError(t, err)
	assert.Positive(t, agg.config.Workers)
	assert.Equal(t, PolicySkip, agg.config.Policy)
}

func TestAggregatorReusesCachedRows(t *testing.T) {
	dir := t.TempDir()
	var recs []soundscape.Recording
	rows := map[string][]float64{}
	for i, hour := range []int{3, 3, 21} {
		path := filepath.Join(dir, fmt.Sprintf("S_%02d.wav", i))
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
		recs = append(recs, rec(path, hour))
		rows[path] = []float64{float64(i) / 10, 0, 1}
	}

	cache, err := store.Open(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	analyzer := &fakeAnalyzer{rows: rows}
	agg, err := NewAggregator(Config{Workers: 2, Params: store.Fingerprint("test")}, analyzer, cache, &logging.NoOpLogger{})
	require.NoError(t, err)

	c := &corpus.Corpus{Source: dir, Recordings: recs}
	first, err := agg.Aggregate(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(3), analyzer.calls.Load())
	assert.Equal(t, 0, first.Summary.Cached)

	second, err := agg.Aggregate(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(3), analyzer.calls.Load())
	assert.Equal(t, 3, second.Summary.Cached)
	assert.Equal(t, first.Matrix.Values, second.Matrix.Values)

	runs, err := cache.CountRuns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
}

func writeToneWAV(t *testing.T, path string, freq float64, sampleRate, n int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, n)
	for i := range data {
		data[i] = int(math.Round(0.5 * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))))
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestAggregateRecordingsEndToEnd(t *testing.T) {
	const fs = 8000
	dir := t.TempDir()
	writeToneWAV(t, filepath.Join(dir, "G1_20230415_080000.wav"), 1000, fs, fs)
	writeToneWAV(t, filepath.Join(dir, "G1_20230416_081500.wav"), 1000, fs, fs)
	writeToneWAV(t, filepath.Join(dir, "G1_20230415_140000.wav"), 2000, fs, fs)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "G1_20230415_150000.wav"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untimed.wav"), []byte("garbage"), 0o644))

	c, err := corpus.Resolve(dir, corpus.DefaultOptions(), &logging.NoOpLogger{})
	require.NoError(t, err)
	require.Len(t, c.Recordings, 4)
	require.Len(t, c.Rejected, 1)

	logger := &logging.NoOpLogger{}
	builder, err := audio.NewBuilder(audio.SpectrogramConfig{
		TargetSampleRate: fs,
		WindowLength:     256,
		Overlap:          128,
		DynamicRangeDB:   80,
	}, audio.NewLoader(audio.DefaultLoaderConfig(), logger), logger)
	require.NoError(t, err)
	detector, err := peaks.NewDetector(peaks.Config{MinDistance: 3, ThresholdAbs: -60}, logger)
	require.NoError(t, err)

	agg, err := NewAggregator(Config{Workers: 2}, NewDensityAnalyzer(builder, detector), nil, logger)
	require.NoError(t, err)

	res, err := agg.Aggregate(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Skipped)
	assert.Equal(t, 1, res.Summary.Rejected)
	assert.Equal(t, 3, res.Summary.Processed)

	m := res.Matrix
	require.Equal(t, []int{8, 14}, m.Hours)
	require.Len(t, m.FreqAxis, 129)

	for _, row := range m.Values {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}

	argmax := func(row []float64) int {
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		return best
	}
	// 1000 Hz and 2000 Hz fall on bins 32 and 64 at 31.25 Hz resolution
	assert.Equal(t, 32, argmax(m.Values[0]))
	assert.Equal(t, 64, argmax(m.Values[1]))
	assert.Positive(t, m.Values[0][32])
}
