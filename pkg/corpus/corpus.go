package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
)

// InputKind identifies how a corpus was specified
type InputKind string

const (
	InputDirectory InputKind = "directory"
	InputTable     InputKind = "table"
)

// Options control corpus resolution
type Options struct {
	// Extensions lists accepted audio file extensions (lowercase, with dot)
	Extensions []string

	// Recursive descends into subdirectories of a directory input
	Recursive bool
}

// DefaultOptions returns the default resolution options
func DefaultOptions() Options {
	return Options{
		Extensions: []string{".wav", ".mp3", ".flac"},
	}
}

// Corpus is a resolved list of recordings
type Corpus struct {
	Kind       InputKind
	Source     string
	Recordings []soundscape.Recording

	// Rejected holds entries that were found but could not be turned into
	// recordings, typically names or rows without a parseable timestamp
	Rejected []error
}

// Resolve turns a path into a corpus. A directory is scanned for audio files
// named SENSOR_YYYYMMDD_HHMMSS.ext; a .csv file is read as a metadata table.
func Resolve(path string, opts Options, logger logging.Logger) (*Corpus, error) {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{})
	}
	logger = logger.WithFields(logging.Fields{
		"component": "corpus",
		"function":  "Resolve",
		"input":     path,
	})

	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultOptions().Extensions
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, soundscape.NewInputResolutionError(path, "input does not exist", err)
	}

	var c *Corpus
	switch {
	case info.IsDir():
		c, err = resolveDirectory(path, opts)
	case strings.EqualFold(filepath.Ext(path), ".csv"):
		c, err = resolveTable(path)
	default:
		return nil, soundscape.NewInputResolutionError(path, "input must be a directory or a .csv table", nil)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(c.Recordings, func(i, j int) bool {
		return c.Recordings[i].Path < c.Recordings[j].Path
	})

	logger.Info("Corpus resolved", logging.Fields{
		"kind":       string(c.Kind),
		"recordings": len(c.Recordings),
		"rejected":   len(c.Rejected),
	})

	if len(c.Recordings) == 0 {
		return c, soundscape.NewInputResolutionError(path, "no usable recordings found", nil)
	}

	return c, nil
}

func resolveDirectory(dir string, opts Options) (*Corpus, error) {
	c := &Corpus{Kind: InputDirectory, Source: dir}

	accept := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		accept[ext] = true
	}

	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !accept[strings.ToLower(filepath.Ext(p))] {
			return nil
		}

		rec, perr := ParseRecordingName(p)
		if perr != nil {
			c.Rejected = append(c.Rejected, perr)
			return nil
		}
		c.Recordings = append(c.Recordings, rec)
		return nil
	})
	if err != nil {
		return nil, soundscape.NewInputResolutionError(dir, "cannot scan directory", err)
	}

	return c, nil
}

// ParseRecordingName extracts the sensor name and capture time from a file
// named SENSOR_YYYYMMDD_HHMMSS.ext. The sensor name may itself contain
// underscores.
func ParseRecordingName(path string) (soundscape.Recording, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return soundscape.Recording{}, soundscape.NewDataFormatError(path,
			"file name does not follow SENSOR_YYYYMMDD_HHMMSS", nil)
	}

	date, clock := parts[len(parts)-2], parts[len(parts)-1]
	if len(date) != 8 || len(clock) != 6 {
		return soundscape.Recording{}, soundscape.NewDataFormatError(path,
			fmt.Sprintf("unexpected date/time fields %q %q", date, clock), nil)
	}

	ts, err := soundscape.ParseCaptureTime(date + "_" + clock)
	if err != nil {
		return soundscape.Recording{}, soundscape.NewDataFormatError(path, "invalid timestamp in file name", err)
	}

	return soundscape.Recording{
		Path:        path,
		Name:        base,
		Sensor:      strings.Join(parts[:len(parts)-2], "_"),
		CaptureTime: ts,
	}, nil
}
