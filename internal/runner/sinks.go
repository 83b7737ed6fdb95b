package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/boshu2/regtest/internal/artifact"
	"github.com/boshu2/regtest/internal/pipeline"
)

// Scratch file names of one worker.
func inputFile(dir string, worker int) string {
	return filepath.Join(dir, "input."+strconv.Itoa(worker))
}

func outFile(dir string, worker int) string {
	return filepath.Join(dir, "out."+strconv.Itoa(worker))
}

func stageFile(dir, stage string, worker int) string {
	if pipeline.IsTraceName(stage) {
		base := stage[:len(stage)-len(pipeline.TraceSuffix)]
		return filepath.Join(dir, "step-"+base+".trace."+strconv.Itoa(worker))
	}
	return filepath.Join(dir, "step-"+stage+"."+strconv.Itoa(worker))
}

func stderrFile(dir, stage string, worker int) string {
	return filepath.Join(dir, "step-"+stage+"."+strconv.Itoa(worker)+".err")
}

// workerFiles returns the per-worker files holding stage's output.
func workerFiles(dir, stage string, workers int) []string {
	out := make([]string, workers)
	for i := range out {
		if stage == artifact.InputStage {
			out[i] = inputFile(dir, i)
		} else {
			out[i] = stageFile(dir, stage, i)
		}
	}
	return out
}

// fileSinks tees one worker's stage streams into scratch files.
type fileSinks struct {
	dir    string
	worker int
	files  []*os.File
}

var _ pipeline.Sinks = (*fileSinks)(nil)

func (s *fileSinks) create(path string) (io.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	s.files = append(s.files, f)
	return f, nil
}

func (s *fileSinks) Output(stage string) (io.Writer, error) {
	return s.create(stageFile(s.dir, stage, s.worker))
}

func (s *fileSinks) Trace(stage string) (io.Writer, error) {
	return s.create(stageFile(s.dir, pipeline.TraceName(stage), s.worker))
}

func (s *fileSinks) Stderr(stage string) (io.Writer, error) {
	return s.create(stderrFile(s.dir, stage, s.worker))
}

// Close closes every file opened so far.
func (s *fileSinks) Close() error {
	var first error
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.files = nil
	return first
}
