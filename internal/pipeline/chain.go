package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sinks supplies the writers a running plan tees into. Any method may return
// a nil writer to discard that stream.
type Sinks interface {
	// Output receives the main output of stage.
	Output(stage string) (io.Writer, error)
	// Trace receives the trace output of a traced stage.
	Trace(stage string) (io.Writer, error)
	// Stderr receives the standard error of every process of stage.
	Stderr(stage string) (io.Writer, error)
}

// waitDelay bounds how long a killed process may keep its pipes open.
const waitDelay = 5 * time.Second

type proc struct {
	stage string
	cmd   *exec.Cmd
	ctx   context.Context
	stop  context.CancelFunc
	// pipeOut is the parent's copy of the write end feeding the next
	// process; it is closed once this process has exited.
	pipeOut *os.File
}

// Run feeds in through the plan and writes the output of the final stage to
// out. Every process runs under its own timeout derived from ctx; ctx itself
// carries the ceiling for the whole chain. The first failure is returned,
// after every process has been waited for.
func (p *Plan) Run(ctx context.Context, in io.Reader, out io.Writer, sinks Sinks, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}

	var procs []*proc
	var stdin io.Reader = in
	var stdinPipe *os.File
	abort := func(err error) error {
		if stdinPipe != nil {
			_ = stdinPipe.Close() //nolint:errcheck // nobody will read it
		}
		for _, pr := range procs {
			pr.stop()
		}
		_ = waitAll(procs) //nolint:errcheck // reporting the cause instead
		return err
	}

	for si, cs := range p.Stages {
		name := cs.Stage.Name
		stderr, err := sinks.Stderr(name)
		if err != nil {
			return abort(fmt.Errorf("stderr sink for %s: %w", name, err))
		}
		stderr = lockWriter(stderr)

		for ni, node := range cs.Nodes {
			var writers []io.Writer
			if node.Tap == TapTrace {
				w, err := sinks.Trace(name)
				if err != nil {
					return abort(fmt.Errorf("trace sink for %s: %w", name, err))
				}
				if w != nil {
					writers = append(writers, w)
				}
			}
			lastNode := ni == len(cs.Nodes)-1
			if lastNode {
				w, err := sinks.Output(name)
				if err != nil {
					return abort(fmt.Errorf("output sink for %s: %w", name, err))
				}
				if w != nil {
					writers = append(writers, w)
				}
			}

			pr := p.newProc(ctx, name, node.Command)
			pr.cmd.Stdin = stdin
			if stderr != nil {
				pr.cmd.Stderr = stderr
			}

			var nextIn *os.File
			if lastNode && si == len(p.Stages)-1 {
				writers = append(writers, out)
			} else {
				r, w, err := os.Pipe()
				if err != nil {
					pr.stop()
					return abort(fmt.Errorf("pipe after %s: %w", name, err))
				}
				writers = append(writers, w)
				nextIn, pr.pipeOut = r, w
			}
			pr.cmd.Stdout = combine(writers)

			if err := pr.cmd.Start(); err != nil {
				pr.stop()
				if nextIn != nil {
					_ = nextIn.Close()     //nolint:errcheck // start failed
					_ = pr.pipeOut.Close() //nolint:errcheck // start failed
				}
				return abort(fmt.Errorf("%w: start %s: %v", ErrStageFailed, name, err))
			}
			lowerPriority(pr.cmd.Process.Pid, p.Nice, log)
			log.Debug("process started",
				zap.String("stage", name),
				zap.Int("pid", pr.cmd.Process.Pid),
				zap.String("cmd", node.Command))

			// The child owns its read end now.
			if stdinPipe != nil {
				_ = stdinPipe.Close() //nolint:errcheck // child holds a dup
				stdinPipe = nil
			}
			// A write end handed over as *os.File belongs to the child too.
			if _, direct := pr.cmd.Stdout.(*os.File); direct && pr.pipeOut != nil {
				_ = pr.pipeOut.Close() //nolint:errcheck // child holds a dup
				pr.pipeOut = nil
			}
			procs = append(procs, pr)
			if nextIn != nil {
				stdin, stdinPipe = nextIn, nextIn
			}
		}
	}

	return waitAll(procs)
}

func waitAll(procs []*proc) error {
	var first error
	for _, pr := range procs {
		err := pr.cmd.Wait()
		if pr.pipeOut != nil {
			_ = pr.pipeOut.Close() //nolint:errcheck // signals EOF downstream
			pr.pipeOut = nil
		}
		if err != nil && first == nil {
			first = classify(pr, err)
		}
		pr.stop()
	}
	return first
}

func classify(pr *proc, err error) error {
	if errors.Is(pr.ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %s", ErrStageTimeout, pr.stage, pr.cmd.String())
	}
	return fmt.Errorf("%w: %s: %v", ErrStageFailed, pr.stage, err)
}

func (p *Plan) newProc(ctx context.Context, stage, command string) *proc {
	timeout := p.StageTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pctx, stop := context.WithTimeout(ctx, timeout)

	shell := p.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(pctx, shell, "-c", command)
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.WaitDelay = waitDelay
	detach(cmd)
	return &proc{stage: stage, cmd: cmd, ctx: pctx, stop: stop}
}

func combine(ws []io.Writer) io.Writer {
	if len(ws) == 1 {
		return ws[0]
	}
	return io.MultiWriter(ws...)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}

// lockWriter serializes writes from several processes' copy goroutines.
// Files are handed to children directly and need no lock.
func lockWriter(w io.Writer) io.Writer {
	switch w.(type) {
	case nil:
		return nil
	case *os.File:
		return w
	}
	return &lockedWriter{w: w}
}
