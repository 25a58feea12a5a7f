// Package subprocess runs the program a server session forwards to. The
// child reads its standard input from one pipe and writes standard output
// and standard error, merged, to a second pipe. The parent's halves of both
// pipes are exposed as relay streams.
package subprocess

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/ajpfahnl/Twoface/src/stream"
)

// Process is a running child with its two relay streams.
type Process struct {
	cmd *exec.Cmd

	// Input feeds the child's standard input.
	Input *stream.Stream
	// Output carries the child's standard output and standard error.
	Output *stream.Stream
}

// Spawn starts name with args.
func Spawn(name string, args ...string) (*Process, error) {
	inRead, inWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create input pipe: %w", err)
	}
	outRead, outWrite, err := os.Pipe()
	if err != nil {
		inRead.Close()
		inWrite.Close()
		return nil, fmt.Errorf("create output pipe: %w", err)
	}

	cmd := exec.Command(name, args...)
	cmd.Stdin = inRead
	cmd.Stdout = outWrite
	cmd.Stderr = outWrite

	if err := cmd.Start(); err != nil {
		inRead.Close()
		inWrite.Close()
		outRead.Close()
		outWrite.Close()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	// The child holds its own copies; keeping ours would hide its EOF.
	inRead.Close()
	outWrite.Close()

	return &Process{
		cmd:    cmd,
		Input:  stream.New(stream.SubprocessIn, inWrite),
		Output: stream.New(stream.SubprocessOut, outRead),
	}, nil
}

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Interrupt sends SIGINT to the child without waiting for it to react.
// Interrupting a child that already exited is not an error.
func (p *Process) Interrupt() error {
	err := p.cmd.Process.Signal(os.Interrupt)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("interrupt pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

// Kill terminates the child outright. Used when the relay failed and
// nothing will close the child's input in an orderly way.
func (p *Process) Kill() error {
	err := p.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

// ExitStatus describes how the child terminated. Signal is 0 when the child
// exited normally; Code is 0 when it was killed by a signal.
type ExitStatus struct {
	Signal int
	Code   int
}

func (s ExitStatus) String() string {
	return fmt.Sprintf("SHELL EXIT SIGNAL=%d STATUS=%d", s.Signal, s.Code)
}

// Await blocks until the child terminates. A non-zero exit or a fatal signal
// is reported through ExitStatus, not as an error.
func (p *Process) Await() (ExitStatus, error) {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return ExitStatus{}, fmt.Errorf("wait for pid %d: %w", p.cmd.Process.Pid, err)
	}

	var status ExitStatus
	if ws, ok := p.cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			status.Signal = int(ws.Signal())
		}
		if ws.Exited() {
			status.Code = ws.ExitStatus()
		}
	} else {
		status.Code = p.cmd.ProcessState.ExitCode()
	}
	return status, nil
}

// Close releases whichever pipe halves are still open.
func (p *Process) Close() error {
	return errors.Join(p.Input.Close(), p.Output.Close())
}
