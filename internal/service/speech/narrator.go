package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// ErrNarratorUnavailable is returned when no platform speech command exists.
var ErrNarratorUnavailable = errors.New("native speech synthesis unavailable")

// Narrator speaks text through a facility that plays audio itself instead of
// returning samples. done is called exactly once when playback ends or fails.
type Narrator interface {
	Speak(ctx context.Context, text string, done func(error)) error
}

// defaultNarratorCommands 按顺序探测的系统朗读命令。
var defaultNarratorCommands = []string{"say", "espeak-ng", "espeak"}

// NativeNarrator runs the platform text-to-speech command.
type NativeNarrator struct {
	command string
	args    []string
	run     func(ctx context.Context, name string, args ...string) error
}

// NewNativeNarrator resolves command (e.g. "espeak -v zh") or, when empty, the
// first known speech command on PATH.
func NewNativeNarrator(command string) (*NativeNarrator, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		for _, candidate := range defaultNarratorCommands {
			if _, err := exec.LookPath(candidate); err == nil {
				fields = []string{candidate}
				break
			}
		}
	}
	if len(fields) == 0 {
		return nil, ErrNarratorUnavailable
	}

	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNarratorUnavailable, err)
	}

	return &NativeNarrator{
		command: path,
		args:    fields[1:],
		run:     runCommand,
	}, nil
}

// Speak starts narration in the background and returns immediately.
func (n *NativeNarrator) Speak(ctx context.Context, text string, done func(error)) error {
	if strings.TrimSpace(text) == "" {
		return ErrNothingToSay
	}

	args := append(append([]string(nil), n.args...), text)
	go func() {
		err := n.run(ctx, n.command, args...)
		if err != nil {
			log.Printf("[speech] native narration failed: %v", err)
		}
		if done != nil {
			done(err)
		}
	}()
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
