// Package stages runs the classification and analysis steps that follow a
// search. The scientific work lives in external programs; this package only
// invokes them.
//
// Argument layout:
//
//	classify: <command...> <search-name> <task-count>    (records as JSON on stdin)
//	analyze:  <command...> <search-name> <filter-order> <elements>
//
// filter-order and elements are comma-separated.
package stages

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/record"
)

// ExecClassifier pipes a result set to an external classification command.
type ExecClassifier struct {
	Command []string
	Dir     string
	Stdout  io.Writer
	Logger  *zap.Logger
}

// Classify runs the command for searchName.
func (c *ExecClassifier) Classify(ctx context.Context, rs record.ResultSet, searchName string, taskCount int) error {
	data, err := record.Encode(rs)
	if err != nil {
		return errors.NewInternal(err)
	}
	args := []string{searchName, strconv.Itoa(taskCount)}
	return runCommand(ctx, "classify", c.Command, args, c.Dir, bytes.NewReader(data), c.Stdout, logger(c.Logger))
}

// ExecAnalyzer runs an external analysis command.
type ExecAnalyzer struct {
	Command []string
	Dir     string
	Stdout  io.Writer
	Logger  *zap.Logger
}

// Analyze runs the command for searchName.
func (a *ExecAnalyzer) Analyze(ctx context.Context, searchName string, filterOrder []string, elements []string) error {
	args := []string{searchName, strings.Join(filterOrder, ","), strings.Join(elements, ",")}
	return runCommand(ctx, "analyze", a.Command, args, a.Dir, nil, a.Stdout, logger(a.Logger))
}

// Noop stands in for an unconfigured stage.
type Noop struct {
	Logger *zap.Logger
}

// Classify logs and returns nil.
func (n Noop) Classify(_ context.Context, rs record.ResultSet, searchName string, taskCount int) error {
	logger(n.Logger).Info("classification stage not configured, skipping",
		zap.String("search", searchName),
		zap.Int("records", len(rs)),
		zap.Int("tasks", taskCount),
	)
	return nil
}

// Analyze logs and returns nil.
func (n Noop) Analyze(_ context.Context, searchName string, filterOrder []string, _ []string) error {
	logger(n.Logger).Info("analysis stage not configured, skipping",
		zap.String("search", searchName),
		zap.Strings("filter_order", filterOrder),
	)
	return nil
}

func runCommand(ctx context.Context, stage string, command, args []string, dir string, stdin io.Reader, stdout io.Writer, log *zap.Logger) error {
	if len(command) == 0 || command[0] == "" {
		return errors.NewInvalidRequest(fmt.Sprintf("%s command is empty", stage))
	}

	argv := append(append([]string{}, command[1:]...), args...)
	cmd := exec.CommandContext(ctx, command[0], argv...)
	cmd.Dir = dir
	cmd.Stdin = stdin

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdout != nil {
		cmd.Stdout = stdout
	}

	log.Debug("running stage", zap.String("stage", stage), zap.String("command", command[0]), zap.Strings("args", argv))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled(stage)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", command[0], err, msg)
		}
		return fmt.Errorf("%s: %w", command[0], err)
	}
	return nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
