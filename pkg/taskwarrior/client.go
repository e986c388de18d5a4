// Package taskwarrior reads `task export` output and maps it onto taskquest tasks.
package taskwarrior

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/util"
)

// DefaultValueScore is assigned to imported tasks, which carry no value estimate.
const DefaultValueScore = 5

type Client struct {
	bin string
}

func NewClient() *Client {
	return &Client{bin: "task"}
}

// GetTasks runs `task <filter> export` without hooks.
func (c *Client) GetTasks(ctx context.Context, filter []string) ([]Task, error) {
	args := append(append([]string{}, filter...), "export", "rc.hooks=0")
	cmd := exec.CommandContext(ctx, c.bin, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return c.ParseTasks(bytes.NewReader(output))
}

// ParseTasks accepts either a JSON array, as written by `task export`, or a
// stream of JSON objects, one per line.
func (c *Client) ParseTasks(r io.Reader) ([]Task, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(br)
	if first == '[' {
		var tasks []Task
		if err := decoder.Decode(&tasks); err != nil {
			return nil, fmt.Errorf("failed to decode task export: %w", err)
		}
		return tasks, nil
	}

	var tasks []Task
	for {
		var task Task
		if err := decoder.Decode(&task); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}

// Convert maps a Taskwarrior task onto a taskquest task with a single subtask
// covering its estimate. Deleted and completed tasks report ok=false.
func Convert(t Task) (model.ImportedTask, bool, error) {
	if t.Status == DELETED || t.Status == COMPLETED || strings.TrimSpace(t.Description) == "" {
		return model.ImportedTask{}, false, nil
	}

	est, err := util.ParseDuration(t.Est)
	if err != nil {
		return model.ImportedTask{}, false, fmt.Errorf("task %s: %w", t.UUID, err)
	}
	minutes := int(est.Minutes())

	task := model.Task{
		Title:            t.Description,
		Category:         model.ParseCategory(t.Project),
		Difficulty:       difficultyFromTags(t.Tags),
		Priority:         priority(t.Priority),
		EstimatedMinutes: minutes,
		ValueScore:       DefaultValueScore,
	}
	if t.Due != nil {
		task.Due = t.Due.Time
	}

	status := model.SubtaskTodo
	if t.started() {
		status = model.SubtaskInProgress
	}
	sub := model.Subtask{
		Title:            t.Description,
		EstimatedMinutes: minutes,
		Status:           status,
		Tags:             t.Tags,
	}
	return model.ImportedTask{Task: task, Subtasks: []model.Subtask{sub}, Source: "taskwarrior", ExternalID: t.UUID}, true, nil
}

func priority(p string) int {
	switch strings.ToUpper(p) {
	case "H":
		return 5
	case "M":
		return 3
	case "L":
		return 1
	default:
		return 2
	}
}

func difficultyFromTags(tags []string) model.Difficulty {
	for _, tag := range tags {
		if d, err := model.ParseDifficulty(tag); err == nil && tag != "" {
			return d
		}
	}
	return model.DifficultyBasic
}
