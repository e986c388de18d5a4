// Package orgmode imports Org-mode TODO trees: level-1 headings become tasks
// and level-2 headings below them become subtasks.
package orgmode

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/taskquest/pkg/model"
)

// DefaultValueScore is used when a heading has no :VALUE: property.
const DefaultValueScore = 5

var (
	headingRegex  = regexp.MustCompile(`^(\*{1,2})\s+(TODO|DONE|NEXT|WAITING|CANCELLED)\s+(?:\[#([A-Z])\]\s*)?(.*?)(?:\s+(:[\w@:-]+:))?\s*$`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3})?(?:\s+(\d{1,2}:\d{2}))?[^>]*>`)
	propertyRegex = regexp.MustCompile(`^:([A-Za-z_]+):\s*(.*)$`)
)

func parseFile(filePath string) ([]model.ImportedTask, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, filePath)
}

// ParseFiles parses multiple Org-mode files.
func ParseFiles(filePaths []string) ([]model.ImportedTask, error) {
	var all []model.ImportedTask
	for _, filePath := range filePaths {
		tasks, err := parseFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filePath, err)
		}
		all = append(all, tasks...)
	}
	return all, nil
}

type heading struct {
	level    int
	keyword  string
	priority string
	title    string
	tags     []string
	deadline time.Time
	props    map[string]string
}

// Parse reads Org-mode text from r. Level-1 headings that are DONE or
// CANCELLED are skipped together with their children.
func Parse(r io.Reader, source string) ([]model.ImportedTask, error) {
	scanner := bufio.NewScanner(r)

	var (
		tasks   []model.ImportedTask
		parent  *heading
		current *heading
		subs    []heading
		inProps bool
	)

	flush := func() error {
		if parent == nil {
			return nil
		}
		it, err := build(*parent, subs, source)
		if err != nil {
			return err
		}
		if it != nil {
			tasks = append(tasks, *it)
		}
		parent, current, subs = nil, nil, nil
		return nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(raw, "*") {
			inProps = false
			m := headingRegex.FindStringSubmatch(raw)
			level := len(raw) - len(strings.TrimLeft(raw, "*"))
			if m == nil {
				// plain headings close the current task tree at level 1
				if level == 1 {
					if err := flush(); err != nil {
						return nil, err
					}
				}
				current = nil
				continue
			}
			h := heading{
				level:    len(m[1]),
				keyword:  m[2],
				priority: m[3],
				title:    strings.TrimSpace(m[4]),
				props:    map[string]string{},
			}
			if m[5] != "" {
				h.tags = strings.Split(strings.Trim(m[5], ":"), ":")
			}
			if h.level == 1 {
				if err := flush(); err != nil {
					return nil, err
				}
				parent = &h
				current = parent
				continue
			}
			if parent == nil {
				current = nil
				continue
			}
			subs = append(subs, h)
			current = &subs[len(subs)-1]
			continue
		}

		if current == nil {
			continue
		}
		switch {
		case line == ":PROPERTIES:":
			inProps = true
		case line == ":END:":
			inProps = false
		case inProps:
			if m := propertyRegex.FindStringSubmatch(line); m != nil {
				current.props[strings.ToUpper(m[1])] = strings.TrimSpace(m[2])
			}
		default:
			if m := deadlineRegex.FindStringSubmatch(line); m != nil {
				deadline, err := parseDeadline(m[1], m[2])
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", source, lineNo, err)
				}
				current.deadline = deadline
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func build(p heading, subs []heading, source string) (*model.ImportedTask, error) {
	if p.keyword == "DONE" || p.keyword == "CANCELLED" || p.title == "" {
		return nil, nil
	}

	effort, err := parseEffort(p.props["EFFORT"])
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", p.title, err)
	}
	difficulty, err := model.ParseDifficulty(p.props["DIFFICULTY"])
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", p.title, err)
	}
	value := DefaultValueScore
	if v := p.props["VALUE"]; v != "" {
		if value, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("task %q: invalid VALUE %q", p.title, v)
		}
	}

	task := model.Task{
		Title:      p.title,
		Category:   category(p),
		Difficulty: difficulty,
		Priority:   priority(p.priority),
		Due:        p.deadline,
		ValueScore: value,
	}

	var subtasks []model.Subtask
	sum := 0
	for _, h := range subs {
		if h.keyword == "CANCELLED" || h.title == "" {
			continue
		}
		minutes, err := parseEffort(h.props["EFFORT"])
		if err != nil {
			return nil, fmt.Errorf("subtask %q: %w", h.title, err)
		}
		status := model.SubtaskTodo
		switch h.keyword {
		case "DONE":
			status = model.SubtaskDone
		case "WAITING":
			status = model.SubtaskBlocked
		case "NEXT":
			status = model.SubtaskInProgress
		}
		sum += minutes
		subtasks = append(subtasks, model.Subtask{
			Title:            h.title,
			EstimatedMinutes: minutes,
			Status:           status,
			Tags:             h.tags,
		})
	}

	task.EstimatedMinutes = effort
	if effort == 0 {
		task.EstimatedMinutes = sum
	}
	if len(subtasks) == 0 {
		subtasks = []model.Subtask{{Title: p.title, EstimatedMinutes: effort, Status: model.SubtaskTodo, Tags: p.tags}}
	}

	return &model.ImportedTask{
		Task:       task,
		Subtasks:   subtasks,
		Source:     "org",
		ExternalID: p.props["ID"],
	}, nil
}

func category(h heading) model.Category {
	if c := h.props["CATEGORY"]; c != "" {
		return model.ParseCategory(c)
	}
	for _, tag := range h.tags {
		if c := model.ParseCategory(tag); c != model.CategoryGeneral {
			return c
		}
	}
	return model.CategoryGeneral
}

func priority(cookie string) int {
	switch cookie {
	case "A":
		return 5
	case "B":
		return 3
	case "C":
		return 1
	default:
		return 2
	}
}

// parseEffort reads an Org effort value in H:MM form into minutes.
func parseEffort(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid EFFORT %q, want H:MM", s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("invalid EFFORT %q, want H:MM", s)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid EFFORT %q, want H:MM", s)
	}
	return hours*60 + minutes, nil
}

func parseDeadline(date, clock string) (time.Time, error) {
	if clock == "" {
		return time.ParseInLocation("2006-01-02", date, time.Local)
	}
	return time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
}
