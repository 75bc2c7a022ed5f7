package tools

import (
	"fmt"
	"strings"

	"bizassist/internal/model"
	"bizassist/internal/permissions"
	"bizassist/internal/selectors"
)

// MoveTaskMinScore is the lowest title similarity move_task accepts.
const MoveTaskMinScore = 60

type ListTasksArgs struct {
	ProjectID string
	Status    model.TaskStatus
}

func (t *Tools) ListTasks(_ Session, a ListTasksArgs) (Outcome, *model.Error) {
	project, ok := t.store.Project(a.ProjectID)
	if !ok {
		return Outcome{}, model.NotFound("project %q not found", a.ProjectID)
	}
	tasks := selectors.TasksForProject(t.store.Tasks(), project.ID, a.Status)
	if tasks == nil {
		tasks = []model.Task{}
	}
	filter := ""
	if a.Status != "" {
		filter = " " + string(a.Status)
	}
	return Outcome{
		Result:  tasks,
		Summary: fmt.Sprintf("%d%s %s in %s.", len(tasks), filter, plural(len(tasks), "task", "tasks"), projectLabel(project)),
	}, nil
}

type CreateTaskArgs struct {
	ProjectID      string
	Title          string
	AssigneeUserID string
	DueDate        string
	Persona        model.Persona
}

func (t *Tools) CreateTask(s Session, a CreateTaskArgs) (Outcome, *model.Error) {
	if err := permissions.Require(s.Role, permissions.ActionCreateTask); err != nil {
		return Outcome{}, asToolError(err)
	}
	title := strings.TrimSpace(a.Title)
	if title == "" {
		return Outcome{}, model.InvalidArgument("title must be a non-empty string")
	}
	project, ok := t.store.Project(a.ProjectID)
	if !ok {
		return Outcome{}, model.NotFound("project %q not found", a.ProjectID)
	}
	if a.AssigneeUserID != "" {
		if _, ok := t.store.User(a.AssigneeUserID); !ok {
			return Outcome{}, model.NotFound("user %q not found", a.AssigneeUserID)
		}
	}
	due := ""
	if a.DueDate != "" {
		d, err := model.ParseDate(a.DueDate)
		if err != nil {
			return Outcome{}, model.InvalidArgument("due_date: %v", err)
		}
		due = model.FormatDate(d)
	}

	task, err := t.store.CreateTask(func(id string) (model.Task, error) {
		return model.Task{
			ID:             id,
			ProjectID:      project.ID,
			Title:          title,
			Status:         model.TaskTodo,
			AssigneeUserID: a.AssigneeUserID,
			DueDate:        due,
		}, nil
	})
	if err != nil {
		return Outcome{}, asToolError(err)
	}
	return Outcome{
		Result:  task,
		Summary: toneFor(s.persona(a.Persona)).taskCreated(task.Title, projectLabel(project)),
	}, nil
}

type MoveTaskArgs struct {
	TaskQueryOrID string
	NewStatus     string
	ProjectID     string
	Persona       model.Persona
}

// MoveTask changes a task's status. The task is found by exact id first,
// then by fuzzy title match within ProjectID when given.
func (t *Tools) MoveTask(s Session, a MoveTaskArgs) (Outcome, *model.Error) {
	if err := permissions.Require(s.Role, permissions.ActionMoveTask); err != nil {
		return Outcome{}, asToolError(err)
	}
	status, ok := model.ParseTaskStatus(a.NewStatus)
	if !ok {
		return Outcome{}, model.InvalidArgument("new_status must be one of todo, doing, done")
	}
	query := strings.TrimSpace(a.TaskQueryOrID)
	if query == "" {
		return Outcome{}, model.InvalidArgument("task_query_or_id must be a non-empty string")
	}

	target, ok := t.store.Task(query)
	if !ok {
		var score int
		target, score, ok = selectors.ResolveTaskByTitle(t.store.Tasks(), query, a.ProjectID, MoveTaskMinScore)
		if !ok {
			if a.ProjectID != "" {
				return Outcome{}, model.NotFound("no task matching %q in project %s", query, a.ProjectID)
			}
			return Outcome{}, model.NotFound("no task matching %q (best score %d)", query, max(score, 0))
		}
	}

	before, after, err := t.store.UpdateTask(target.ID, func(tk *model.Task) error {
		tk.Status = status
		return nil
	})
	if err != nil {
		return Outcome{}, asToolError(err)
	}
	return Outcome{
		Result: map[string]interface{}{
			"task":       after,
			"old_status": before.Status,
			"new_status": after.Status,
		},
		Summary: toneFor(s.persona(a.Persona)).taskMoved(after.Title, before.Status, after.Status),
	}, nil
}
