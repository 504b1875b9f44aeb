package usecase

import (
	"context"
	"errors"
	"strings"

	"writeway/internal/domain"
)

// PlanService is plain CRUD over writing plans; no model is involved.
type PlanService struct {
	plans PlanStore
}

type CreatePlanInput struct {
	Title       string
	Description string
	Deadline    *string
	Tasks       []string
}

// UpdatePlanInput carries a partial update; nil fields are left unchanged.
type UpdatePlanInput struct {
	Title       *string
	Description *string
	Deadline    *string
	Tasks       *[]domain.Task
}

func NewPlanService(plans PlanStore) (*PlanService, error) {
	if plans == nil {
		return nil, errors.New("usecase: plan store must not be nil")
	}
	return &PlanService{plans: plans}, nil
}

func (s *PlanService) List(ctx context.Context) ([]domain.Plan, error) {
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "store_read_error", err)
	}
	return plans, nil
}

func (s *PlanService) Get(ctx context.Context, id string) (domain.Plan, error) {
	p, err := s.plans.GetPlan(ctx, strings.TrimSpace(id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Plan{}, newError(ErrorNotFound, "plan_not_found", err)
	}
	if err != nil {
		return domain.Plan{}, newError(ErrorInternal, "store_read_error", err)
	}
	return p, nil
}

func (s *PlanService) Create(ctx context.Context, in CreatePlanInput) (domain.Plan, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Plan{}, newError(ErrorInvalidInput, "empty_title", nil)
	}
	tasks := make([]domain.Task, 0, len(in.Tasks))
	for _, text := range in.Tasks {
		tasks = append(tasks, domain.Task{ID: newUUID(), Text: text})
	}
	var deadline *string
	if in.Deadline != nil && strings.TrimSpace(*in.Deadline) != "" {
		d := strings.TrimSpace(*in.Deadline)
		deadline = &d
	}
	plan := domain.Plan{
		ID:          newUUID(),
		Title:       title,
		Description: in.Description,
		Deadline:    deadline,
		Tasks:       tasks,
		CreatedAt:   now(),
		Progress:    0,
	}
	if err := s.plans.CreatePlan(ctx, plan); err != nil {
		return domain.Plan{}, newError(ErrorInternal, "store_write_error", err)
	}
	return plan, nil
}

func (s *PlanService) Update(ctx context.Context, id string, in UpdatePlanInput) (domain.Plan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return domain.Plan{}, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return domain.Plan{}, newError(ErrorInvalidInput, "empty_title", nil)
		}
		plan.Title = title
	}
	if in.Description != nil {
		plan.Description = *in.Description
	}
	if in.Deadline != nil {
		if d := strings.TrimSpace(*in.Deadline); d == "" {
			plan.Deadline = nil
		} else {
			plan.Deadline = &d
		}
	}
	if in.Tasks != nil {
		tasks := make([]domain.Task, 0, len(*in.Tasks))
		for _, t := range *in.Tasks {
			if t.ID == "" {
				t.ID = newUUID()
			}
			tasks = append(tasks, t)
		}
		plan.Tasks = tasks
	}
	plan.Progress = domain.TaskProgress(plan.Tasks)

	if err := s.plans.SavePlan(ctx, plan); err != nil {
		return domain.Plan{}, newError(ErrorInternal, "store_write_error", err)
	}
	return plan, nil
}

// ToggleTask flips one task and recomputes the plan's progress.
func (s *PlanService) ToggleTask(ctx context.Context, planID, taskID string) (domain.Plan, error) {
	plan, err := s.Get(ctx, planID)
	if err != nil {
		return domain.Plan{}, err
	}
	found := false
	for i := range plan.Tasks {
		if plan.Tasks[i].ID == taskID {
			plan.Tasks[i].Completed = !plan.Tasks[i].Completed
			found = true
			break
		}
	}
	if !found {
		return domain.Plan{}, newError(ErrorNotFound, "task_not_found", nil)
	}
	plan.Progress = domain.TaskProgress(plan.Tasks)

	if err := s.plans.SavePlan(ctx, plan); err != nil {
		return domain.Plan{}, newError(ErrorInternal, "store_write_error", err)
	}
	return plan, nil
}

func (s *PlanService) Delete(ctx context.Context, id string) error {
	if err := s.plans.DeletePlan(ctx, strings.TrimSpace(id)); err != nil {
		return newError(ErrorInternal, "store_delete_error", err)
	}
	return nil
}
