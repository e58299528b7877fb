package schedx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/gg/gconv"
	"github.com/cloudwego/eino/schema"

	"github.com/haru-ai/haru/internal/consts"
	"github.com/haru-ai/haru/internal/pkg/logs"
	"github.com/haru-ai/haru/internal/scheduler"
	"github.com/haru-ai/haru/internal/timeparse"
)

type SchedTool struct{}

func NewSchedTool() *SchedTool {
	return &SchedTool{}
}

func (t *SchedTool) Name() string {
	return "schedx"
}

func (t *SchedTool) Description() string {
	return "Schedule one-shot reminders and tasks from natural-language time expressions (Korean or English), list pending tasks, or cancel them"
}

func (t *SchedTool) ToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"action": {
				Type:     schema.String,
				Desc:     `Action to perform: "schedule", "list", or "cancel"`,
				Required: true,
			},
			"time_expression": {
				Type: schema.String,
				Desc: `Natural-language time such as "10분 후", "내일 오전 9시", "in 2 hours", "tomorrow 15:00". Required for schedule.`,
			},
			"task_description": {
				Type: schema.String,
				Desc: `What to do when the time arrives. Required for schedule.`,
			},
			"task_id": {
				Type: schema.String,
				Desc: `Task ID (required for cancel)`,
			},
			"include_all": {
				Type: schema.Boolean,
				Desc: `For list: include running and finished tasks, not just pending ones (default: false)`,
			},
		}),
	}
}

func (t *SchedTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	mgr := scheduler.Default()
	if mgr == nil {
		return nil, fmt.Errorf("task scheduler is not initialized")
	}

	action := strings.ToLower(strings.TrimSpace(gconv.To[string](args["action"])))
	switch action {
	case "schedule":
		return t.schedule(ctx, mgr, args)
	case "list":
		return t.list(ctx, mgr, args)
	case "cancel":
		return t.cancel(ctx, mgr, args)
	default:
		return nil, fmt.Errorf("unknown action %q, must be one of: schedule, list, cancel", action)
	}
}

func (t *SchedTool) schedule(ctx context.Context, mgr *scheduler.Manager, args map[string]interface{}) (interface{}, error) {
	timeExpr := gconv.To[string](args["time_expression"])
	if timeExpr == "" {
		return nil, fmt.Errorf("time_expression is required for schedule")
	}
	description := gconv.To[string](args["task_description"])
	if description == "" {
		return nil, fmt.Errorf("task_description is required for schedule")
	}

	origin := originFromCtx(ctx)
	if origin.UserID == "" {
		return nil, fmt.Errorf("user_id not found in context")
	}

	task, err := mgr.Schedule(ctx, description, timeExpr, origin)
	if err != nil {
		if errors.Is(err, timeparse.ErrUnrecognized) {
			return map[string]interface{}{
				"success": false,
				"message": fmt.Sprintf("시간 표현 '%s'을(를) 이해하지 못했어요. '10분 후', '내일 오전 9시' 같은 형식으로 다시 알려주세요.", timeExpr),
			}, nil
		}
		if errors.Is(err, timeparse.ErrPastTime) {
			return map[string]interface{}{
				"success": false,
				"message": fmt.Sprintf("'%s'은(는) 이미 지난 시각이에요. 미래의 시각으로 다시 알려주세요.", timeExpr),
			}, nil
		}
		return nil, fmt.Errorf("schedule task: %w", err)
	}

	logs.CtxInfo(ctx, "[tool:schedx] scheduled task %s at %s", task.ID, task.TriggerAt.Format("2006-01-02 15:04:05 MST"))

	return map[string]interface{}{
		"success":       true,
		"task_id":       task.ID,
		"resolved_time": timeparse.Format(task.TriggerAt),
		"message":       fmt.Sprintf("알겠어요! %s에 '%s' 작업을 실행할게요. (작업 ID: %s)", timeparse.Format(task.TriggerAt), task.Description, task.ID),
	}, nil
}

func (t *SchedTool) list(ctx context.Context, mgr *scheduler.Manager, args map[string]interface{}) (interface{}, error) {
	origin := originFromCtx(ctx)
	if origin.UserID == "" {
		return nil, fmt.Errorf("user_id not found in context")
	}

	includeAll := gconv.To[bool](args["include_all"])
	tasks := mgr.List(origin, includeAll)

	out := make([]map[string]interface{}, 0, len(tasks))
	for _, task := range tasks {
		entry := map[string]interface{}{
			"task_id":      task.ID,
			"description":  task.Description,
			"trigger_time": timeparse.Format(task.TriggerAt),
			"status":       string(task.Status),
		}
		if task.Result != "" {
			entry["result"] = task.Result
		}
		if task.Error != "" {
			entry["error"] = task.Error
		}
		out = append(out, entry)
	}

	if len(out) == 0 {
		return map[string]interface{}{
			"tasks":   out,
			"count":   0,
			"message": "예약된 작업이 없어요.",
		}, nil
	}

	message := fmt.Sprintf("예약된 작업이 %d개 있어요.", len(out))
	if includeAll {
		message = fmt.Sprintf("작업이 %d개 있어요. (완료/취소된 작업 포함)", len(out))
	}

	return map[string]interface{}{
		"tasks":   out,
		"count":   len(out),
		"message": message,
	}, nil
}

func (t *SchedTool) cancel(ctx context.Context, mgr *scheduler.Manager, args map[string]interface{}) (interface{}, error) {
	taskID := gconv.To[string](args["task_id"])
	if taskID == "" {
		return nil, fmt.Errorf("task_id is required for cancel")
	}

	origin := originFromCtx(ctx)
	if origin.UserID == "" {
		return nil, fmt.Errorf("user_id not found in context")
	}

	if err := mgr.Cancel(ctx, taskID, origin); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrNotFound):
			return map[string]interface{}{
				"success": false,
				"message": fmt.Sprintf("작업 ID '%s'을(를) 찾을 수 없어요.", taskID),
			}, nil
		case errors.Is(err, scheduler.ErrNotOwner):
			return map[string]interface{}{
				"success": false,
				"message": "본인이 예약한 작업만 취소할 수 있어요.",
			}, nil
		case errors.Is(err, scheduler.ErrInvalidTransition):
			return map[string]interface{}{
				"success": false,
				"message": "이미 실행되었거나 끝난 작업은 취소할 수 없어요.",
			}, nil
		}
		return nil, fmt.Errorf("cancel task: %w", err)
	}

	logs.CtxInfo(ctx, "[tool:schedx] cancelled task %s", taskID)

	return map[string]interface{}{
		"success": true,
		"task_id": taskID,
		"message": fmt.Sprintf("작업 '%s'을(를) 취소했어요.", taskID),
	}, nil
}

func originFromCtx(ctx context.Context) scheduler.Origin {
	userID, _ := ctx.Value(consts.CtxKeyUserID).(string)
	channelID, _ := ctx.Value(consts.CtxKeyChannelID).(string)
	threadID, _ := ctx.Value(consts.CtxKeyThreadID).(string)
	return scheduler.Origin{
		UserID:    userID,
		ChannelID: channelID,
		ThreadID:  threadID,
	}
}
