package schedx

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haru-ai/haru/internal/config"
	"github.com/haru-ai/haru/internal/consts"
	"github.com/haru-ai/haru/internal/scheduler"
)

type noopRunner struct{}

func (noopRunner) Execute(_ context.Context, _ string, _ scheduler.Origin) (string, error) {
	return "done", nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(_ context.Context, _ scheduler.Task) error {
	return nil
}

func initScheduler(t *testing.T) {
	t.Helper()
	cfg := config.SchedulerConfig{
		Store:             filepath.Join(t.TempDir(), "tasks.json"),
		MaxConcurrentRuns: 2,
		TaskTimeoutSec:    5,
	}
	scheduler.Init(cfg, noopRunner{}, noopNotifier{})
}

func userCtx(userID, channelID string) context.Context {
	ctx := context.WithValue(context.Background(), consts.CtxKeyUserID, userID)
	return context.WithValue(ctx, consts.CtxKeyChannelID, channelID)
}

func TestSchedTool_UnknownAction(t *testing.T) {
	initScheduler(t)
	tool := NewSchedTool()

	_, err := tool.Execute(userCtx("U1", "C1"), map[string]interface{}{"action": "explode"})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestSchedTool_Schedule(t *testing.T) {
	initScheduler(t)
	tool := NewSchedTool()

	result, err := tool.Execute(userCtx("U1", "C1"), map[string]interface{}{
		"action":           "schedule",
		"time_expression":  "10분 후",
		"task_description": "보고서 검토",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out := result.(map[string]interface{})
	if out["success"] != true {
		t.Fatalf("expected success, got %v", out)
	}
	taskID := out["task_id"].(string)
	if taskID == "" {
		t.Fatal("expected a task_id")
	}

	task, ok := scheduler.Default().Get(taskID)
	if !ok {
		t.Fatalf("task %s not found in scheduler", taskID)
	}
	if task.Status != scheduler.StatusPending {
		t.Fatalf("status = %s, want pending", task.Status)
	}
	if task.Origin.UserID != "U1" || task.Origin.ChannelID != "C1" {
		t.Fatalf("origin not propagated from context: %+v", task.Origin)
	}
}

func TestSchedTool_Schedule_MissingArgs(t *testing.T) {
	initScheduler(t)
	tool := NewSchedTool()
	ctx := userCtx("U1", "C1")

	if _, err := tool.Execute(ctx, map[string]interface{}{
		"action":           "schedule",
		"task_description": "x",
	}); err == nil {
		t.Fatal("expected error when time_expression is missing")
	}

	if _, err := tool.Execute(ctx, map[string]interface{}{
		"action":          "schedule",
		"time_expression": "10분 후",
	}); err == nil {
		t.Fatal("expected error when task_description is missing")
	}
}

func TestSchedTool_Schedule_NoUserInContext(t *testing.T) {
	initScheduler(t)
	tool := NewSchedTool()

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"action":           "schedule",
		"time_expression":  "10분 후",
		"task_description": "x",
	})
	if err == nil {
		t.Fatal("expected error when user_id is absent from context")
	}
}

func TestSchedTool_Schedule_UnparseableTime(t *testing.T) {
	initScheduler(t)
	tool := NewSchedTool()

	result, err := tool.Execute(userCtx("U1", "C1"), map[string]interface{}{
		"action":           "schedule",
		"time_expression":  "glorp",
		"task_description": "x",
	})
	if err != nil {
		t.Fatalf("unparseable time should yield a friendly reply, not an error: %v", err)
	}
	out := result.(map[string]interface{})
	if out["success"] != false {
		t.Fatalf("expected success=false, got %v", out)
	}
	if msg := out["message"].(string); !strings.Contains(msg, "glorp") {
		t.Fatalf("message should echo the expression, got %q", msg)
	}
}

func TestSchedTool_List(t *testing.T) {
	initScheduler(t)
	tool := NewSchedTool()
	ctx := userCtx("U1", "C1")

	for _, desc := range []string{"작업 하나", "작업 둘"} {
		if _, err := tool.Execute(ctx, map[string]interface{}{
			"action":           "schedule",
			"time_expression":  "1시간 후",
			"task_description": desc,
		}); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	// Another user's task must not appear in the listing.
	if _, err := tool.Execute(userCtx("U2", "C1"), map[string]interface{}{
		"action":           "schedule",
		"time_expression":  "1시간 후",
		"task_description": "남의 작업",
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	result, err := tool.Execute(ctx, map[string]interface{}{"action": "list"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out := result.(map[string]interface{})
	if out["count"] != 2 {
		t.Fatalf("count = %v, want 2", out["count"])
	}
	for _, raw := range out["tasks"].([]map[string]interface{}) {
		if raw["status"] != "pending" {
			t.Fatalf("task entry missing pending status: %v", raw)
		}
	}
}

func TestSchedTool_List_IncludeAll(t *testing.T) {
	initScheduler(t)
	tool := NewSchedTool()
	ctx := userCtx("U1", "C1")

	result, err := tool.Execute(ctx, map[string]interface{}{
		"action":           "schedule",
		"time_expression":  "1시간 후",
		"task_description": "취소될 작업",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	taskID := result.(map[string]interface{})["task_id"].(string)
	if _, err := tool.Execute(ctx, map[string]interface{}{
		"action":  "cancel",
		"task_id": taskID,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The default listing hides the cancelled task.
	result, err = tool.Execute(ctx, map[string]interface{}{"action": "list"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out := result.(map[string]interface{}); out["count"] != 0 {
		t.Fatalf("default list count = %v, want 0", out["count"])
	}

	// include_all keeps it visible, with its status.
	result, err = tool.Execute(ctx, map[string]interface{}{
		"action":      "list",
		"include_all": true,
	})
	if err != nil {
		t.Fatalf("list include_all: %v", err)
	}
	out := result.(map[string]interface{})
	if out["count"] != 1 {
		t.Fatalf("include_all count = %v, want 1", out["count"])
	}
	entry := out["tasks"].([]map[string]interface{})[0]
	if entry["task_id"] != taskID || entry["status"] != "cancelled" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestSchedTool_Cancel(t *testing.T) {
	initScheduler(t)
	tool := NewSchedTool()
	ctx := userCtx("U1", "C1")

	result, err := tool.Execute(ctx, map[string]interface{}{
		"action":           "schedule",
		"time_expression":  "1시간 후",
		"task_description": "취소될 작업",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	taskID := result.(map[string]interface{})["task_id"].(string)

	// Someone else cannot cancel it.
	result, err = tool.Execute(userCtx("U2", "C2"), map[string]interface{}{
		"action":  "cancel",
		"task_id": taskID,
	})
	if err != nil {
		t.Fatalf("cancel by non-owner: %v", err)
	}
	if result.(map[string]interface{})["success"] != false {
		t.Fatal("non-owner cancel should be refused")
	}

	// The owner can.
	result, err = tool.Execute(ctx, map[string]interface{}{
		"action":  "cancel",
		"task_id": taskID,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.(map[string]interface{})["success"] != true {
		t.Fatalf("expected success, got %v", result)
	}

	task, _ := scheduler.Default().Get(taskID)
	if task.Status != scheduler.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", task.Status)
	}

	result, err = tool.Execute(ctx, map[string]interface{}{
		"action":  "cancel",
		"task_id": "deadbeef",
	})
	if err != nil {
		t.Fatalf("cancel unknown id: %v", err)
	}
	if result.(map[string]interface{})["success"] != false {
		t.Fatal("cancelling an unknown task should be refused, not an error")
	}
}
