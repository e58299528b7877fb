package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	hzServer "github.com/cloudwego/hertz/pkg/app/server"
	hzConfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hzConsts "github.com/cloudwego/hertz/pkg/protocol/consts"
	hzprom "github.com/hertz-contrib/monitor-prometheus"

	"github.com/haru-ai/haru/internal/config"
	"github.com/haru-ai/haru/internal/consts"
	"github.com/haru-ai/haru/internal/pkg/logs"
	haruprom "github.com/haru-ai/haru/internal/pkg/prometheus"
	"github.com/haru-ai/haru/internal/scheduler"
	"github.com/haru-ai/haru/internal/timeparse"
	"github.com/haru-ai/haru/internal/tool"
)

// Server exposes the task scheduler and the tool registry over HTTP.
type Server struct {
	cfg        config.ServerConfig
	manager    *scheduler.Manager
	tools      *tool.Registry
	httpServer *hzServer.Hertz

	stopOnce sync.Once
}

func New(cfg config.ServerConfig, manager *scheduler.Manager, tools *tool.Registry) *Server {
	bind := cfg.Bind
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := []hzConfig.Option{
		hzServer.WithHostPorts(bind),
		hzServer.WithReadTimeout(timeout),
		hzServer.WithWriteTimeout(timeout),
		hzServer.WithExitWaitTime(5 * time.Second),
	}
	if cfg.MetricsBind != "" {
		opts = append(opts, hzServer.WithTracer(hzprom.NewServerTracer(
			cfg.MetricsBind, "/metrics",
			hzprom.WithRegistry(haruprom.GetRegistry()),
			hzprom.WithEnableGoCollector(true),
		)))
	}

	hlog.SetLogger(logs.NewHlogLogger(logs.DefaultLogger()))

	srv := &Server{
		cfg:        cfg,
		manager:    manager,
		tools:      tools,
		httpServer: hzServer.Default(opts...),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start(_ context.Context) error {
	go s.httpServer.Spin()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

func (s *Server) registerRoutes() {
	s.httpServer.GET("/ping", func(_ context.Context, c *app.RequestContext) {
		c.JSON(hzConsts.StatusOK, map[string]string{"message": "pong"})
	})

	api := s.httpServer.Group("/api/v1", s.authMiddleware())
	api.POST("/tasks", s.handleScheduleTask)
	api.GET("/tasks", s.handleListTasks)
	api.GET("/tasks/:id", s.handleGetTask)
	api.DELETE("/tasks/:id", s.handleCancelTask)
	api.GET("/tools", s.handleListTools)
	api.POST("/tools/:name", s.handleExecuteTool)
}

func (s *Server) authMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if s.cfg.APIKey != "" {
			auth := string(c.GetHeader("Authorization"))
			if auth != "Bearer "+s.cfg.APIKey {
				c.AbortWithStatusJSON(hzConsts.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		c.Next(ctx)
	}
}

type scheduleRequest struct {
	TimeExpression  string `json:"time_expression"`
	TaskDescription string `json:"task_description"`
	UserID          string `json:"user_id"`
	ChannelID       string `json:"channel_id,omitempty"`
	ThreadID        string `json:"thread_id,omitempty"`
}

type taskResponse struct {
	TaskID       string `json:"task_id"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	TriggerAt    string `json:"trigger_at"`
	ResolvedTime string `json:"resolved_time"`
	UserID       string `json:"user_id"`
	ChannelID    string `json:"channel_id,omitempty"`
	ThreadID     string `json:"thread_id,omitempty"`
	Result       string `json:"result,omitempty"`
	Error        string `json:"error,omitempty"`
}

func toTaskResponse(task scheduler.Task) taskResponse {
	return taskResponse{
		TaskID:       task.ID,
		Description:  task.Description,
		Status:       string(task.Status),
		TriggerAt:    task.TriggerAt.Format(time.RFC3339),
		ResolvedTime: timeparse.Format(task.TriggerAt),
		UserID:       task.Origin.UserID,
		ChannelID:    task.Origin.ChannelID,
		ThreadID:     task.Origin.ThreadID,
		Result:       task.Result,
		Error:        task.Error,
	}
}

func (s *Server) handleScheduleTask(ctx context.Context, c *app.RequestContext) {
	var req scheduleRequest
	if err := sonic.Unmarshal(c.GetRequest().Body(), &req); err != nil {
		c.JSON(hzConsts.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TimeExpression == "" || req.TaskDescription == "" || req.UserID == "" {
		c.JSON(hzConsts.StatusBadRequest, map[string]string{"error": "time_expression, task_description and user_id are required"})
		return
	}

	origin := scheduler.Origin{
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		ThreadID:  req.ThreadID,
	}

	task, err := s.manager.Schedule(ctx, req.TaskDescription, req.TimeExpression, origin)
	if err != nil {
		switch {
		case errors.Is(err, timeparse.ErrUnrecognized):
			c.JSON(hzConsts.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("could not understand time expression %q", req.TimeExpression),
			})
		case errors.Is(err, timeparse.ErrPastTime):
			c.JSON(hzConsts.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("time expression %q resolves to the past", req.TimeExpression),
			})
		default:
			logs.CtxError(ctx, "[server] schedule task error: %v", err)
			c.JSON(hzConsts.StatusInternalServerError, map[string]string{"error": "failed to schedule task"})
		}
		return
	}

	c.JSON(hzConsts.StatusCreated, toTaskResponse(task))
}

func (s *Server) handleListTasks(_ context.Context, c *app.RequestContext) {
	userID := c.Query("user_id")
	includeAll := c.Query("include_all") == "true"

	if userID == "" && !includeAll {
		c.JSON(hzConsts.StatusBadRequest, map[string]string{"error": "user_id is required unless include_all=true"})
		return
	}

	tasks := s.manager.List(scheduler.Origin{UserID: userID}, includeAll)
	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toTaskResponse(task))
	}

	c.JSON(hzConsts.StatusOK, map[string]interface{}{
		"tasks": out,
		"count": len(out),
	})
}

func (s *Server) handleGetTask(_ context.Context, c *app.RequestContext) {
	id := c.Param("id")
	task, ok := s.manager.Get(id)
	if !ok {
		c.JSON(hzConsts.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	c.JSON(hzConsts.StatusOK, toTaskResponse(task))
}

func (s *Server) handleCancelTask(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(hzConsts.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	err := s.manager.Cancel(ctx, id, scheduler.Origin{UserID: userID})
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrNotFound):
			c.JSON(hzConsts.StatusNotFound, map[string]string{"error": "task not found"})
		case errors.Is(err, scheduler.ErrNotOwner):
			c.JSON(hzConsts.StatusForbidden, map[string]string{"error": "only the task owner can cancel it"})
		case errors.Is(err, scheduler.ErrInvalidTransition):
			c.JSON(hzConsts.StatusConflict, map[string]string{"error": "task is no longer cancellable"})
		default:
			logs.CtxError(ctx, "[server] cancel task error: %v", err)
			c.JSON(hzConsts.StatusInternalServerError, map[string]string{"error": "failed to cancel task"})
		}
		return
	}

	c.JSON(hzConsts.StatusOK, map[string]interface{}{"task_id": id, "cancelled": true})
}

func (s *Server) handleListTools(_ context.Context, c *app.RequestContext) {
	infos := s.tools.ListToolInfos()
	names := make([]map[string]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, map[string]string{
			"name":        info.Name,
			"description": info.Desc,
		})
	}
	c.JSON(hzConsts.StatusOK, map[string]interface{}{
		"tools": names,
		"count": len(names),
	})
}

type executeToolRequest struct {
	UserID    string                 `json:"user_id"`
	ChannelID string                 `json:"channel_id,omitempty"`
	ThreadID  string                 `json:"thread_id,omitempty"`
	Args      map[string]interface{} `json:"args"`
}

func (s *Server) handleExecuteTool(ctx context.Context, c *app.RequestContext) {
	name := c.Param("name")

	var req executeToolRequest
	if err := sonic.Unmarshal(c.GetRequest().Body(), &req); err != nil {
		c.JSON(hzConsts.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		c.JSON(hzConsts.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	ctx = context.WithValue(ctx, consts.CtxKeyUserID, req.UserID)
	if req.ChannelID != "" {
		ctx = context.WithValue(ctx, consts.CtxKeyChannelID, req.ChannelID)
	}
	if req.ThreadID != "" {
		ctx = context.WithValue(ctx, consts.CtxKeyThreadID, req.ThreadID)
	}

	result, err := s.tools.Execute(ctx, name, req.Args)
	if err != nil {
		logs.CtxWarn(ctx, "[server] tool %s execute error: %v", name, err)
		c.JSON(hzConsts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	c.JSON(hzConsts.StatusOK, map[string]interface{}{"result": result})
}
