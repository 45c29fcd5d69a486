package main

import (
	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/undertow/config"
	"github.com/deepnoodle-ai/undertow/executor"
	"github.com/deepnoodle-ai/undertow/planner"
	"github.com/deepnoodle-ai/undertow/slogger"
)

// App bundles the engine components built from one configuration.
type App struct {
	Config     *config.Config
	Logger     slogger.Logger
	Repository undertow.WorkflowRepository
	Reporter   undertow.StatusReporter
	Tools      *undertow.ToolRegistry
	Planner    *planner.Planner
	Executor   *executor.Executor
}

func newApp() (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := cfg.BuildLogger()

	provider, err := cfg.BuildProvider(logger)
	if err != nil {
		return nil, err
	}
	repository := cfg.BuildRepository()
	reporter := cfg.BuildReporter()
	tools, err := cfg.BuildTools()
	if err != nil {
		return nil, err
	}

	p, err := planner.New(planner.Options{
		Provider:   provider,
		Repository: repository,
		Tools:      tools,
		Logger:     logger,
		Model:      cfg.Planner.Model,
		MaxSteps:   cfg.Planner.MaxSteps,
	})
	if err != nil {
		return nil, err
	}

	e, err := executor.New(executor.Options{
		Repository:    repository,
		Provider:      provider,
		Tools:         tools,
		Reporter:      reporter,
		Breaker:       cfg.BuildBreaker(logger),
		Logger:        logger,
		StepDelay:     cfg.Executor.StepDelay.Duration(),
		MaxAttempts:   cfg.Executor.MaxAttempts,
		RetryBaseWait: cfg.Executor.RetryBaseWait.Duration(),
		RetryMaxWait:  cfg.Executor.RetryMaxWait.Duration(),
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Repository: repository,
		Reporter:   reporter,
		Tools:      tools,
		Planner:    p,
		Executor:   e,
	}, nil
}
