package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/lessonloop/internal/config"
	"github.com/abhisek/lessonloop/internal/content"
	"github.com/abhisek/lessonloop/internal/evaluator"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/store"
	"github.com/abhisek/lessonloop/internal/workflow"
)

// deps bundles the collaborators every session command needs.
type deps struct {
	store  *store.Store
	engine *workflow.Engine
	close  []func() error
}

func (d *deps) Close() error {
	var errs []error
	for i := len(d.close) - 1; i >= 0; i-- {
		errs = append(errs, d.close[i]())
	}
	return errors.Join(errs...)
}

// openStore opens the SQLite database named by --db, LESSONLOOP_DB or the
// default XDG path.
func openStore() (*store.Store, error) {
	path := cfg.Database.Path
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		path = p
	} else if err := store.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// buildDeps opens storage and assembles the engine from cfg.
func buildDeps(ctx context.Context) (*deps, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	d := &deps{store: st, close: []func() error{st.Close}}

	sessions := st.SessionRepo()
	if cfg.State.Backend == config.BackendRedis {
		rs, err := store.NewRedisSessionRepo(ctx, cfg.State.Redis)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.close = append(d.close, rs.Close)
		sessions = rs
	}

	var (
		eval      evaluator.Evaluator = evaluator.NewRuleEvaluator()
		explainer content.Explainer   = content.Static{}
	)
	if cfg.Evaluator.Kind == config.EvaluatorLLM {
		provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("build LLM provider: %w", err)
		}
		eval = evaluator.NewLLMEvaluator(provider, cfg.Evaluator.LLM)
		explainer = content.NewGenerator(provider, cfg.Evaluator.Explain)
	}

	d.engine = workflow.New(sessions, eval,
		workflow.WithEvents(st.EventRepo()),
		workflow.WithExplainer(explainer),
		workflow.WithSessionDefaults(cfg.Session),
		workflow.WithLogger(logger),
	)
	return d, nil
}
