package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/timeline"
)

// ScreenEngine compiles operator-authored CEL screening expressions and
// exposes them as extra detectors alongside the fixed catalogue. A
// screen fires per transaction; its expression must evaluate to bool.
type ScreenEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledScreen
}

// CompiledScreen holds a pre-compiled screening expression.
type CompiledScreen struct {
	Config  *domain.ScreenConfig
	Program cel.Program
}

// NewScreenEngine creates a screen engine with the per-transaction
// variable set.
func NewScreenEngine() (*ScreenEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("payee_id", cel.StringType),
		cel.Variable("mcc", cel.IntType),
		cel.Variable("customer_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &ScreenEngine{
		env:      env,
		compiled: make(map[string]*CompiledScreen),
	}, nil
}

// Validate compiles a screen without loading it.
func (e *ScreenEngine) Validate(cfg *domain.ScreenConfig) error {
	if cfg == nil {
		return fmt.Errorf("screen config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileScreen(cfg)
	return err
}

// Load compiles and loads a single screen.
func (e *ScreenEngine) Load(cfg *domain.ScreenConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileScreen(cfg)
	if err != nil {
		return err
	}

	e.compiled[cfg.ID] = compiled
	return nil
}

// Reload replaces the loaded screen set with the enabled subset of the
// given configs. A compile failure leaves the previous set in place.
func (e *ScreenEngine) Reload(cfgs []*domain.ScreenConfig) error {
	next := make(map[string]*CompiledScreen)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileScreen(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.compiled = next
	return nil
}

// Count returns the number of loaded screens.
func (e *ScreenEngine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Loaded returns the configs of the loaded screens, sorted by name.
func (e *ScreenEngine) Loaded() []*domain.ScreenConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfgs := make([]*domain.ScreenConfig, 0, len(e.compiled))
	for _, c := range e.compiled {
		cfgs = append(cfgs, c.Config)
	}
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].Name < cfgs[j].Name })
	return cfgs
}

// Detectors returns one detector per loaded screen, sorted by screen
// name so the scan's detector order stays reproducible.
func (e *ScreenEngine) Detectors() []Detector {
	e.mu.RLock()
	defer e.mu.RUnlock()

	screens := make([]*CompiledScreen, 0, len(e.compiled))
	for _, c := range e.compiled {
		screens = append(screens, c)
	}
	sort.Slice(screens, func(i, j int) bool {
		return screens[i].Config.Name < screens[j].Config.Name
	})

	dets := make([]Detector, 0, len(screens))
	for _, s := range screens {
		dets = append(dets, &screenDetector{screen: s})
	}
	return dets
}

// Close drops every loaded screen.
func (e *ScreenEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledScreen)
	return nil
}

func (e *ScreenEngine) compileScreen(cfg *domain.ScreenConfig) (*CompiledScreen, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile screen %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("screen %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for screen %s: %w", cfg.ID, err)
	}

	return &CompiledScreen{Config: cfg, Program: program}, nil
}

// screenDetector adapts one compiled screen to the Detector interface.
type screenDetector struct {
	screen *CompiledScreen
}

func (d *screenDetector) Name() string { return d.screen.Config.Name }

func (d *screenDetector) Description() string { return d.screen.Config.Description }

func (d *screenDetector) Detect(log *timeline.Log) []domain.Alert {
	var alerts []domain.Alert
	for _, tx := range log.Transactions() {
		activation := map[string]any{
			"amount":      tx.Amount,
			"hour":        tx.TransactionDate.Hour(),
			"tx_type":     tx.Type,
			"payee_id":    tx.PayeeID,
			"mcc":         tx.MCC,
			"customer_id": tx.CustomerID,
		}

		out, _, err := d.screen.Program.Eval(activation)
		if err != nil {
			// A screen that cannot evaluate one transaction skips it
			// rather than aborting the scan.
			continue
		}
		if out != types.True {
			continue
		}

		details := d.screen.Config.Reason
		if details == "" {
			details = fmt.Sprintf("Screen %q matched", d.screen.Config.Name)
		}
		alerts = append(alerts, candidate(tx, d.screen.Config.Name,
			fmt.Sprintf("%s (KSh %s)", details, ksh(tx.Amount))))
	}
	return alerts
}
