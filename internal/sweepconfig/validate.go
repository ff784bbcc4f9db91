package sweepconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/sweeper/internal/contracts"
)

// ValidationError 검증 실패 (실행 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CronParser matches the scheduler's cron.WithSeconds() format
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Tickers ===
	if len(cfg.Tickers) == 0 {
		return ValidationError{"tickers", "at least one ticker is required"}
	}
	seen := make(map[string]bool, len(cfg.Tickers))
	for i, t := range cfg.Tickers {
		t = strings.TrimSpace(t)
		if t == "" {
			return ValidationError{fmt.Sprintf("tickers[%d]", i), "empty ticker"}
		}
		key := strings.ToUpper(t)
		if seen[key] {
			return ValidationError{fmt.Sprintf("tickers[%d]", i), fmt.Sprintf("duplicate ticker %q", t)}
		}
		seen[key] = true
	}

	// === Range ===
	if _, err := cfg.DateRange(); err != nil {
		return ValidationError{"range", err.Error()}
	}

	// === Strategies ===
	if len(cfg.Strategies) == 0 {
		return ValidationError{"strategies", "at least one strategy grid is required"}
	}
	families := make(map[contracts.StrategyFamily]bool)
	for i, s := range cfg.Strategies {
		field := fmt.Sprintf("strategies[%d]", i)
		family, err := contracts.ParseFamily(s.Family)
		if err != nil {
			return ValidationError{field + ".family", err.Error()}
		}
		if families[family] {
			return ValidationError{field + ".family", fmt.Sprintf("%s listed twice", family)}
		}
		families[family] = true

		if err := validatePeriods(field+".fast", s.Fast); err != nil {
			return err
		}
		if err := validatePeriods(field+".slow", s.Slow); err != nil {
			return err
		}
		if family.UsesSignalPeriod() {
			if err := validatePeriods(field+".signal", s.Signal); err != nil {
				return err
			}
		} else if len(s.Signal) > 0 {
			return ValidationError{field + ".signal", fmt.Sprintf("%s does not use a signal period", family)}
		}

		if len(Expand(toFamilyGrid(family, s))) == 0 {
			return ValidationError{field, "grid expands to no combination (fast must be below slow)"}
		}
	}

	// === Backtest ===
	if cfg.Backtest.InitialCapital < 0 {
		return ValidationError{"backtest.initial_capital", "must be >= 0"}
	}
	if c := cfg.Backtest.Commission; c != nil && (*c < 0 || *c >= 0.05) {
		return ValidationError{"backtest.commission", "must be in [0, 0.05)"}
	}
	if m := cfg.Backtest.MinTrades; m != nil && *m < 0 {
		return ValidationError{"backtest.min_trades", "must be >= 0"}
	}

	// === Execution ===
	if cfg.Execution.PoolWidth < 0 {
		return ValidationError{"execution.pool_width", "must be >= 0"}
	}
	if cfg.Execution.BatchSize < 0 {
		return ValidationError{"execution.batch_size", "must be >= 0"}
	}

	// === Schedule ===
	if cfg.Schedule.Enabled {
		if _, err := CronParser.Parse(cfg.Schedule.Cron); err != nil {
			return ValidationError{"schedule.cron", err.Error()}
		}
	}

	return nil
}

func validatePeriods(field string, periods []int) error {
	if len(periods) == 0 {
		return ValidationError{field, "at least one period is required"}
	}
	for _, p := range periods {
		if p <= 0 {
			return ValidationError{field, fmt.Sprintf("period must be > 0, got %d", p)}
		}
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}
