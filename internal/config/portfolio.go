package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aristath/fundledger/internal/domain"
)

// Priority resolution modes for the signal engine
const (
	PriorityModeDrop     = "drop"
	PriorityModeAnnotate = "annotate"
)

// weightSumTolerance is how far target weights may drift from 1 in the YAML file
var weightSumTolerance = decimal.New(1, -6)

// PortfolioConfig is the static portfolio definition loaded from YAML
type PortfolioConfig struct {
	AssetClasses []AssetClassConfig `yaml:"asset_classes" validate:"required,min=1,dive"`
	Thresholds   ThresholdConfig    `yaml:"thresholds"`
	CooldownDays CooldownDaysConfig `yaml:"cooldown_days"`
	Tactical     TacticalConfig     `yaml:"tactical"`
	PriorityMode string             `yaml:"priority_mode" default:"drop" validate:"oneof=drop annotate"`
	// Holidays override the bundled domestic schedule, for years it does not cover yet
	Holidays []HolidayOverride `yaml:"holidays" validate:"dive"`
}

// HolidayOverride marks one domestic date as closed, or as a make-up workday
type HolidayOverride struct {
	Date    string `yaml:"date" validate:"required,datetime=2006-01-02"`
	Name    string `yaml:"name"`
	Workday bool   `yaml:"workday"`
}

// AssetClassConfig groups funds under one target weight
type AssetClassConfig struct {
	Name   string       `yaml:"name" validate:"required"`
	Target float64      `yaml:"target" validate:"gte=0,lte=1"`
	Funds  []FundConfig `yaml:"funds" validate:"dive"`
	// Representative is the fund whose valuation history drives the tactical policy.
	// Defaults to the first fund listed.
	Representative string `yaml:"representative"`
}

// FundConfig describes one fund
type FundConfig struct {
	Code     string `yaml:"code" validate:"required"`
	Name     string `yaml:"name"`
	Category string `yaml:"category" default:"domestic" validate:"oneof=domestic cross-border"`
}

// ThresholdConfig holds the signal trigger levels
type ThresholdConfig struct {
	RebalanceLight   float64 `yaml:"rebalance_light" default:"0.05" validate:"gt=0"`
	RebalanceStrong  float64 `yaml:"rebalance_strong" default:"0.20" validate:"gt=0"`
	TacticalDrawdown float64 `yaml:"tactical_drawdown" default:"0.10" validate:"gt=0"`
	TacticalProfit   float64 `yaml:"tactical_profit" default:"0.15" validate:"gt=0"`
}

// CooldownDaysConfig holds cooldown durations by signal family
type CooldownDaysConfig struct {
	Strong   int `yaml:"strong" default:"90" validate:"gte=0"`
	Light    int `yaml:"light" default:"60" validate:"gte=0"`
	Tactical int `yaml:"tactical" default:"30" validate:"gte=0"`
}

// TacticalConfig holds the tactical policy parameters
type TacticalConfig struct {
	Amount float64 `yaml:"amount" default:"200" validate:"gt=0"`
	Window int     `yaml:"window" default:"90" validate:"gte=2"`
}

// LoadPortfolio reads, defaults and validates the portfolio YAML file
func LoadPortfolio(path string) (*PortfolioConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio config: %w", err)
	}
	return ParsePortfolio(b)
}

// ParsePortfolio decodes a portfolio definition from YAML bytes
func ParsePortfolio(b []byte) (*PortfolioConfig, error) {
	var c PortfolioConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse portfolio config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply portfolio defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate portfolio config: %w", err)
	}
	return &c, nil
}

// Validate checks struct tags, duplicate fund codes and that targets sum to 1
func (c *PortfolioConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	seen := make(map[string]string)
	sum := decimal.Zero
	for _, ac := range c.AssetClasses {
		sum = sum.Add(decimal.NewFromFloat(ac.Target))
		for _, f := range ac.Funds {
			if other, ok := seen[f.Code]; ok {
				return fmt.Errorf("fund %s listed under both %s and %s", f.Code, other, ac.Name)
			}
			seen[f.Code] = ac.Name
		}
	}
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(weightSumTolerance) {
		return fmt.Errorf("target weights sum to %s, expected 1", sum.String())
	}
	return nil
}

// Targets returns target weights keyed by asset class
func (c *PortfolioConfig) Targets() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.AssetClasses))
	for _, ac := range c.AssetClasses {
		out[ac.Name] = decimal.NewFromFloat(ac.Target)
	}
	return out
}

// FundClasses maps fund code to asset class
func (c *PortfolioConfig) FundClasses() map[string]string {
	out := make(map[string]string)
	for _, ac := range c.AssetClasses {
		for _, f := range ac.Funds {
			out[f.Code] = ac.Name
		}
	}
	return out
}

// FundCategories maps fund code to settlement category
func (c *PortfolioConfig) FundCategories() map[string]domain.FundCategory {
	out := make(map[string]domain.FundCategory)
	for _, ac := range c.AssetClasses {
		for _, f := range ac.Funds {
			out[f.Code] = domain.FundCategory(f.Category)
		}
	}
	return out
}

// RepresentativeFund returns the fund driving the tactical policy of an asset class
func (c *PortfolioConfig) RepresentativeFund(assetClass string) (FundConfig, bool) {
	for _, ac := range c.AssetClasses {
		if ac.Name != assetClass || len(ac.Funds) == 0 {
			continue
		}
		for _, f := range ac.Funds {
			if f.Code == ac.Representative {
				return f, true
			}
		}
		return ac.Funds[0], true
	}
	return FundConfig{}, false
}
