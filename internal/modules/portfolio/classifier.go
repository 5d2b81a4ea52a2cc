package portfolio

import (
	"github.com/rs/zerolog"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/domain"
)

// Classifier maps fund codes to their asset class and settlement category
type Classifier interface {
	AssetClass(fundCode string) string
	Category(fundCode string) domain.FundCategory
}

// ConfigClassifier classifies funds from the portfolio config
type ConfigClassifier struct {
	classes    map[string]string
	categories map[string]domain.FundCategory
	log        zerolog.Logger
}

// NewConfigClassifier builds a classifier from the configured asset classes
func NewConfigClassifier(cfg *config.PortfolioConfig, log zerolog.Logger) *ConfigClassifier {
	return &ConfigClassifier{
		classes:    cfg.FundClasses(),
		categories: cfg.FundCategories(),
		log:        log.With().Str("component", "classifier").Logger(),
	}
}

// AssetClass returns the configured asset class, or domain.UnknownAssetClass
func (c *ConfigClassifier) AssetClass(fundCode string) string {
	if class, ok := c.classes[fundCode]; ok {
		return class
	}
	c.log.Warn().Str("fund_code", fundCode).Msg("Fund has no configured asset class")
	return domain.UnknownAssetClass
}

// Category returns the configured category, defaulting to domestic
func (c *ConfigClassifier) Category(fundCode string) domain.FundCategory {
	if category, ok := c.categories[fundCode]; ok && category != "" {
		return category
	}
	return domain.CategoryDomestic
}

// Known reports whether the fund is configured
func (c *ConfigClassifier) Known(fundCode string) bool {
	_, ok := c.classes[fundCode]
	return ok
}
