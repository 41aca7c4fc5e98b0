package bias

import (
	"fmt"
	"log"
	"time"

	"findata_pipeline/pkg/core/store"
)

// MaxBoost is the global cap on any boost factor.
const MaxBoost = 0.3

// GlobalSettings holds the boost kill switch and global knobs.
type GlobalSettings struct {
	BoostEnabled      bool    `json:"boost_enabled"`
	QualityAdjustment bool    `json:"quality_adjustment"`
	MaxBoost          float64 `json:"max_boost"`
}

// CompanyBoost is one company's persisted boost entry.
type CompanyBoost struct {
	Classification Classification         `json:"classification"`
	CoverageRatio  float64                `json:"coverage_ratio"`
	BaseBoost      float64                `json:"base_boost"`
	SourceBoosts   map[string]float64     `json:"source_boosts"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// BoostConfig is the whole persisted configuration document.
type BoostConfig struct {
	Version        string                  `json:"version"`
	CreatedAt      time.Time               `json:"created_at"`
	LastUpdated    time.Time               `json:"last_updated"`
	GlobalSettings GlobalSettings          `json:"global_settings"`
	Companies      map[string]CompanyBoost `json:"companies"`
}

// BoostConfigManager persists per-company boost configuration with
// whole-snapshot read/overwrite semantics.
type BoostConfigManager struct {
	store  *store.SnapshotStore
	config BoostConfig
}

// NewBoostConfigManager loads the boost config from configPath, or
// initializes defaults (boosting enabled, quality adjustment on, 0.3 cap)
// when no config exists yet.
func NewBoostConfigManager(configPath string) (*BoostConfigManager, error) {
	m := &BoostConfigManager{store: store.NewSnapshotStore(configPath)}

	found, err := m.store.Load(&m.config)
	if err != nil {
		return nil, fmt.Errorf("boost config unreadable: %w", err)
	}
	if !found {
		m.config = BoostConfig{
			Version:   "1.0",
			CreatedAt: time.Now().UTC(),
			GlobalSettings: GlobalSettings{
				BoostEnabled:      true,
				QualityAdjustment: true,
				MaxBoost:          MaxBoost,
			},
			Companies: make(map[string]CompanyBoost),
		}
	}
	if m.config.Companies == nil {
		m.config.Companies = make(map[string]CompanyBoost)
	}

	log.Printf("[BoostConfigManager] Initialized: %d companies configured", len(m.config.Companies))
	return m, nil
}

func (m *BoostConfigManager) save() error {
	m.config.LastUpdated = time.Now().UTC()
	return m.store.Save(m.config)
}

// SetCompanyBoost creates or overwrites a company's boost entry.
func (m *BoostConfigManager) SetCompanyBoost(ticker string, classification Classification, coverageRatio, baseBoost float64, sourceBoosts map[string]float64, metadata map[string]interface{}) error {
	if sourceBoosts == nil {
		sourceBoosts = make(map[string]float64)
	}

	m.config.Companies[ticker] = CompanyBoost{
		Classification: classification,
		CoverageRatio:  coverageRatio,
		BaseBoost:      baseBoost,
		SourceBoosts:   sourceBoosts,
		Metadata:       metadata,
		UpdatedAt:      time.Now().UTC(),
	}

	if err := m.save(); err != nil {
		return fmt.Errorf("failed to persist boost for %s: %w", ticker, err)
	}

	log.Printf("[BoostConfigManager] Set boost for %s: %s (ratio=%.2f, boost=%.3f)",
		ticker, classification, coverageRatio, baseBoost)
	return nil
}

// CompanyBoost returns the boost factor for a ticker, specialized to the
// source when a source-specific boost is configured. An unconfigured ticker
// gets 0.0: no boost, never an error.
func (m *BoostConfigManager) CompanyBoost(ticker, source string) float64 {
	entry, ok := m.config.Companies[ticker]
	if !ok {
		return 0.0
	}

	if source != "" {
		if boost, ok := entry.SourceBoosts[source]; ok {
			return boost
		}
	}
	return entry.BaseBoost
}

// CompanyClassification returns the stored classification for a ticker,
// defaulting to medium for unconfigured companies.
func (m *BoostConfigManager) CompanyClassification(ticker string) Classification {
	if entry, ok := m.config.Companies[ticker]; ok {
		return entry.Classification
	}
	return ClassMedium
}

// GlobalSettings returns the current global configuration.
func (m *BoostConfigManager) GlobalSettings() GlobalSettings {
	return m.config.GlobalSettings
}

// UpdateGlobalSettings overwrites the global configuration wholesale. A zero
// MaxBoost is reset to the default cap rather than silently disabling all
// boosts through a partial struct literal.
func (m *BoostConfigManager) UpdateGlobalSettings(settings GlobalSettings) error {
	if settings.MaxBoost == 0 {
		settings.MaxBoost = MaxBoost
	}
	m.config.GlobalSettings = settings
	if err := m.save(); err != nil {
		return fmt.Errorf("failed to persist global settings: %w", err)
	}
	log.Printf("[BoostConfigManager] Updated global settings: enabled=%v, quality=%v, max=%.2f",
		settings.BoostEnabled, settings.QualityAdjustment, settings.MaxBoost)
	return nil
}

// IsBoostEnabled reports the global kill switch.
func (m *BoostConfigManager) IsBoostEnabled() bool {
	return m.config.GlobalSettings.BoostEnabled
}

// SetBoostEnabled flips the global kill switch. Disabling is the production
// rollback mechanism when boosting misbehaves.
func (m *BoostConfigManager) SetBoostEnabled(enabled bool) error {
	m.config.GlobalSettings.BoostEnabled = enabled
	if err := m.save(); err != nil {
		return fmt.Errorf("failed to persist boost_enabled=%v: %w", enabled, err)
	}
	log.Printf("[BoostConfigManager] Updated global setting: boost_enabled=%v", enabled)
	return nil
}

// AllBoosts returns every configured company entry.
func (m *BoostConfigManager) AllBoosts() map[string]CompanyBoost {
	return m.config.Companies
}

// BoostSummary is the operator-facing export of the configuration.
type BoostSummary struct {
	GeneratedAt          time.Time                              `json:"generated_at"`
	TotalCompanies       int                                    `json:"total_companies"`
	GlobalSettings       GlobalSettings                         `json:"global_settings"`
	ClassificationCounts map[Classification]int                 `json:"classification_counts"`
	Classifications      map[Classification][]ClassifiedCompany `json:"classifications"`
}

// ExportSummary writes a human-readable summary of the boost configuration.
func (m *BoostConfigManager) ExportSummary(outputPath string) (BoostSummary, error) {
	summary := BoostSummary{
		GeneratedAt:    time.Now().UTC(),
		TotalCompanies: len(m.config.Companies),
		GlobalSettings: m.config.GlobalSettings,
		Classifications: map[Classification][]ClassifiedCompany{
			ClassSmall:  {},
			ClassMedium: {},
			ClassLarge:  {},
		},
	}

	for ticker, entry := range m.config.Companies {
		summary.Classifications[entry.Classification] = append(
			summary.Classifications[entry.Classification],
			ClassifiedCompany{Ticker: ticker, Ratio: entry.CoverageRatio},
		)
	}

	summary.ClassificationCounts = make(map[Classification]int, len(summary.Classifications))
	for class, companies := range summary.Classifications {
		summary.ClassificationCounts[class] = len(companies)
	}

	if err := store.NewSnapshotStore(outputPath).Save(summary); err != nil {
		return summary, fmt.Errorf("failed to export boost summary: %w", err)
	}

	log.Printf("[BoostConfigManager] Exported boost summary to %s", outputPath)
	return summary, nil
}
