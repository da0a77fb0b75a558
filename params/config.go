package params

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/tickmaker/pkg/fairvalue"
	"github.com/uhyunpark/tickmaker/pkg/quoting"
)

// Product is the static trading configuration of one instrument.
type Product struct {
	Symbol        string
	Limit         int64
	Estimator     fairvalue.Spec
	HistoryLength int              // trailing midpoints kept in the state blob
	HistorySource fairvalue.Source // vwap or mid
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	File  string `env:"LOG_FILE"` // empty logs to stdout only
}

type API struct {
	Addr           string   `env:"API_ADDR" envDefault:":8080"`
	AllowedOrigins []string `env:"API_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:3001"`
}

type Storage struct {
	StateDBPath string `env:"STATE_DB_PATH" envDefault:"data/state"`
	JournalPath string `env:"JOURNAL_PATH" envDefault:"data/journal.jsonl"`
}

// Overrides adjust the product table from the environment.
type Overrides struct {
	// POSITION_LIMITS=AMETHYSTS:20,STARFRUIT:20
	PositionLimits map[string]int64 `env:"POSITION_LIMITS"`
	// HISTORY_LENGTH applies to every product that keeps history; 0 leaves defaults.
	HistoryLength int `env:"HISTORY_LENGTH"`
}

type Config struct {
	Log       Log
	API       API
	Storage   Storage
	Overrides Overrides

	Products []Product
	Quoting  quoting.Config
}

// starfruit regression: intercept first, then one weight per trailing midpoint
var starfruitCoefficients = []string{"5.24986188", "0.70354115", "0.23410216", "0.04909509", "0.01222407"}

func Default() Config {
	coefs := make([]decimal.Decimal, 0, len(starfruitCoefficients)-1)
	for _, c := range starfruitCoefficients[1:] {
		coefs = append(coefs, decimal.RequireFromString(c))
	}
	return Config{
		Log:     Log{Level: "info"},
		API:     API{Addr: ":8080"},
		Storage: Storage{StateDBPath: "data/state", JournalPath: "data/journal.jsonl"},
		Products: []Product{
			{
				Symbol:    "AMETHYSTS",
				Limit:     20,
				Estimator: fairvalue.Spec{Kind: fairvalue.KindConstant, Price: decimal.NewFromInt(10000)},
			},
			{
				Symbol: "STARFRUIT",
				Limit:  20,
				Estimator: fairvalue.Spec{
					Kind:         fairvalue.KindRegression,
					Intercept:    decimal.RequireFromString(starfruitCoefficients[0]),
					Coefficients: coefs,
				},
				HistoryLength: len(coefs),
				HistorySource: fairvalue.SourceVWAPMid,
			},
			{
				Symbol:        "ORCHIDS",
				Limit:         100,
				Estimator:     fairvalue.Spec{Kind: fairvalue.KindLastObserved},
				HistoryLength: 4,
				HistorySource: fairvalue.SourceVWAPMid,
			},
		},
		Quoting: quoting.DefaultConfig(),
	}
}

// Load reads configuration from a .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func Load(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if err := env.Parse(&cfg.Log); err != nil {
		return cfg, fmt.Errorf("parse log config: %w", err)
	}
	if err := env.Parse(&cfg.API); err != nil {
		return cfg, fmt.Errorf("parse api config: %w", err)
	}
	if err := env.Parse(&cfg.Storage); err != nil {
		return cfg, fmt.Errorf("parse storage config: %w", err)
	}
	if err := env.Parse(&cfg.Overrides); err != nil {
		return cfg, fmt.Errorf("parse overrides: %w", err)
	}
	cfg.applyOverrides()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyOverrides() {
	for i := range c.Products {
		p := &c.Products[i]
		if l, ok := c.Overrides.PositionLimits[p.Symbol]; ok {
			p.Limit = l
		}
		if c.Overrides.HistoryLength > 0 && p.HistoryLength > 0 {
			p.HistoryLength = c.Overrides.HistoryLength
		}
	}
}

// Validate checks the product table is internally consistent.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		if _, dup := seen[p.Symbol]; dup {
			return fmt.Errorf("product %s configured twice", p.Symbol)
		}
		seen[p.Symbol] = struct{}{}
		if p.Limit < 0 {
			return fmt.Errorf("product %s: negative position limit %d", p.Symbol, p.Limit)
		}
		if need := p.Estimator.MinHistory(); p.HistoryLength < need {
			return fmt.Errorf("product %s: %s estimator needs %d history points, history length is %d",
				p.Symbol, p.Estimator.Kind, need, p.HistoryLength)
		}
	}
	return nil
}
