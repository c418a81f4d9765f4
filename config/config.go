package config

// Dialect selects the SQL backend GORM opens the Repository against.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// Config is the recognized configuration surface for a Manager instance.
type Config struct {
	StorageDir string `yaml:"storage_dir"`

	Dialect Dialect `yaml:"dialect"`
	DSN     string  `yaml:"dsn"`

	AutoSync bool `yaml:"auto_sync"`

	EmbeddingDim int `yaml:"embedding_dim"`
	MaxElements  int `yaml:"max_elements"`
	EfConstruction int `yaml:"ef_construction"`
	M            int `yaml:"m"`
	EfSearch     int `yaml:"ef_search"`

	HistoryTailDefault int `yaml:"history_tail_default"`
}

// Default returns the documented default configuration. StorageDir is left
// empty; callers must set it explicitly.
func Default() *Config {
	return &Config{
		Dialect:            DialectSQLite,
		AutoSync:           true,
		EmbeddingDim:       384,
		MaxElements:        10_000,
		EfConstruction:     200,
		M:                  16,
		EfSearch:           50,
		HistoryTailDefault: 100,
	}
}
