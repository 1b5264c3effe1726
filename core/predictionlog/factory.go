package predictionlog

import (
	"github.com/kilianp07/smartrail/core/factory"
)

var backends = factory.NewRegistry[Store]()

func init() {
	backends.MustRegister("jsonl", func(conf map[string]any) (Store, error) {
		var c JSONLConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "predictions.jsonl"
		}
		return NewJSONLStore(c)
	})
	backends.MustRegister("sqlite", func(conf map[string]any) (Store, error) {
		var c SQLiteConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "predictions.db"
		}
		return NewSQLiteStore(c.Path)
	})
}

// Open builds the store named by cfg.Type.
func Open(cfg factory.ModuleConfig) (Store, error) {
	return backends.Create(cfg)
}

// Backends lists the registered store types.
func Backends() []string { return backends.Names() }
