// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// The estimator kinds and the metrics sinks are both built this way:
//
//	reg := factory.NewRegistry[estimator.Regressor]()
//	reg.MustRegister("random_forest", func(conf map[string]any) (estimator.Regressor, error) {
//	    var p estimator.ForestParams
//	    if err := factory.Decode(conf, &p); err != nil {
//	        return nil, err
//	    }
//	    return estimator.NewForest(p), nil
//	})
//	r, err := reg.Create(factory.ModuleConfig{Type: "random_forest", Conf: map[string]any{"n_estimators": 50}})
package factory
