// Package estimator provides the regression models behind the arrival
// predictor: ordinary least squares, CART regression trees, a bagged random
// forest, least-squares gradient boosting and a small feed-forward network,
// together with a standard scaler, train/test splitting, k-fold cross
// validation and the usual regression scores.
//
// Every Regressor is gob encodable so a fitted model can be persisted and
// restored as a unit with its scaler. Hyperparameters default to the
// scikit-learn defaults used by the service; kinds are instantiated through a
// factory registry so the configuration can override them.
package estimator
