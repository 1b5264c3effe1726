// Package prediction owns the arrival delay model: training, inference,
// confidence scoring, factor analysis and synthetic training data.
//
// The live model is an immutable Snapshot published through an atomic
// pointer. Training builds a complete new snapshot and swaps it in, so
// concurrent readers never observe a half-trained model.
package prediction
