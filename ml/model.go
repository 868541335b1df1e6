package ml

// Classifier is a fitted model mapping a scaled feature vector to a class.
type Classifier interface {
	Predict(features []float64) (int, error)
	PredictProba(features []float64) ([]float64, error)
	Classes() []int
	Name() string
}
