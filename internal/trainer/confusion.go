package trainer

import (
	"fmt"
	"math"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

// ConfusionMatrix counts predictions against ground truth.
// Counts[p][a] is the number of samples of actual class a predicted as p.
type ConfusionMatrix struct {
	Classes []string
	Counts  [][]float64
}

// NewConfusionMatrix validates that counts is square over classes. The
// matrix may carry one extra trailing row and column for background, which
// is ignored by the per-class scores.
func NewConfusionMatrix(classes []string, counts [][]float64) (*ConfusionMatrix, error) {
	n := len(counts)
	if n != len(classes) && n != len(classes)+1 {
		return nil, fmt.Errorf("confusion matrix has %d rows for %d classes", n, len(classes))
	}
	for i, row := range counts {
		if len(row) != n {
			return nil, fmt.Errorf("confusion matrix row %d has %d columns, want %d", i, len(row), n)
		}
	}
	return &ConfusionMatrix{Classes: classes, Counts: counts}, nil
}

// Scores returns precision, recall and F1 for class i. A zero denominator
// yields 0 for that score.
func (m *ConfusionMatrix) Scores(i int) (precision, recall, f1 float64) {
	tp := m.Counts[i][i]
	var predicted, actual float64
	for j := range m.Counts {
		predicted += m.Counts[i][j]
		actual += m.Counts[j][i]
	}
	precision = ratio(tp, predicted)
	recall = ratio(tp, actual)
	f1 = ratio(2*precision*recall, precision+recall)
	return precision, recall, f1
}

// Accuracy is the diagonal over the total, or nil for an empty matrix.
func (m *ConfusionMatrix) Accuracy() *float64 {
	var diag, total float64
	for i, row := range m.Counts {
		for j, v := range row {
			total += v
			if i == j {
				diag += v
			}
		}
	}
	if total == 0 {
		return nil
	}
	acc := Round4(diag / total)
	return &acc
}

// PerClass returns rounded scores for every named class.
func (m *ConfusionMatrix) PerClass() []entities.ClassMetrics {
	out := make([]entities.ClassMetrics, len(m.Classes))
	for i, name := range m.Classes {
		p, r, f := m.Scores(i)
		out[i] = entities.ClassMetrics{Name: name, Precision: Round4(p), Recall: Round4(r), F1: Round4(f)}
	}
	return out
}

// Metrics assembles the stored run summary. top1 overrides the matrix
// accuracy when the trainer reported it.
func (m *ConfusionMatrix) Metrics(top1 *float64) *entities.TrainingMetrics {
	acc := m.Accuracy()
	if top1 != nil {
		v := Round4(*top1)
		acc = &v
	}
	return &entities.TrainingMetrics{AccuracyTop1: acc, PerClass: m.PerClass()}
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
