package classifier

import (
	"os"
	"strings"

	"github.com/bantay-ai/bantay/internal/redact"
)

func debugML() bool {
	return strings.TrimSpace(os.Getenv("BANTAY_DEBUG_ML")) == "1"
}

func logPredictionDebug(logits []float32, probs []float64, res *Result) {
	if !debugML() {
		return
	}
	logVec := logits
	if len(logVec) > 8 {
		logVec = logVec[:8]
	}
	probVec := probs
	if len(probVec) > 8 {
		probVec = probVec[:8]
	}
	redact.Logf("classifier debug ml: logits=%v probs=%v predicted=%s idx=%d confidence=%.4f",
		logVec, probVec, res.PredictedCategory, res.PredictedIndex, res.Confidence)
}
