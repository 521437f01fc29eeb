package azvalid

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/ezquant/azvalid/azvalid/plus/models"
)

// Digest returns the deterministic identity of a validation run: a sha256
// over the JSON form of the request, strategy config and walk-forward
// config. encoding/json writes map keys in sorted order and struct fields in
// declaration order, so equal inputs always produce equal digests. Callers
// use it purely for result deduplication.
func Digest(req Request, strategy models.StrategyConfig, wf models.WalkForwardConfig) (string, error) {
	payload := struct {
		Request     Request                  `json:"request"`
		Strategy    models.StrategyConfig    `json:"config"`
		WalkForward models.WalkForwardConfig `json:"walk_forward"`
	}{req, strategy, wf}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
