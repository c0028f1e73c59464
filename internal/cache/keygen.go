package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/llmhub/llmhub/pkg/types"
)

// Key computes the deterministic cache key for a request bound to a
// backend. Only fields that affect the generated output participate:
// backend id, model, the ordered message list, temperature, and top_p.
// Messages are serialized as a JSON array, so two semantically identical
// requests hash identically regardless of any map iteration order
// elsewhere in the request.
func Key(backendID string, req *types.Request) (string, error) {
	messages, err := json.Marshal(req.Messages)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("backend:")
	sb.WriteString(backendID)
	sb.WriteString("|model:")
	sb.WriteString(req.Model)
	sb.WriteString("|messages:")
	sb.Write(messages)

	if req.Temperature != nil {
		fmt.Fprintf(&sb, "|temp:%.4f", *req.Temperature)
	}
	if req.TopP != nil {
		fmt.Fprintf(&sb, "|top_p:%.4f", *req.TopP)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return "llmhub:resp:" + hex.EncodeToString(sum[:]), nil
}
