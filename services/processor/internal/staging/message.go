package staging

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

// ParseMessage decodes one relaxed extended JSON object, the format staging
// documents are published in.
func ParseMessage(payload []byte) (models.Document, error) {
	var raw bson.D
	if err := bson.UnmarshalExtJSON(payload, false, &raw); err != nil {
		return models.Document{}, fmt.Errorf("parse message: %w", err)
	}
	return DocumentFromBSON(raw), nil
}
