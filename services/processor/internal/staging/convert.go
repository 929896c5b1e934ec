package staging

import (
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

// DocumentFromBSON converts a decoded document, keeping field order. The
// _id value is copied into Document.ID as-is.
func DocumentFromBSON(raw bson.D) models.Document {
	doc := models.Document{Fields: make([]models.Field, 0, len(raw))}
	for _, e := range raw {
		if e.Key == "_id" {
			doc.ID = e.Value
		}
		doc.Fields = append(doc.Fields, models.Field{Key: e.Key, Value: ValueFromBSON(e.Value)})
	}
	return doc
}

// ValueFromBSON maps a driver value onto the tagged Value union.
func ValueFromBSON(v any) models.Value {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return models.NullValue()
	case float64:
		return models.NumberValue(x)
	case float32:
		return models.NumberValue(float64(x))
	case int32:
		return models.NumberValue(float64(x))
	case int64:
		return models.NumberValue(float64(x))
	case int:
		return models.NumberValue(float64(x))
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return models.OtherValue(x)
		}
		return models.NumberValue(f)
	case string:
		return models.StringValue(x)
	case primitive.DateTime:
		return models.TimeValue(x.Time().UTC())
	case time.Time:
		return models.TimeValue(x.UTC())
	case bool:
		return models.BoolValue(x)
	default:
		return models.OtherValue(v)
	}
}

// ObjectIDFrom normalizes a message identifier into an ObjectID. It accepts a
// native ObjectID, a 24-hex string, or an extended JSON {"$oid": ...} object.
func ObjectIDFrom(v any) (primitive.ObjectID, bool) {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x, !x.IsZero()
	case string:
		oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(x))
		return oid, err == nil
	case bson.D:
		if len(x) == 1 && x[0].Key == "$oid" {
			return ObjectIDFrom(x[0].Value)
		}
	case bson.M:
		if s, ok := x["$oid"]; ok && len(x) == 1 {
			return ObjectIDFrom(s)
		}
	}
	return primitive.NilObjectID, false
}
