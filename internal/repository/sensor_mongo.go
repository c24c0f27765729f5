package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wisefido-medbox/internal/models"
	"wisefido-medbox/internal/projector"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// timestamp layouts accepted when a document stores the time as a string
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// maxPrealloc caps the slice capacity reserved up front for a Query result
const maxPrealloc = 1024

// SensorReadingRepository sensor documents in MongoDB
type SensorReadingRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewSensorReadingRepository creates the repository over an existing collection
func NewSensorReadingRepository(collection *mongo.Collection, logger *zap.Logger) *SensorReadingRepository {
	return &SensorReadingRepository{
		collection: collection,
		logger:     logger,
	}
}

// Query returns up to limit documents sorted by sortField.
// Fields with an unexpected type decode as nil instead of failing the batch.
func (r *SensorReadingRepository) Query(ctx context.Context, sortField string, direction projector.SortDirection, limit int64) ([]models.SensorReading, error) {
	cursor, err := r.collection.Find(ctx, bson.D{}, FindOptions(sortField, direction, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor readings: %w", err)
	}
	defer cursor.Close(ctx)

	readings := make([]models.SensorReading, 0, queryCapacity(limit))
	for cursor.Next(ctx) {
		readings = append(readings, DecodeReading(cursor.Current))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensor readings: %w", err)
	}

	return readings, nil
}

func queryCapacity(limit int64) int {
	if limit <= 0 || limit > maxPrealloc {
		return maxPrealloc
	}
	return int(limit)
}

// Insert appends one reading
func (r *SensorReadingRepository) Insert(ctx context.Context, reading models.SensorReading) error {
	if _, err := r.collection.InsertOne(ctx, reading); err != nil {
		return fmt.Errorf("failed to insert sensor reading: %w", err)
	}
	return nil
}

// EnsureIndexes creates the descending timestamp index used by Query
func (r *SensorReadingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: projector.TimestampField, Value: int32(projector.Descending)}},
	})
	if err != nil {
		return fmt.Errorf("failed to create timestamp index: %w", err)
	}
	return nil
}

// FindOptions builds the sort/limit options for Query
func FindOptions(sortField string, direction projector.SortDirection, limit int64) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: int32(direction)}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return opts
}

// DecodeReading extracts a reading field by field from a raw document
func DecodeReading(doc bson.Raw) models.SensorReading {
	return models.SensorReading{
		Temperature: lookupFloat(doc, "temperature"),
		Humidity:    lookupFloat(doc, "humidity"),
		LDRValue:    lookupFloat(doc, "ldr_value"),
		Timestamp:   lookupTime(doc, projector.TimestampField),
	}
}

func lookupFloat(doc bson.Raw, key string) *float64 {
	val, err := doc.LookupErr(key)
	if err != nil {
		return nil
	}

	var f float64
	switch val.Type {
	case bsontype.Double:
		f = val.Double()
	case bsontype.Int32:
		f = float64(val.Int32())
	case bsontype.Int64:
		f = float64(val.Int64())
	default:
		return nil
	}
	return &f
}

func lookupTime(doc bson.Raw, key string) *time.Time {
	val, err := doc.LookupErr(key)
	if err != nil {
		return nil
	}

	switch val.Type {
	case bsontype.DateTime:
		t := val.Time().UTC()
		return &t
	case bsontype.String:
		s := strings.TrimSpace(val.StringValue())
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}
