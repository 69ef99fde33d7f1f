package mongodb

import (
	"context"
	"fmt"
	"time"

	"feedback_server/core/domain"
	"feedback_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionReports = "import_reports"

	// reportRetention bounds how long import history is kept.
	reportRetention = 90 * 24 * time.Hour

	maxListLimit = 200
)

// ReportAdapter implements out.ReportArchive using MongoDB.
type ReportAdapter struct {
	collection *mongo.Collection
}

var _ out.ReportArchive = (*ReportAdapter)(nil)

// NewReportAdapter creates a new MongoDB report adapter.
func NewReportAdapter(db *mongo.Database) *ReportAdapter {
	return &ReportAdapter{collection: db.Collection(collectionReports)}
}

// EnsureIndexes creates the listing and TTL indexes.
func (a *ReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "finished_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "source", Value: 1}, {Key: "finished_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// reportDocument is the stored shape of a batch report.
type reportDocument struct {
	BatchID    string    `bson:"_id"`
	Source     string    `bson:"source,omitempty"`
	Total      int       `bson:"total"`
	Succeeded  int       `bson:"succeeded"`
	Failed     int       `bson:"failed"`
	Message    string    `bson:"message"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

func toDocument(v domain.ReportView) reportDocument {
	return reportDocument{
		BatchID:    v.BatchID,
		Source:     v.Source,
		Total:      v.Total,
		Succeeded:  v.Succeeded,
		Failed:     v.Failed,
		Message:    v.Message,
		StartedAt:  v.StartedAt,
		FinishedAt: v.FinishedAt,
		ExpiresAt:  v.FinishedAt.Add(reportRetention),
	}
}

func (d reportDocument) view() domain.ReportView {
	return domain.ReportView{
		BatchID:    d.BatchID,
		Total:      d.Total,
		Succeeded:  d.Succeeded,
		Failed:     d.Failed,
		Message:    d.Message,
		Source:     d.Source,
		StartedAt:  d.StartedAt,
		FinishedAt: d.FinishedAt,
	}
}

// Save upserts a report by batch id.
func (a *ReportAdapter) Save(ctx context.Context, report domain.ReportView) error {
	if report.BatchID == "" {
		return fmt.Errorf("report has no batch id")
	}

	opts := options.Replace().SetUpsert(true)
	_, err := a.collection.ReplaceOne(ctx, bson.M{"_id": report.BatchID}, toDocument(report), opts)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// ListRecent returns the newest reports first.
func (a *ReportAdapter) ListRecent(ctx context.Context, limit int) ([]domain.ReportView, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "finished_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}

	views := make([]domain.ReportView, 0, len(docs))
	for _, d := range docs {
		views = append(views, d.view())
	}
	return views, nil
}
