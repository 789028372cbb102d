// File: internal/activity/recorder.go
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/config"
	esplatform "starterkit_backend/internal/platform/elasticsearch"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// Event types.
const (
	EventSignIn        = "sign_in"
	EventSignInFailed  = "sign_in_failed"
	EventSignUp        = "sign_up"
	EventSignOut       = "sign_out"
	EventSessionUpdate = "session_update"
	EventTestSession   = "test_session"
)

// Event is one authentication event.
type Event struct {
	Timestamp     time.Time `json:"@timestamp"`
	Type          string    `json:"type"`
	UserID        string    `json:"user_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	IP            string    `json:"ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
}

// Query filters a search. Empty fields match everything.
type Query struct {
	UserID string `form:"user_id"`
	Type   string `form:"type"`
	common.PaginationQuery
}

// Recorder stores and searches authentication events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
	// Search returns one page of matching events, newest first, and the
	// total number of matches.
	Search(ctx context.Context, q Query) ([]Event, int64, error)
}

// NewRecorder returns an Elasticsearch recorder, or a no-op recorder when
// es is nil.
func NewRecorder(es *esplatform.ESClientWrapper, cfg *config.Config, logger *zap.Logger) Recorder {
	if es == nil {
		return NopRecorder{}
	}
	return NewESRecorder(es.Client, cfg.ActivityIndexName, logger)
}

// ESRecorder indexes events into one Elasticsearch index.
type ESRecorder struct {
	client *elasticsearch.Client
	index  string
	logger *zap.Logger
}

// NewESRecorder creates an ESRecorder.
func NewESRecorder(client *elasticsearch.Client, index string, logger *zap.Logger) *ESRecorder {
	return &ESRecorder{client: client, index: index, logger: logger.Named("ActivityRecorder")}
}

// Record indexes e, stamping the time if unset.
func (r *ESRecorder) Record(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal activity event: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index: r.index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("index activity event: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		r.logger.Warn("Activity event rejected",
			zap.String("status", res.Status()),
			zap.Any("error_details", esplatform.DecodeError(res.Body)))
		return fmt.Errorf("index activity event: status %s", res.Status())
	}
	return nil
}

// Search returns the newest events matching q.
func (r *ESRecorder) Search(ctx context.Context, q Query) ([]Event, int64, error) {
	var filters []map[string]interface{}
	if q.UserID != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"user_id": q.UserID}})
	}
	if q.Type != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"type": q.Type}})
	}
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(filters) > 0 {
		query = map[string]interface{}{"bool": map[string]interface{}{"filter": filters}}
	}
	body, err := json.Marshal(map[string]interface{}{"query": query})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal activity query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(body)),
		r.client.Search.WithFrom(q.Offset()),
		r.client.Search.WithSize(q.Limit()),
		r.client.Search.WithTrackTotalHits(true),
		r.client.Search.WithSort("@timestamp:desc"),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search activity: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("search activity: status %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decode activity search: %w", err)
	}
	events := make([]Event, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		events = append(events, h.Source)
	}
	return events, parsed.Hits.Total.Value, nil
}

// NopRecorder drops events and finds nothing.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Event) error {
	return nil
}

// Search implements Recorder.
func (NopRecorder) Search(context.Context, Query) ([]Event, int64, error) {
	return []Event{}, 0, nil
}
