package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// activityMapping returns the JSON mapping for the auth activity index.
func activityMapping() (string, error) {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"@timestamp":     map[string]interface{}{"type": "date"},
				"type":           map[string]interface{}{"type": "keyword"},
				"user_id":        map[string]interface{}{"type": "keyword"},
				"email":          map[string]interface{}{"type": "keyword"},
				"provider":       map[string]interface{}{"type": "keyword"},
				"outcome":        map[string]interface{}{"type": "keyword"},
				"correlation_id": map[string]interface{}{"type": "keyword"},
				"ip":             map[string]interface{}{"type": "ip", "ignore_malformed": true},
				"user_agent":     map[string]interface{}{"type": "text"},
			},
		},
	}
	b, err := json.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("error marshalling activity mapping to JSON: %w", err)
	}
	return string(b), nil
}

// EnsureActivityIndex creates the activity index with its mapping if it does
// not already exist.
func EnsureActivityIndex(ctx context.Context, client *ESClientWrapper, index string, logger *zap.Logger) error {
	log := logger.Named("elasticsearch_index_setup").With(zap.String("index_name", index))

	res, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, client.Client)
	if err != nil {
		return fmt.Errorf("error checking if index %s exists: %w", index, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		log.Debug("Activity index already exists")
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("error checking if index %s exists: status %s", index, res.Status())
	}

	mappingJSON, err := activityMapping()
	if err != nil {
		return err
	}
	createRes, err := esapi.IndicesCreateRequest{
		Index: index,
		Body:  strings.NewReader(mappingJSON),
	}.Do(ctx, client.Client)
	if err != nil {
		return fmt.Errorf("error creating index %s: %w", index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		log.Error("Failed to create activity index",
			zap.String("status", createRes.Status()),
			zap.Any("error_details", DecodeError(createRes.Body)))
		return fmt.Errorf("failed to create index %s: status %s", index, createRes.Status())
	}

	log.Info("Activity index created successfully")
	return nil
}
