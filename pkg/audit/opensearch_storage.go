package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// OpenSearchStorage indexes events into an OpenSearch index.
// *opensearch.Client satisfies opensearchapi.Transport.
type OpenSearchStorage struct {
	transport opensearchapi.Transport
	index     string
}

func NewOpenSearchStorage(transport opensearchapi.Transport, index string) *OpenSearchStorage {
	return &OpenSearchStorage{transport: transport, index: index}
}

func (s *OpenSearchStorage) Store(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEventValidation, err)
	}

	req := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: event.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.transport)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: index %s: %s", ErrStorageFailure, s.index, res.Status())
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

// StoreBatch indexes events with one bulk request.
func (s *OpenSearchStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		meta := map[string]map[string]string{"index": {"_id": e.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("%w: %w", ErrEventValidation, err)
		}
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("%w: %w", ErrEventValidation, err)
		}
	}

	req := opensearchapi.BulkRequest{
		Index: s.index,
		Body:  &buf,
	}
	res, err := req.Do(ctx, s.transport)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: bulk %s: %s", ErrStorageFailure, s.index, res.Status())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Join(ErrStorageFailure, err)
	}
	var br bulkResponse
	if err := json.Unmarshal(raw, &br); err != nil {
		return errors.Join(ErrStorageFailure, err)
	}
	if br.Errors {
		return fmt.Errorf("%w: bulk %s: some items failed", ErrStorageFailure, s.index)
	}
	return nil
}
