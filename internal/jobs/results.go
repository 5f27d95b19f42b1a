package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

const resultsDir = "results"

// Results reads and writes results/{jobId}.json.
type Results struct {
	files *storage.FileStore
}

func NewResults(files *storage.FileStore) *Results {
	return &Results{files: files}
}

func (r *Results) Write(ctx context.Context, result *domain.Result) error {
	if result == nil || result.JobID == "" {
		return errors.New("jobs: result job id is required")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("jobs: encode result: %w", err)
	}
	if _, err := r.files.Write(ctx, resultsDir+"/"+result.JobID+".json", data); err != nil {
		return fmt.Errorf("jobs: write result: %w", err)
	}
	return nil
}

// Read returns domain.ErrNotFound when no result exists.
func (r *Results) Read(ctx context.Context, jobID string) (*domain.Result, error) {
	data, err := r.files.Read(ctx, resultsDir+"/"+jobID+".json")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var result domain.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("jobs: decode result: %w", err)
	}
	return &result, nil
}

// Exists reports whether a result file was written for jobID.
func (r *Results) Exists(ctx context.Context, jobID string) bool {
	_, err := r.files.Read(ctx, resultsDir+"/"+jobID+".json")
	return err == nil
}

// Delete removes the result file; a missing file is not an error.
func (r *Results) Delete(ctx context.Context, jobID string) error {
	return r.files.Delete(ctx, resultsDir+"/"+jobID+".json")
}
