package worker

import (
	"errors"
	"testing"

	"github.com/pitchside/video-pipeline/pkg/models"
)

func TestReanalysisJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     ReanalysisJob
		wantErr error
	}{
		{
			name:    "valid job",
			job:     ReanalysisJob{VideoID: "vid-1", TeamSport: "football"},
			wantErr: nil,
		},
		{
			name:    "sport is optional",
			job:     ReanalysisJob{VideoID: "vid-2"},
			wantErr: nil,
		},
		{
			name:    "missing video id",
			job:     ReanalysisJob{TeamSport: "rugby"},
			wantErr: models.ErrMissingVideoID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
