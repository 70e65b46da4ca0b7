package models

import "time"

// VideoType declares what kind of footage a video contains. The AI
// analysis service returns a different response shape per type.
type VideoType string

const (
	TypeMatch     VideoType = "match"
	TypeTraining  VideoType = "training"
	TypeInterview VideoType = "interview"
	TypeHighlight VideoType = "highlight"
)

// IsValid returns true if the type is a known VideoType.
func (t VideoType) IsValid() bool {
	switch t {
	case TypeMatch, TypeTraining, TypeInterview, TypeHighlight:
		return true
	}
	return false
}

// AnalysisStatus tracks the AI analysis lifecycle of a video.
// It only advances pending -> analyzing -> {completed|failed}; the sole
// backward transition is failed -> analyzing via an explicit re-analysis
// request.
type AnalysisStatus string

const (
	StatusPending   AnalysisStatus = "pending"
	StatusAnalyzing AnalysisStatus = "analyzing"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// IsValid returns true if the status is a valid AnalysisStatus.
func (s AnalysisStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true once the analysis lifecycle has resolved.
func (s AnalysisStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaggedPlayer is a player reference attached to a video, carrying the
// display fields the roster views need.
type TaggedPlayer struct {
	PlayerID     string `dynamodbav:"player_id" json:"playerId"`
	Name         string `dynamodbav:"name" json:"name"`
	JerseyNumber int    `dynamodbav:"jersey_number,omitempty" json:"jerseyNumber,omitempty"`
}

// MatchInfo holds the optional match metadata attached to match videos.
type MatchInfo struct {
	Opponent    string `dynamodbav:"opponent" json:"opponent"`
	Venue       string `dynamodbav:"venue" json:"venue"`
	MatchDate   string `dynamodbav:"match_date,omitempty" json:"matchDate,omitempty"`
	Score       string `dynamodbav:"score,omitempty" json:"score,omitempty"`
	Competition string `dynamodbav:"competition,omitempty" json:"competition,omitempty"`
}

// VideoRecord is the persisted metadata for one uploaded video. It is
// created when the pipeline's persist stage completes and is mutated only
// by status transitions and the one-time attachment of analysis results.
type VideoRecord struct {
	// Keys
	PK     string `dynamodbav:"pk" json:"-"`
	SK     string `dynamodbav:"sk" json:"-"`
	GSI1PK string `dynamodbav:"gsi1pk,omitempty" json:"-"`
	GSI1SK string `dynamodbav:"gsi1sk,omitempty" json:"-"`

	// Attributes
	VideoID         string           `dynamodbav:"video_id" json:"videoId"`
	TeamID          string           `dynamodbav:"team_id" json:"teamId"`
	UploaderID      string           `dynamodbav:"uploader_id,omitempty" json:"uploaderId,omitempty"`
	Title           string           `dynamodbav:"title" json:"title"`
	Description     string           `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Type            VideoType        `dynamodbav:"video_type" json:"type"`
	Status          AnalysisStatus   `dynamodbav:"status" json:"status"`
	StorageKey      string           `dynamodbav:"storage_key" json:"-"`
	URL             string           `dynamodbav:"url" json:"url"`
	CompressedURL   string           `dynamodbav:"compressed_url,omitempty" json:"compressedUrl,omitempty"`
	ThumbnailURL    string           `dynamodbav:"thumbnail_url,omitempty" json:"thumbnailUrl,omitempty"`
	DurationSeconds float64          `dynamodbav:"duration_seconds,omitempty" json:"durationSeconds,omitempty"`
	FileSizeBytes   int64            `dynamodbav:"file_size_bytes,omitempty" json:"fileSizeBytes,omitempty"`
	Match           *MatchInfo       `dynamodbav:"match,omitempty" json:"match,omitempty"`
	TaggedPlayers   []TaggedPlayer   `dynamodbav:"tagged_players,omitempty" json:"taggedPlayers,omitempty"`
	Analysis        *AnalysisData    `dynamodbav:"-" json:"analysis,omitempty"`
	AnalysisError   *AnalysisFailure `dynamodbav:"analysis_error,omitempty" json:"analysisError,omitempty"`
	CreatedAt       string           `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt       string           `dynamodbav:"updated_at" json:"updatedAt"`
	AnalyzedAt      string           `dynamodbav:"analyzed_at,omitempty" json:"analyzedAt,omitempty"`
}

// CreatedTime parses the record's creation timestamp. A malformed
// timestamp sorts as the zero time, i.e. oldest.
func (v *VideoRecord) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, v.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AnalysisFailure is the diagnostic payload stored in place of analysis
// data when the analyze stage fails.
type AnalysisFailure struct {
	Message  string `dynamodbav:"message" json:"message"`
	FailedAt string `dynamodbav:"failed_at" json:"failedAt"`
}

// UploadMetadata is the caller-supplied metadata for a new upload.
// Validation tags encode the per-type preconditions: a match video
// requires opponent and venue.
type UploadMetadata struct {
	Title         string         `json:"title" validate:"required,max=200"`
	Type          VideoType      `json:"type" validate:"required,oneof=match training interview highlight"`
	Description   string         `json:"description" validate:"max=2000"`
	Opponent      string         `json:"opponent" validate:"required_if=Type match"`
	Venue         string         `json:"venue" validate:"required_if=Type match"`
	MatchDate     string         `json:"matchDate"`
	Competition   string         `json:"competition"`
	TaggedPlayers []TaggedPlayer `json:"taggedPlayers"`
	Duration      float64        `json:"duration" validate:"gte=0"`
}
